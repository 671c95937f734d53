//go:build darwin

package platform

func detectOS(goos string) (Platform, error) {
	return newDarwinPlatform(), nil
}
