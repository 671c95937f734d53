package logwatcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type ipUpCall struct {
	iface, tty, localIP, remoteIP string
}

func TestFiresExactlyOnceForWholeMessage(t *testing.T) {
	var calls []ipUpCall
	w := NewWatcher(func(iface, tty, localIP, remoteIP string) {
		calls = append(calls, ipUpCall{iface, tty, localIP, remoteIP})
	})

	msg := "Using interface ppp0\nConnect: /dev/pts/3 <--> /dev/pts/5\n" +
		"local  IP address 10.0.0.2\nremote IP address 10.0.0.1\n"
	w.Feed([]byte(msg))

	require.Len(t, calls, 1)
	require.Equal(t, ipUpCall{"ppp0", "/dev/pts/5", "10.0.0.2", "10.0.0.1"}, calls[0])
}

func TestFiresOnceAcrossArbitraryChunkBoundaries(t *testing.T) {
	var calls []ipUpCall
	w := NewWatcher(func(iface, tty, localIP, remoteIP string) {
		calls = append(calls, ipUpCall{iface, tty, localIP, remoteIP})
	})

	msg := "Using interface ppp0\nConnect: /dev/pts/3 <--> /dev/pts/5\n" +
		"local  IP address 10.0.0.2\nremote IP address 10.0.0.1\n"
	chunkSizes := []int{1, 7, 3, 40, 2, 1000}
	pos := 0
	for _, n := range chunkSizes {
		end := pos + n
		if end > len(msg) {
			end = len(msg)
		}
		if pos >= len(msg) {
			break
		}
		w.Feed([]byte(msg[pos:end]))
		pos = end
	}
	if pos < len(msg) {
		w.Feed([]byte(msg[pos:]))
	}

	require.Len(t, calls, 1)
	require.Equal(t, ipUpCall{"ppp0", "/dev/pts/5", "10.0.0.2", "10.0.0.1"}, calls[0])
}

func TestDoesNotFireUntilAllFourSeen(t *testing.T) {
	fired := false
	w := NewWatcher(func(iface, tty, localIP, remoteIP string) { fired = true })

	w.Feed([]byte("Using interface ppp0\n"))
	require.False(t, fired)
	w.Feed([]byte("Connect: /dev/pts/3 <--> /dev/pts/5\n"))
	require.False(t, fired)
	w.Feed([]byte("local  IP address 10.0.0.2\n"))
	require.False(t, fired)
	w.Feed([]byte("remote IP address 10.0.0.1\n"))
	require.True(t, fired)
}

func TestSubsequentFeedsAfterFiringDoNotRefire(t *testing.T) {
	count := 0
	w := NewWatcher(func(iface, tty, localIP, remoteIP string) { count++ })
	msg := "Using interface ppp0\nConnect: /dev/pts/3 <--> /dev/pts/5\n" +
		"local  IP address 10.0.0.2\nremote IP address 10.0.0.1\n"
	w.Feed([]byte(msg))
	w.Feed([]byte(msg))
	require.Equal(t, 1, count)
}
