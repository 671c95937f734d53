// Package gatewayproto drives the FirePass login and favorite-selection
// HTTP endpoints described in spec.md §4.B. Every request below is a
// verbatim HTTP/1.0 request text; the exact headers (including the dated
// Safari user agent) are load-bearing for some gateways, so they are not
// "cleaned up".
package gatewayproto

import (
	"fmt"
	"net/url"
)

const userAgent = "Mozilla/5.0 (Macintosh; U; PPC Mac OS X; en) AppleWebKit/417.9 (KHTML, like Gecko) Safari/417.9.2"

func preflightRequest(host string) string {
	return fmt.Sprintf(
		"GET /my.logon.php3?check=1 HTTP/1.0\r\n"+
			"Accept: */*\r\n"+
			"Accept-Language: en\r\n"+
			"Cookie: uRoamTestCookie=TEST; VHOST=standard\r\n"+
			"Referer: https://%[1]s/my.activation.php3\r\n"+
			"User-Agent: %[2]s\r\n"+
			"Host: %[1]s\r\n"+
			"\r\n", host, userAgent)
}

func loginRequest(host, username, password, dpassword, clientData string) string {
	body := fmt.Sprintf(
		"rsa_port=&vhost=standard&username=%s&password=%s&dpassword=%s&client_data=%s"+
			"&login=Logon&state=&mrhlogonform=1&miniui=1&tzoffsetmin=1&sessContentType=HTML"+
			"&overpass=&lang=en&charset=iso-8859-1&uilang=en&uicharset=iso-8859-1&uilangchar=en.iso-8859-1&langswitcher=",
		url.QueryEscape(username), url.QueryEscape(password), url.QueryEscape(dpassword), clientData)

	return fmt.Sprintf(
		"POST /my.activation.php3 HTTP/1.0\r\n"+
			"Accept: */*\r\n"+
			"Accept-Language: en\r\n"+
			"Cookie: VHOST=standard; uRoamTestCookie=TEST\r\n"+
			"Content-Type: application/x-www-form-urlencoded\r\n"+
			"Referer: https://%[1]s/my.activation.php3\r\n"+
			"User-Agent: %[2]s\r\n"+
			"Host: %[1]s\r\n"+
			"Content-Length: %[3]d\r\n"+
			"\r\n"+
			"%[4]s\r\n", host, userAgent, len(body), body)
}

func favoritesRequest(host, session string) string {
	return fmt.Sprintf(
		"GET /vdesk/vpn/index.php3?outform=xml HTTP/1.0\r\n"+
			"Accept: */*\r\n"+
			"Accept-Language: en\r\n"+
			"Cookie: uRoamTestCookie=TEST; VHOST=standard; MRHSession=%[2]s\r\n"+
			"Referer: https://%[1]s/my.activation.php3\r\n"+
			"User-Agent: %[3]s\r\n"+
			"Host: %[1]s\r\n"+
			"\r\n", host, session, userAgent)
}

func paramsRequest(host, session, favoriteID string) string {
	return fmt.Sprintf(
		"GET /vdesk/vpn/connect.php3?resourcename=%[2]s&outform=xml&client_version=1.1 HTTP/1.0\r\n"+
			"Accept: */*\r\n"+
			"Accept-Language: en\r\n"+
			"Cookie: uRoamTestCookie=TEST; VHOST=standard; MRHSession=%[3]s\r\n"+
			"Referer: https://%[1]s/vdesk/index.php3\r\n"+
			"User-Agent: %[4]s\r\n"+
			"Host: %[1]s\r\n"+
			"\r\n", host, favoriteID, session, userAgent)
}
