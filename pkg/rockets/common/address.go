package common

import "strings"

const (
	schemeHTTP  = "http://"
	schemeHTTPS = "https://"
	schemeWS    = "ws://"
	schemeWSS   = "wss://"
)

// SetWSProtocol sets the WebSocket scheme according to the resource url:
// http becomes ws, https becomes wss, ws and wss are kept and a bare host
// gets ws.
func SetWSProtocol(url string) string {
	switch {
	case strings.HasPrefix(url, schemeWS), strings.HasPrefix(url, schemeWSS):
		return url
	case strings.HasPrefix(url, schemeHTTP):
		return schemeWS + strings.TrimPrefix(url, schemeHTTP)
	case strings.HasPrefix(url, schemeHTTPS):
		return schemeWSS + strings.TrimPrefix(url, schemeHTTPS)
	}
	return schemeWS + url
}
