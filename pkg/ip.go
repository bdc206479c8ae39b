package pkg

import (
	"net"
	"net/http"
	"strings"
)

// ReadUserIP returns the client address of the request: the first entry of
// X-Real-Ip / X-Forwarded-For when a proxy set them, otherwise the remote host.
func ReadUserIP(r *http.Request) string {
	ipAddr := r.Header.Get("X-Real-Ip")
	if ipAddr == "" {
		ipAddr = r.Header.Get("X-Forwarded-For")
	}
	if ipAddr != "" {
		// X-Forwarded-For: client, proxy1, proxy2
		ipAddr, _, _ = strings.Cut(ipAddr, ",")
		return strings.TrimSpace(ipAddr)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
