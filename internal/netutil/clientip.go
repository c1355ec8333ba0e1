// Package netutil derives caller identity from inbound HTTP requests.
package netutil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller address for bot-check verification and logging.
// Proxy headers win over the socket peer: the first X-Forwarded-For entry,
// then X-Real-IP, then the host part of RemoteAddr. Returns "" when nothing
// usable is present.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}

	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first := forwarded
		if comma := strings.Index(forwarded, ","); comma >= 0 {
			first = forwarded[:comma]
		}
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	return remoteHost(r.RemoteAddr)
}

func remoteHost(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// RemoteAddr without a port, e.g. from a unix socket listener.
		return strings.Trim(remoteAddr, "[]")
	}
	return host
}
