// Package safehttp provides outbound HTTP transports for user-configured URLs.
package safehttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// DefaultDialTimeout bounds connection setup for NewTransport.
const DefaultDialTimeout = 5 * time.Second

// NewTransport returns a transport that rejects connections to private,
// loopback or link-local addresses to reduce SSRF risk.
func NewTransport(dialTimeout time.Duration) *http.Transport {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	dialer := &net.Dialer{Timeout: dialTimeout}
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}

			host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
			ip := net.ParseIP(host)
			if ip == nil {
				conn.Close()
				return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
			}
			if !Allowed(ip) {
				conn.Close()
				return nil, fmt.Errorf("access to private IP %s is denied", ip)
			}
			return conn, nil
		},
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// Allowed reports whether ip is a public unicast address.
func Allowed(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified())
}
