// Package realip extracts the client IP used as the rate-limit identity.
package realip

import (
	"net"
	"net/http"
	"strings"
)

// FromRequest returns the best client identifier for a request. Proxy
// headers are consulted in order: X-Forwarded-For (first plausible entry),
// X-Real-IP, CF-Connecting-IP, then the socket address. Entries that are
// empty or the literal "unknown" are skipped.
func FromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := normalize(part); ip != "" {
				return ip
			}
		}
	}

	if ip := normalize(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	if ip := normalize(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	if ip := peer(r.RemoteAddr); ip != "" {
		return ip
	}
	return "unknown"
}

// Resolver applies the trusted-proxy policy. With no ranges configured every
// peer's forwarding headers are honored; with ranges configured, headers
// from peers outside them are ignored and the socket address identifies the
// client.
type Resolver struct {
	trusted []*net.IPNet
}

// NewResolver parses the trusted CIDR ranges. Bare IPs are accepted as
// single-host ranges; entries that parse as neither are skipped.
func NewResolver(cidrs []string) *Resolver {
	r := &Resolver{}
	for _, entry := range cidrs {
		entry = strings.TrimSpace(entry)
		if _, ipnet, err := net.ParseCIDR(entry); err == nil {
			r.trusted = append(r.trusted, ipnet)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			r.trusted = append(r.trusted, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
		}
	}
	return r
}

// FromRequest returns the client identifier, consulting forwarding headers
// only when the peer is a trusted proxy.
func (r *Resolver) FromRequest(req *http.Request) string {
	if len(r.trusted) == 0 || r.trustedPeer(req.RemoteAddr) {
		return FromRequest(req)
	}
	if ip := peer(req.RemoteAddr); ip != "" {
		return ip
	}
	return "unknown"
}

func (r *Resolver) trustedPeer(remoteAddr string) bool {
	ip := net.ParseIP(peer(remoteAddr))
	if ip == nil {
		return false
	}
	for _, n := range r.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// peer extracts the socket host from a RemoteAddr, tolerating a missing
// port, e.g. in tests.
func peer(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return normalize(remoteAddr)
	}
	return normalize(host)
}

func normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "unknown") {
		return ""
	}
	return s
}
