// Package realip resolves the originating client address of a request.
//
// The recorder usually runs behind a reverse proxy, so rate limits and
// request logs need the address the proxy saw, not the proxy's own.
// Forwarded headers are believed only when TrustProxy is set and the
// connection peer is on the trusted proxy list; anything else a client
// puts in X-Forwarded-For is ignored.
package realip

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type ctxKey struct{}

// Config controls forwarded-header resolution.
type Config struct {
	// TrustProxy enables X-Forwarded-For and X-Real-IP resolution.
	TrustProxy bool
	// TrustedProxies lists the proxies allowed to set forwarded headers,
	// as CIDR ranges or single addresses.
	TrustedProxies []string
}

// proxySet answers membership questions for the trusted proxy ranges.
type proxySet []*net.IPNet

func newProxySet(specs []string) proxySet {
	var set proxySet
	for _, spec := range specs {
		if _, network, err := net.ParseCIDR(spec); err == nil {
			set = append(set, network)
			continue
		}
		// A bare address becomes a one-host range.
		ip := net.ParseIP(spec)
		if ip == nil {
			continue
		}
		bits := 128
		if ip.To4() != nil {
			bits = 32
		}
		mask := net.CIDRMask(bits, bits)
		set = append(set, &net.IPNet{IP: ip.Mask(mask), Mask: mask})
	}
	return set
}

func (s proxySet) contains(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, network := range s {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Middleware stores the resolved client address on the request context.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	var proxies proxySet
	if cfg.TrustProxy {
		proxies = newProxySet(cfg.TrustedProxies)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := resolve(r, cfg.TrustProxy, proxies)
			ctx := context.WithValue(r.Context(), ctxKey{}, addr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolve walks backwards from the connection peer towards the origin
// client, stopping at the first hop that is not one of our proxies.
func resolve(r *http.Request, trustProxy bool, proxies proxySet) string {
	peer := stripPort(r.RemoteAddr)
	if !trustProxy || !proxies.contains(peer) {
		return peer
	}

	// X-Forwarded-For reads "client, proxy1, proxy2": the rightmost hop
	// outside the trusted set is the address the outermost proxy saw.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !proxies.contains(hop) {
				return hop
			}
		}
		// Every hop is one of ours; the leftmost is the origin.
		return strings.TrimSpace(hops[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return peer
}

func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// GetClientIP returns the address resolved by Middleware. Without the
// middleware it falls back to the bare connection peer.
func GetClientIP(r *http.Request) string {
	if addr, ok := r.Context().Value(ctxKey{}).(string); ok && addr != "" {
		return addr
	}
	return stripPort(r.RemoteAddr)
}
