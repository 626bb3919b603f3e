package api

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/cuemby/lookout/pkg/log"
)

// maxLimiters bounds the per-client limiter map
const maxLimiters = 1024

// AllowFrom rejects clients whose address matches none of cidrs. Entries
// may be CIDR ranges or single addresses. An empty list allows everyone.
func AllowFrom(cidrs []string, next http.Handler) http.Handler {
	if len(cidrs) == 0 {
		return next
	}

	var nets []*net.IPNet
	for _, c := range cidrs {
		if n := parseCIDR(c); n != nil {
			nets = append(nets, n)
		} else {
			log.Logger.Warn().Str("cidr", c).Msg("Ignoring invalid API allow entry")
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := net.ParseIP(clientIP(r))
		if ip != nil {
			for _, n := range nets {
				if n.Contains(ip) {
					next.ServeHTTP(w, r)
					return
				}
			}
		}

		log.Logger.Warn().Str("remote", r.RemoteAddr).Msg("API access denied by IP filter")
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "access denied by IP filter", Kind: "forbidden"})
	})
}

// commandLimiter rate limits session commands per client address
type commandLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// LimitCommands rate limits every non-read request per client address.
// rps <= 0 disables the limit.
func LimitCommands(rps float64, burst int, next http.Handler) http.Handler {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}

	l := &commandLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isReadOnlyRequest(r) || l.allow(clientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}

		log.Logger.Warn().Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Msg("Session command rate limited")
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "too many session commands", Kind: "rate_limited"})
	})
}

func (l *commandLimiter) allow(client string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[client]
	if !ok {
		if len(l.limiters) >= maxLimiters {
			l.limiters = make(map[string]*rate.Limiter)
		}
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[client] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// clientIP returns the peer address. Forwarding headers are not trusted:
// the API is meant to be reached directly.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseCIDR accepts "10.0.0.0/8" or a bare address
func parseCIDR(s string) *net.IPNet {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		ip := net.ParseIP(s)
		if ip == nil {
			return nil
		}
		bits := 128
		if ip.To4() != nil {
			ip = ip.To4()
			bits = 32
		}
		return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
	}

	_, n, err := net.ParseCIDR(s)
	if err != nil {
		return nil
	}
	return n
}
