package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// withCORS mirrors the permissive CORS policy the original server
// applied uniformly across its HTTP surface (allow any origin, method,
// and header) — there is no per-route distinction to preserve.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ipLimiter hands out one token-bucket limiter per client address,
// bounding how fast a single remote can hit the REST surface (tile
// and overlay reads are the expensive ones). It never evicts entries;
// a long-lived server would want an idle sweep, but the request
// volume this is sized for doesn't justify one yet.
type ipLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	rps        rate.Limit
	burst      int
	trustProxy bool
}

func newIPLimiter(rps float64, burst int, trustProxy bool) *ipLimiter {
	return &ipLimiter{limiters: make(map[string]*rate.Limiter), rps: rate.Limit(rps), burst: burst, trustProxy: trustProxy}
}

func (l *ipLimiter) allow(r *http.Request) bool {
	host := l.clientAddr(r)

	l.mu.Lock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[host] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

// clientAddr resolves the address to rate-limit by. Behind a reverse
// proxy the real client IP arrives in X-Forwarded-For (BEHIND_PROXY);
// otherwise RemoteAddr is already the peer's own address.
func (l *ipLimiter) clientAddr(r *http.Request) string {
	if l.trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			if i := strings.IndexByte(fwd, ','); i >= 0 {
				fwd = fwd[:i]
			}
			return strings.TrimSpace(fwd)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (l *ipLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(r) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
