package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 10000
	clientIdleTTL     = 10 * time.Minute
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one token bucket per client key, never more than max.
type limiterSet struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	max     int
}

func newLimiterSet(limit rate.Limit, burst, max int) *limiterSet {
	return &limiterSet{clients: make(map[string]*client), limit: limit, burst: burst, max: max}
}

func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[key]
	if !ok {
		if len(s.clients) >= s.max {
			s.evict(now)
		}
		c = &client{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// evict drops idle clients, and the least recently seen one if every
// tracked client is still active.
func (s *limiterSet) evict(now time.Time) {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, c := range s.clients {
		if now.Sub(c.lastSeen) > clientIdleTTL {
			delete(s.clients, k)
			continue
		}
		if oldestKey == "" || c.lastSeen.Before(oldest) {
			oldestKey, oldest = k, c.lastSeen
		}
	}
	if len(s.clients) >= s.max && oldestKey != "" {
		delete(s.clients, oldestKey)
	}
}

func (s *limiterSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Throttle limits form submissions per client address. Safe methods pass
// through untouched. perMinute == 0 disables the limiter.
//
// The key is the request's RemoteAddr host. Forwarding headers are only
// honoured if the router rewrote RemoteAddr from a trusted proxy before
// this middleware runs.
func Throttle(perMinute, burst int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}
	set := newLimiterSet(rate.Every(time.Minute/time.Duration(perMinute)), burst, maxTrackedClients)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			if !set.allow(clientKey(r), time.Now()) {
				http.Error(w, "Too many attempts, please wait a moment and try again.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
