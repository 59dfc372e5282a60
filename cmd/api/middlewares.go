package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/harlequingg/nearhelp/internal/data"
	"github.com/harlequingg/nearhelp/internal/metrics"
)

type contextKey string

const (
	userContextKey contextKey = "user"
	logContextKey  contextKey = "log"
)

// contextGetUser returns the signed-in user, or nil for anonymous requests.
func contextGetUser(r *http.Request) *data.User {
	u, _ := r.Context().Value(userContextKey).(*data.User)
	return u
}

// viewerID is 0 for anonymous requests.
func viewerID(r *http.Request) int64 {
	if u := contextGetUser(r); u != nil {
		return u.ID
	}
	return 0
}

func (app *application) requestLog(r *http.Request) *logrus.Entry {
	if entry, ok := r.Context().Value(logContextKey).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(app.log)
}

// logRequests tags each request with an id and logs it once it is served.
func (app *application) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		entry := app.log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
		})
		sw := &metrics.StatusRecorder{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), logContextKey, entry)))

		entry.WithFields(logrus.Fields{
			"status":   sw.Status,
			"duration": time.Since(start).String(),
		}).Debug("request served")
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.fail(w, r, fmt.Errorf("panic: %v", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate resolves an optional bearer token to the user it was issued
// for. Requests without an Authorization header stay anonymous.
func (app *application) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Authorization")
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, errors.New("invalid Authorization header"), http.StatusUnauthorized)
			return
		}

		userID, err := app.tokens.Parse(parts[1])
		if err != nil {
			writeError(w, errors.New("invalid token"), http.StatusUnauthorized)
			return
		}
		u, err := app.users.Get(r.Context(), userID)
		if err != nil {
			if errors.Is(err, data.ErrNotFound) {
				writeError(w, errors.New("user no longer exists"), http.StatusUnauthorized)
				return
			}
			app.fail(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (app *application) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if contextGetUser(r) == nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitors holds one token bucket per client IP.
type visitors struct {
	mu      sync.Mutex
	clients map[string]*visitor
	rps     rate.Limit
	burst   int
}

func newVisitors(rps float64, burst int) *visitors {
	return &visitors{clients: make(map[string]*visitor), rps: rate.Limit(rps), burst: burst}
}

func (v *visitors) allow(ip string, now time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.clients[ip]
	if !ok {
		c = &visitor{limiter: rate.NewLimiter(v.rps, v.burst)}
		v.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// prune forgets clients not seen for idle.
func (v *visitors) prune(now time.Time, idle time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for ip, c := range v.clients {
		if now.Sub(c.lastSeen) >= idle {
			delete(v.clients, ip)
		}
	}
}

func (v *visitors) size() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.clients)
}

// janitor prunes every interval until ctx is done.
func (v *visitors) janitor(ctx context.Context, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			v.prune(now, idle)
		}
	}
}

// rateLimit applies a per-IP limit. The janitor pruning idle clients stops
// with ctx.
func (app *application) rateLimit(ctx context.Context, next http.Handler) http.Handler {
	if !app.config.Limiter.Enabled {
		return next
	}
	v := newVisitors(app.config.Limiter.RPS, app.config.Limiter.Burst)
	go v.janitor(ctx, time.Minute, 3*time.Minute)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !v.allow(ip, time.Now()) {
			writeError(w, errors.New("rate limit exceeded"), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (app *application) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Origin")
		w.Header().Add("Vary", "Access-Control-Request-Method")

		origin := r.Header.Get("Origin")
		if origin != "" {
			for _, o := range app.config.CORS.TrustedOrigins {
				if origin == o || o == "*" {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					// preflight request
					if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
						w.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET, POST, PUT")
						w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
						w.WriteHeader(http.StatusOK)
						return
					}
					break
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
