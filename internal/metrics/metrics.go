package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the NearHelp collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nearhelp",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nearhelp",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nearhelp",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	tasksCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nearhelp",
			Subsystem: "tasks",
			Name:      "created_total",
			Help:      "Total number of tasks posted.",
		},
	)

	helpOffers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nearhelp",
			Subsystem: "helpers",
			Name:      "offers_total",
			Help:      "Help offers by outcome.",
		},
		[]string{"result"},
	)

	follows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nearhelp",
			Subsystem: "users",
			Name:      "follow_changes_total",
			Help:      "Follow edges created or removed.",
		},
		[]string{"action"},
	)

	comments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nearhelp",
			Subsystem: "comments",
			Name:      "created_total",
			Help:      "Total number of comments posted.",
		},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nearhelp",
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Notifications by kind and delivery channel.",
		},
		[]string{"kind", "channel", "success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		tasksCreated,
		helpOffers,
		follows,
		comments,
		notifications,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Unmatched labels requests that no registered route serves.
const Unmatched = "unmatched"

// Routes is a ServeMux that remembers the patterns registered on it, so the
// route of a request can be used as a bounded metric label.
type Routes struct {
	mux      *http.ServeMux
	patterns map[string]struct{}
}

func NewRoutes() *Routes {
	return &Routes{mux: http.NewServeMux(), patterns: make(map[string]struct{})}
}

// Handle registers h for pattern. Routes must be registered before serving.
func (rt *Routes) Handle(pattern string, h http.Handler) {
	rt.mux.Handle(pattern, h)
	rt.patterns[pattern] = struct{}{}
}

func (rt *Routes) HandleFunc(pattern string, h func(http.ResponseWriter, *http.Request)) {
	rt.Handle(pattern, http.HandlerFunc(h))
}

func (rt *Routes) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// Label returns the path part of the pattern serving r, or Unmatched. The
// mux reports cleaned paths for redirects, so only registered patterns are
// trusted.
func (rt *Routes) Label(r *http.Request) string {
	_, pattern := rt.mux.Handler(r)
	if _, ok := rt.patterns[pattern]; !ok {
		return Unmatched
	}
	if _, path, found := strings.Cut(pattern, " "); found {
		return path
	}
	return pattern
}

// StatusRecorder captures the status code written through it.
type StatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *StatusRecorder) WriteHeader(code int) {
	if r.Status == 0 {
		r.Status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *StatusRecorder) Write(b []byte) (int, error) {
	if r.Status == 0 {
		r.Status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// InstrumentHandler counts and times every request passing through next,
// labelled by the route in routes that serves it.
func InstrumentHandler(routes *Routes, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &StatusRecorder{ResponseWriter: w}
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		if rec.Status == 0 {
			rec.Status = http.StatusOK
		}
		route := routes.Label(r)
		method := strings.ToUpper(r.Method)
		if route == Unmatched {
			method = Unmatched
		}
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.Status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

func TaskCreated() {
	tasksCreated.Inc()
}

// HelpOffer records an offer outcome: "created", "repeated" or "rejected".
func HelpOffer(result string) {
	helpOffers.WithLabelValues(result).Inc()
}

// FollowChanged records "follow" or "unfollow".
func FollowChanged(action string) {
	follows.WithLabelValues(action).Inc()
}

func CommentAdded() {
	comments.Inc()
}

func NotificationSent(kind, channel string, success bool) {
	notifications.WithLabelValues(kind, channel, strconv.FormatBool(success)).Inc()
}
