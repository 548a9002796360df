package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Общие HTTP-метрики
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets, // [0.005..10]
		},
		[]string{"method", "path", "status"},
	)

	// Доменные метрики инбокса.
	CommentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comments_ingested_total",
			Help: "Comments inserted by the ingestion pipeline.",
		},
		[]string{"source"},
	)

	RepliesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "replies_sent_total",
		Help: "Replies accepted by the platform and recorded.",
	})

	WebhookSignatureFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_signature_failures_total",
		Help: "Webhook deliveries rejected due to a bad HMAC signature.",
	})
)

// Регистрация метрик в default-регистре.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		CommentsIngested, RepliesSent, WebhookSignatureFailures,
	)
}

// Хэндлер Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Обёртка для измерения RPS/latency/в полёте.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses resource identifiers so metric label cardinality
// stays bounded. Without a router the raw path is inspected by hand.
func CanonicalPath(raw string) string {
	if raw == "" {
		return "/"
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	parts := strings.Split(strings.Trim(raw, "/"), "/")
	// /api/comments/{id} and /api/comments/{id}/reply
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "comments" {
		switch parts[2] {
		case "sync", "stream":
			return raw
		}
		if len(parts) == 3 {
			return "/api/comments/:id"
		}
		if len(parts) == 4 && parts[3] == "reply" {
			return "/api/comments/:id/reply"
		}
	}
	// /api/admin/brands/{id}[...]
	if len(parts) >= 4 && parts[0] == "api" && parts[1] == "admin" && parts[2] == "brands" {
		if len(parts) == 4 {
			return "/api/admin/brands/:id"
		}
		if len(parts) == 5 && parts[4] == "status" {
			return "/api/admin/brands/:id/status"
		}
		if len(parts) == 6 && parts[4] == "instagram" && parts[5] == "reconnect" {
			return "/api/admin/brands/:id/instagram/reconnect"
		}
	}
	return raw
}

// statusWriter — локальная копия, чтобы знать код ответа.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
