package httpapi

import (
	"context"
	"net/http"

	"promptly.app/internal/audit"
	"promptly.app/internal/auth"
	"promptly.app/internal/inbox"
	"promptly.app/internal/ingest"
	"promptly.app/internal/instagram"
	"promptly.app/internal/obs"
	"promptly.app/internal/stream"
)

// Pinger is implemented by stores that can report database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe — простая проверка готовности (например, ping БД).
type ReadyProbe struct {
	DB Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.Ping(ctx)
}

// Options carries the settings the handlers need at request time.
type Options struct {
	FrontendURL        string
	WebhookVerifyToken string
	WebhookSecret      string
	Version            string
}

// API — HTTP слой.
type API struct {
	mux        *http.ServeMux
	store      inbox.Store
	tokens     *auth.Tokens
	pipeline   *ingest.Pipeline
	ig         *instagram.Client
	events     *stream.Stream
	recorder   *audit.Recorder
	readyProbe ReadyProbe
	opts       Options
}

func New(store inbox.Store, tokens *auth.Tokens, pipeline *ingest.Pipeline, ig *instagram.Client, events *stream.Stream, rp ReadyProbe, opts Options) *API {
	a := &API{
		mux:        http.NewServeMux(),
		store:      store,
		tokens:     tokens,
		pipeline:   pipeline,
		ig:         ig,
		events:     events,
		recorder:   audit.NewRecorder(store),
		readyProbe: rp,
		opts:       opts,
	}

	// health/ready
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/me", a.handleMe)

	// inbox
	a.mux.HandleFunc("/api/comments", a.handleCommentsCollection)
	a.mux.HandleFunc("/api/comments/sync", a.handleSync)
	a.mux.HandleFunc("/api/comments/stream", a.Stream)
	a.mux.HandleFunc("/api/comments/", a.handleCommentResource)

	// brand self-service
	a.mux.HandleFunc("/api/brands/me", a.handleBrandMe)

	// instagram connection
	a.mux.HandleFunc("/api/instagram/connect-url", a.handleConnectURL)
	a.mux.HandleFunc("/api/instagram/account", a.handleAccount)
	a.mux.HandleFunc("/api/instagram/callback", a.handleOAuthCallback)
	a.mux.HandleFunc("/api/instagram/disconnect", a.handleDisconnect)

	// platform webhooks
	a.mux.HandleFunc("/api/webhooks", a.handleWebhook)

	// admin
	adminOnly := RequireRole(auth.RoleAdmin)
	a.mux.Handle("/api/admin/brands", adminOnly(http.HandlerFunc(a.handleAdminBrandsCollection)))
	a.mux.Handle("/api/admin/brands/", adminOnly(http.HandlerFunc(a.handleAdminBrandResource)))
	a.mux.Handle("/api/admin/logs", adminOnly(http.HandlerFunc(a.handleAdminLogs)))

	// корень — 404
	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler(maxBodyBytes int64, rateBurst, ratePerSec int) http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RateLimit(h, rateBurst, ratePerSec)
	h = MaxBodyBytes(h, maxBodyBytes)
	h = CORS(h, a.opts.FrontendURL)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	// оборачиваем весь стек метриками
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "promptly-api",
		"version": a.opts.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
