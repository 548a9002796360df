package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"promptly.app/internal/ingest"
	"promptly.app/internal/obs"
)

const signatureHeader = "X-Hub-Signature-256"

func (a *API) handleWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.verifyWebhook(w, r)
	case http.MethodPost:
		a.receiveWebhook(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// verifyWebhook answers the platform's subscription handshake by echoing the
// challenge back when the verify token matches.
func (a *API) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || token != a.opts.WebhookVerifyToken {
		writeError(w, r, http.StatusForbidden, "verification failed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// receiveWebhook validates the payload signature, when the platform sent one,
// before anything touches the store, then hands the payload to the ingestion
// pipeline. The response is 200 regardless of per-entry outcomes so the
// platform does not redeliver.
func (a *API) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "cannot read body")
		return
	}

	if sig := strings.TrimSpace(r.Header.Get(signatureHeader)); sig != "" && !a.validSignature(body, sig) {
		obs.WebhookSignatureFailures.Inc()
		writeError(w, r, http.StatusForbidden, "invalid signature")
		return
	}

	var payload ingest.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid payload")
		return
	}

	a.pipeline.ProcessWebhook(r.Context(), payload)
	writeJSON(w, http.StatusOK, map[string]any{"status": "received"})
}

func (a *API) validSignature(body []byte, header string) bool {
	if a.opts.WebhookSecret == "" {
		return false
	}
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	got, err := hex.DecodeString(header[len(prefix):])
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(a.opts.WebhookSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
