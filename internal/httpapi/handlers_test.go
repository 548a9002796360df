package httpapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"promptly.app/internal/auth"
	"promptly.app/internal/ids"
	"promptly.app/internal/inbox"
	"promptly.app/internal/ingest"
	"promptly.app/internal/instagram"
	"promptly.app/internal/stream"
)

const (
	testWebhookSecret = "hook-secret"
	testVerifyToken   = "verify-token"
)

// fakeGraph emulates the Graph API endpoints the service calls.
type fakeGraph struct {
	mediaJSON   atomic.Value // string
	failReplies atomic.Bool
	replyCalls  atomic.Int32
}

func (g *fakeGraph) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/oauth/access_token":
			_, _ = w.Write([]byte(`{"access_token":"user-tok","token_type":"bearer","expires_in":5184000}`))
		case r.URL.Path == "/me/accounts":
			_, _ = w.Write([]byte(`{"data":[{"id":"p1","name":"Acme Page","access_token":"page-tok","instagram_business_account":{"id":"ig_9"}}]}`))
		case strings.HasSuffix(r.URL.Path, "/media"):
			payload, _ := g.mediaJSON.Load().(string)
			if payload == "" {
				payload = `{"data":[]}`
			}
			_, _ = w.Write([]byte(payload))
		case strings.HasSuffix(r.URL.Path, "/replies"):
			g.replyCalls.Add(1)
			if g.failReplies.Load() {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","code":190}}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"ig_r_1"}`))
		default:
			_, _ = w.Write([]byte(`{"username":"acme_official","profile_picture_url":"https://cdn.example/acme.jpg"}`))
		}
	})
}

type testEnv struct {
	t       *testing.T
	baseURL string
	client  *http.Client
	store   *inbox.InMemory
	graph   *fakeGraph
}

func newTestAPI(t *testing.T) *testEnv {
	t.Helper()

	store := inbox.NewInMemory()
	graph := &fakeGraph{}
	graphSrv := httptest.NewServer(graph.handler())
	t.Cleanup(graphSrv.Close)

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	ig := instagram.NewClient(instagram.Config{
		BaseURL:     graphSrv.URL,
		AppID:       "app-id",
		AppSecret:   "app-secret",
		RedirectURL: graphSrv.URL + "/callback",
		HTTPClient:  graphSrv.Client(),
	})
	events := stream.New()
	pipeline := ingest.New(store, ig, events)

	api := New(store, tokens, pipeline, ig, events, ReadyProbe{}, Options{
		FrontendURL:        "http://localhost:3000",
		WebhookVerifyToken: testVerifyToken,
		WebhookSecret:      testWebhookSecret,
		Version:            "test",
	})
	srv := httptest.NewServer(api.Handler(1<<20, 1000, 1000))
	t.Cleanup(srv.Close)

	client := srv.Client()
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &testEnv{t: t, baseURL: srv.URL, client: client, store: store, graph: graph}
}

func (e *testEnv) do(method, path string, body any, headers map[string]string) *http.Response {
	e.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (e *testEnv) get(path string, params url.Values, headers map[string]string) *http.Response {
	e.t.Helper()
	if params != nil {
		path += "?" + params.Encode()
	}
	return e.do(http.MethodGet, path, nil, headers)
}

func (e *testEnv) post(path string, body any, headers map[string]string) *http.Response {
	e.t.Helper()
	return e.do(http.MethodPost, path, body, headers)
}

// seedBrand creates a brand, its operator user and a connected account.
func (e *testEnv) seedBrand(name, email string) (brandID string) {
	e.t.Helper()
	ctx := e.t.Context()
	brand := &inbox.Brand{ID: ids.New(), Name: name, Category: "retail", IsActive: true}
	if err := e.store.CreateBrand(ctx, brand); err != nil {
		e.t.Fatalf("CreateBrand: %v", err)
	}
	hash, err := auth.HashPassword("operator-pass")
	if err != nil {
		e.t.Fatalf("HashPassword: %v", err)
	}
	user := &inbox.User{
		ID: ids.New(), Email: email, PasswordHash: hash,
		FullName: "Op Erator", Role: string(auth.RoleBrandUser), BrandID: brand.ID,
	}
	if err := e.store.CreateUser(ctx, user); err != nil {
		e.t.Fatalf("CreateUser: %v", err)
	}
	account := &inbox.InstagramAccount{
		ID: ids.New(), BrandID: brand.ID, IGUserID: "ig_" + brand.ID,
		Username: name, AccessToken: "page-tok",
	}
	if err := e.store.UpsertAccount(ctx, account); err != nil {
		e.t.Fatalf("UpsertAccount: %v", err)
	}
	return brand.ID
}

func (e *testEnv) seedAdmin(email string) {
	e.t.Helper()
	hash, err := auth.HashPassword("admin-pass")
	if err != nil {
		e.t.Fatalf("HashPassword: %v", err)
	}
	user := &inbox.User{
		ID: ids.New(), Email: email, PasswordHash: hash,
		FullName: "Ad Min", Role: string(auth.RoleAdmin),
	}
	if err := e.store.CreateUser(e.t.Context(), user); err != nil {
		e.t.Fatalf("CreateUser: %v", err)
	}
}

func (e *testEnv) login(email, password string) string {
	e.t.Helper()
	resp := e.post("/api/auth/login", map[string]any{"email": email, "password": password}, nil)
	if resp.StatusCode != http.StatusOK {
		e.t.Fatalf("login status: %d", resp.StatusCode)
	}
	payload := decode[loginResponse](e.t, resp)
	if payload.Token == "" {
		e.t.Fatal("empty token issued")
	}
	return payload.Token
}

func (e *testEnv) postWebhook(payload any) *http.Response {
	e.t.Helper()
	return e.postWebhookSigned(payload, testWebhookSecret)
}

func (e *testEnv) postWebhookSigned(payload any, secret string) *http.Response {
	e.t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		e.t.Fatalf("marshal webhook: %v", err)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	req, err := http.NewRequest(http.MethodPost, e.baseURL+"/api/webhooks", bytes.NewReader(body))
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	resp, err := e.client.Do(req)
	if err != nil {
		e.t.Fatalf("do request: %v", err)
	}
	return resp
}

func webhookBody(igUserID, commentID, text, username string) map[string]any {
	return map[string]any{
		"object": "instagram",
		"entry": []map[string]any{{
			"id":   igUserID,
			"time": time.Now().Unix(),
			"changes": []map[string]any{{
				"field": "comments",
				"value": map[string]any{
					"id":    commentID,
					"text":  text,
					"from":  map[string]any{"id": "u1", "username": username},
					"media": map[string]any{"id": "m1"},
				},
			}},
		}},
	}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestLoginFlow(t *testing.T) {
	env := newTestAPI(t)
	env.seedBrand("Acme", "op@acme.test")

	resp := env.post("/api/auth/login", map[string]any{"email": "op@acme.test", "password": "wrong"}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", resp.StatusCode)
	}

	resp = env.post("/api/auth/login", map[string]any{"email": "nobody@acme.test", "password": "x"}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown user: expected 401, got %d", resp.StatusCode)
	}

	token := env.login("op@acme.test", "operator-pass")
	resp = env.get("/api/auth/me", nil, bearer(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status: %d", resp.StatusCode)
	}
	payload := decode[map[string]map[string]any](t, resp)
	if payload["user"]["email"] != "op@acme.test" {
		t.Errorf("unexpected me payload: %v", payload)
	}
	if _, ok := payload["user"]["password_hash"]; ok {
		t.Error("password hash leaked in response")
	}
}

func TestAPIEnforcesAuth(t *testing.T) {
	env := newTestAPI(t)

	resp := env.get("/api/comments", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	errBody := decode[map[string]any](t, resp)
	if errBody["error"] == "" {
		t.Fatal("expected error message")
	}
}

func TestWebhookVerificationHandshake(t *testing.T) {
	env := newTestAPI(t)

	resp := env.get("/api/webhooks", url.Values{
		"hub.mode":         {"subscribe"},
		"hub.verify_token": {testVerifyToken},
		"hub.challenge":    {"challenge-42"},
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if buf.String() != "challenge-42" {
		t.Errorf("challenge echo = %q", buf.String())
	}

	resp = env.get("/api/webhooks", url.Values{
		"hub.mode":         {"subscribe"},
		"hub.verify_token": {"wrong"},
		"hub.challenge":    {"challenge-42"},
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("bad verify token: expected 403, got %d", resp.StatusCode)
	}
}

func TestWebhookIngestsAndScopes(t *testing.T) {
	env := newTestAPI(t)
	brandA := env.seedBrand("Acme", "op@acme.test")
	env.seedBrand("Globex", "op@globex.test")

	resp := env.postWebhook(webhookBody("ig_"+brandA, "ig_c_1", "love this", "alice"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook status: %d", resp.StatusCode)
	}

	// Redelivery of the same notification must not duplicate.
	resp = env.postWebhook(webhookBody("ig_"+brandA, "ig_c_1", "love this", "alice"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("redelivery status: %d", resp.StatusCode)
	}

	tokenA := env.login("op@acme.test", "operator-pass")
	resp = env.get("/api/comments", nil, bearer(tokenA))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %d", resp.StatusCode)
	}
	list := decode[listCommentsResponse](t, resp)
	if list.Pagination.Total != 1 || len(list.Comments) != 1 {
		t.Fatalf("total=%d len=%d, want 1/1", list.Pagination.Total, len(list.Comments))
	}
	if list.Comments[0].Username != "alice" || list.Comments[0].AuthorID != "u1" {
		t.Errorf("author not carried over: %+v", list.Comments[0])
	}
	commentID := list.Comments[0].ID

	// The other brand sees nothing.
	tokenB := env.login("op@globex.test", "operator-pass")
	resp = env.get("/api/comments", nil, bearer(tokenB))
	listB := decode[listCommentsResponse](t, resp)
	if listB.Pagination.Total != 0 {
		t.Errorf("foreign brand total = %d, want 0", listB.Pagination.Total)
	}

	// Nor can it read the row directly or name the other brand's scope.
	resp = env.get("/api/comments/"+commentID, nil, bearer(tokenB))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cross-brand read: expected 404, got %d", resp.StatusCode)
	}
	resp = env.get("/api/comments", url.Values{"brand_id": {brandA}}, bearer(tokenB))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("cross-brand scope: expected 403, got %d", resp.StatusCode)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newTestAPI(t)
	brandID := env.seedBrand("Acme", "op@acme.test")

	resp := env.postWebhookSigned(webhookBody("ig_"+brandID, "ig_c_1", "hi", "alice"), "wrong-secret")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	// Nothing was written.
	_, total, err := env.store.ListComments(t.Context(), inbox.ListCommentsFilter{BrandID: brandID, Limit: 10})
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d after rejected webhook, want 0", total)
	}
}

func TestWebhookUnsignedDeliveryIsProcessed(t *testing.T) {
	env := newTestAPI(t)
	brandID := env.seedBrand("Acme", "op@acme.test")

	// The signature check only gates deliveries that carry the header.
	resp := env.post("/api/webhooks", webhookBody("ig_"+brandID, "ig_c_1", "hi", "alice"), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unsigned delivery: expected 200, got %d", resp.StatusCode)
	}

	_, total, err := env.store.ListComments(t.Context(), inbox.ListCommentsFilter{BrandID: brandID, Limit: 10})
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d after unsigned webhook, want 1", total)
	}
}

func TestReplyFlow(t *testing.T) {
	env := newTestAPI(t)
	brandID := env.seedBrand("Acme", "op@acme.test")
	token := env.login("op@acme.test", "operator-pass")

	resp := env.postWebhook(webhookBody("ig_"+brandID, "ig_c_1", "question?", "alice"))
	resp.Body.Close()

	list := decode[listCommentsResponse](t, env.get("/api/comments", nil, bearer(token)))
	commentID := list.Comments[0].ID

	resp = env.post("/api/comments/"+commentID+"/reply", map[string]any{"text": "answer!"}, bearer(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reply status: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["message"] != "Reply sent successfully" || payload["reply_id"] != "ig_r_1" {
		t.Errorf("unexpected reply payload: %v", payload)
	}

	// Detail view shows the reply and the replied flag.
	resp = env.get("/api/comments/"+commentID, nil, bearer(token))
	detail := decode[struct {
		Comment inbox.Comment `json:"comment"`
		Replies []inbox.Reply `json:"replies"`
	}](t, resp)
	if detail.Comment.Status != inbox.StatusReplied {
		t.Errorf("comment status = %q, want REPLIED", detail.Comment.Status)
	}
	if len(detail.Replies) != 1 || detail.Replies[0].Text != "answer!" || detail.Replies[0].RepliedBy != "Op Erator" {
		t.Errorf("unexpected replies: %+v", detail.Replies)
	}

	// Empty text is rejected before any platform call.
	calls := env.graph.replyCalls.Load()
	resp = env.post("/api/comments/"+commentID+"/reply", map[string]any{"text": "  "}, bearer(token))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty text: expected 400, got %d", resp.StatusCode)
	}
	if env.graph.replyCalls.Load() != calls {
		t.Error("platform called for invalid request")
	}
}

func TestReplyUpstreamFailureStoresNothing(t *testing.T) {
	env := newTestAPI(t)
	brandID := env.seedBrand("Acme", "op@acme.test")
	token := env.login("op@acme.test", "operator-pass")

	resp := env.postWebhook(webhookBody("ig_"+brandID, "ig_c_1", "question?", "alice"))
	resp.Body.Close()
	list := decode[listCommentsResponse](t, env.get("/api/comments", nil, bearer(token)))
	commentID := list.Comments[0].ID

	env.graph.failReplies.Store(true)
	resp = env.post("/api/comments/"+commentID+"/reply", map[string]any{"text": "answer!"}, bearer(token))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	errBody := decode[map[string]any](t, resp)
	if msg, _ := errBody["error"].(string); !strings.Contains(msg, "Invalid OAuth") {
		t.Errorf("upstream detail missing from error: %v", errBody)
	}

	replies, err := env.store.ListReplies(t.Context(), commentID)
	if err != nil {
		t.Fatalf("ListReplies: %v", err)
	}
	if len(replies) != 0 {
		t.Error("reply stored despite upstream failure")
	}
	c, err := env.store.GetComment(t.Context(), brandID, commentID)
	if err != nil {
		t.Fatalf("GetComment: %v", err)
	}
	if c.Status != inbox.StatusOpen {
		t.Errorf("comment status = %q despite upstream failure", c.Status)
	}
}

func TestSyncEndpoint(t *testing.T) {
	env := newTestAPI(t)
	env.seedBrand("Acme", "op@acme.test")
	token := env.login("op@acme.test", "operator-pass")

	env.graph.mediaJSON.Store(`{"data":[
		{"id":"m1","comments":{"data":[
			{"id":"ig_c_1","text":"one","username":"alice","like_count":2},
			{"id":"ig_c_2","text":"two","username":"bob"}
		]}},
		{"id":"m2","comments":{"data":[{"id":"ig_c_3","text":"three"}]}}
	]}`)

	resp := env.post("/api/comments/sync", nil, bearer(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sync status: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["message"] != "Sync completed" || payload["comments_added"] != float64(3) {
		t.Errorf("unexpected sync payload: %v", payload)
	}

	// Rerun adds nothing new.
	resp = env.post("/api/comments/sync", nil, bearer(token))
	payload = decode[map[string]any](t, resp)
	if payload["comments_added"] != float64(0) {
		t.Errorf("rerun comments_added = %v, want 0", payload["comments_added"])
	}

	// The OPEN filter covers the synced rows.
	resp = env.get("/api/comments", url.Values{"status": {inbox.StatusOpen}}, bearer(token))
	list := decode[listCommentsResponse](t, resp)
	if list.Pagination.Total != 3 {
		t.Errorf("open total = %d, want 3", list.Pagination.Total)
	}

	// The account remembers when it was last pulled.
	account := decode[map[string]inbox.InstagramAccount](t, env.get("/api/instagram/account", nil, bearer(token)))["account"]
	if account.LastSyncAt == nil {
		t.Error("last_sync_at not stamped after sync")
	}
}

func TestAdminBrandLifecycle(t *testing.T) {
	env := newTestAPI(t)
	env.seedAdmin("root@promptly.test")
	adminToken := env.login("root@promptly.test", "admin-pass")

	// Brand users may not touch the admin surface.
	env.seedBrand("Acme", "op@acme.test")
	brandToken := env.login("op@acme.test", "operator-pass")
	resp := env.get("/api/admin/brands", nil, bearer(brandToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("brand user on admin route: expected 403, got %d", resp.StatusCode)
	}

	// Create a brand together with its operator.
	resp = env.post("/api/admin/brands", map[string]any{
		"name":     "Globex",
		"category": "tech",
		"user":     map[string]any{"email": "op@globex.test", "password": "globex-pass", "full_name": "Glo Bex"},
	}, bearer(adminToken))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", resp.StatusCode)
	}
	created := decode[map[string]map[string]any](t, resp)
	brandID, _ := created["brand"]["id"].(string)
	if brandID == "" {
		t.Fatal("no brand id in response")
	}
	if created["user"]["email"] != "op@globex.test" {
		t.Errorf("operator not created: %v", created["user"])
	}

	// The new operator can sign in right away.
	_ = env.login("op@globex.test", "globex-pass")

	// Update, deactivate, request reconnection.
	resp = env.do(http.MethodPut, "/api/admin/brands/"+brandID, map[string]any{
		"name": "Globex Corp", "category": "tech", "description": "updated",
	}, bearer(adminToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status: %d", resp.StatusCode)
	}
	updated := decode[map[string]map[string]any](t, resp)
	if updated["brand"]["name"] != "Globex Corp" {
		t.Errorf("update not applied: %v", updated["brand"])
	}

	// Detail view aggregates the operator and comment counters.
	resp = env.get("/api/admin/brands/"+brandID, nil, bearer(adminToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("detail status: %d", resp.StatusCode)
	}
	detail := decode[struct {
		Brand inbox.Brand    `json:"brand"`
		Users []inbox.User   `json:"users"`
		Stats map[string]int `json:"stats"`
	}](t, resp)
	if detail.Brand.Name != "Globex Corp" {
		t.Errorf("detail brand: %+v", detail.Brand)
	}
	if len(detail.Users) != 1 || detail.Users[0].Email != "op@globex.test" {
		t.Errorf("detail users: %+v", detail.Users)
	}
	if detail.Stats["total_comments"] != 0 || detail.Stats["open_comments"] != 0 {
		t.Errorf("detail stats: %v", detail.Stats)
	}

	resp = env.do(http.MethodPatch, "/api/admin/brands/"+brandID+"/status", map[string]any{"is_active": false}, bearer(adminToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status change: %d", resp.StatusCode)
	}

	resp = env.post("/api/admin/brands/"+brandID+"/instagram/reconnect", nil, bearer(adminToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		// No account connected yet for this brand: reconnect targets the account row.
		t.Fatalf("reconnect without account: expected 404, got %d", resp.StatusCode)
	}

	// Filtered listing.
	resp = env.get("/api/admin/brands", url.Values{"is_active": {"false"}}, bearer(adminToken))
	listing := decode[map[string][]inbox.Brand](t, resp)
	if len(listing["brands"]) != 1 || listing["brands"][0].ID != brandID {
		t.Errorf("filtered listing: %+v", listing["brands"])
	}

	// Every admin action landed in the activity log, newest first.
	resp = env.get("/api/admin/logs", nil, bearer(adminToken))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logs status: %d", resp.StatusCode)
	}
	logsPayload := decode[struct {
		Logs       []inbox.ActivityLog `json:"logs"`
		Pagination inbox.Page          `json:"pagination"`
	}](t, resp)
	if logsPayload.Pagination.Total != 3 {
		t.Fatalf("log total = %d, want 3", logsPayload.Pagination.Total)
	}
	actions := []string{logsPayload.Logs[0].Action, logsPayload.Logs[1].Action, logsPayload.Logs[2].Action}
	want := []string{inbox.ActionDisable, inbox.ActionUpdate, inbox.ActionCreate}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("log[%d].action = %s, want %s", i, actions[i], want[i])
		}
	}
	for _, l := range logsPayload.Logs {
		if l.AdminEmail != "root@promptly.test" {
			t.Errorf("admin email not joined: %+v", l)
		}
	}
}

func TestAdminReconnectFlagsAccount(t *testing.T) {
	env := newTestAPI(t)
	env.seedAdmin("root@promptly.test")
	brandID := env.seedBrand("Acme", "op@acme.test")
	adminToken := env.login("root@promptly.test", "admin-pass")

	resp := env.post("/api/admin/brands/"+brandID+"/instagram/reconnect", nil, bearer(adminToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reconnect status: %d", resp.StatusCode)
	}

	account, err := env.store.GetAccountByBrand(t.Context(), brandID)
	if err != nil {
		t.Fatalf("GetAccountByBrand: %v", err)
	}
	if account.IsConnected {
		t.Error("account still connected after reconnect request")
	}

	// A sync now fails until the brand completes OAuth again.
	brandToken := env.login("op@acme.test", "operator-pass")
	resp = env.post("/api/comments/sync", nil, bearer(brandToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("sync on disconnected account: expected 400, got %d", resp.StatusCode)
	}
}

func TestBrandMe(t *testing.T) {
	env := newTestAPI(t)
	brandID := env.seedBrand("Acme", "op@acme.test")
	token := env.login("op@acme.test", "operator-pass")

	resp := env.get("/api/brands/me", nil, bearer(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	payload := decode[map[string]map[string]any](t, resp)
	if payload["brand"]["id"] != brandID {
		t.Errorf("unexpected brand: %v", payload["brand"])
	}
	if payload["instagram_account"]["is_connected"] != true {
		t.Errorf("unexpected account: %v", payload["instagram_account"])
	}

	// Admins have no brand of their own.
	env.seedAdmin("root@promptly.test")
	adminToken := env.login("root@promptly.test", "admin-pass")
	resp = env.get("/api/brands/me", nil, bearer(adminToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("admin on brands/me: expected 403, got %d", resp.StatusCode)
	}
	resp = env.get("/api/instagram/account", nil, bearer(adminToken))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("admin on instagram/account: expected 403, got %d", resp.StatusCode)
	}
}

func TestInstagramConnectAndDisconnect(t *testing.T) {
	env := newTestAPI(t)
	brandID := env.seedBrand("Acme", "op@acme.test")
	token := env.login("op@acme.test", "operator-pass")

	resp := env.get("/api/instagram/connect-url", nil, bearer(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("connect-url status: %d", resp.StatusCode)
	}
	payload := decode[map[string]string](t, resp)
	connectURL, err := url.Parse(payload["auth_url"])
	if err != nil {
		t.Fatalf("parse connect url: %v", err)
	}
	state := connectURL.Query().Get("state")
	if state == "" {
		t.Fatal("no state in connect url")
	}

	// The browser returns from Facebook with code and state.
	resp = env.get("/api/instagram/callback", url.Values{"code": {"auth-code"}, "state": {state}}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("callback status: %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.Contains(loc, "instagram_connected=true") {
		t.Errorf("callback redirect = %q", loc)
	}

	account, err := env.store.GetAccountByBrand(t.Context(), brandID)
	if err != nil {
		t.Fatalf("GetAccountByBrand: %v", err)
	}
	if account.IGUserID != "ig_9" || account.Username != "acme_official" || account.AccessToken != "page-tok" {
		t.Errorf("account not refreshed from platform: %+v", account)
	}

	// The account endpoint shows the fresh identity but never the token.
	resp = env.get("/api/instagram/account", nil, bearer(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("account status: %d", resp.StatusCode)
	}
	accountView := decode[map[string]map[string]any](t, resp)
	if accountView["account"]["username"] != "acme_official" {
		t.Errorf("unexpected account payload: %v", accountView["account"])
	}
	if _, leaked := accountView["account"]["access_token"]; leaked {
		t.Error("access token leaked in account payload")
	}

	resp = env.post("/api/instagram/disconnect", nil, bearer(token))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("disconnect status: %d", resp.StatusCode)
	}
	account, err = env.store.GetAccountByBrand(t.Context(), brandID)
	if err != nil {
		t.Fatalf("GetAccountByBrand: %v", err)
	}
	if account.IsConnected {
		t.Error("account still connected after disconnect")
	}
}

func TestCallbackWithBadStateRedirectsWithError(t *testing.T) {
	env := newTestAPI(t)

	resp := env.get("/api/instagram/callback", url.Values{"code": {"auth-code"}, "state": {"not-base64!!"}}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("callback status: %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); !strings.Contains(loc, "instagram_error=invalid_state") {
		t.Errorf("redirect = %q", loc)
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestAPI(t)

	resp := env.get("/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	if payload["service"] != "promptly-api" {
		t.Errorf("unexpected healthz payload: %v", payload)
	}

	resp = env.get("/readyz", nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status: %d", resp.StatusCode)
	}
}
