package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/mobi/internal/assistant"
	"github.com/kalambet/mobi/internal/dispatch"
	"github.com/kalambet/mobi/internal/intent"
	"github.com/kalambet/mobi/internal/provider"
	"github.com/kalambet/mobi/internal/resolver"
	"github.com/kalambet/mobi/internal/storage"
)

const testToken = "test-token-12345"

type fakeMessenger struct {
	number, body string
}

func (m *fakeMessenger) SendMessage(ctx context.Context, number, body string) error {
	m.number, m.body = number, body
	return nil
}

type testEnv struct {
	handler   http.Handler
	store     *storage.Store
	assistant *assistant.Assistant
	messenger *fakeMessenger
}

func fixedProvider(name string, capability provider.Capability, answer string) provider.Client {
	return provider.Wrap(provider.Descriptor{Name: name, Capability: capability},
		provider.FetchFunc(func(ctx context.Context, q string) (string, error) { return answer, nil }))
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	chat := fixedProvider("chat", provider.CapabilityGenerative, "chat answer")
	wiki := fixedProvider("wiki", provider.CapabilityFact, "Photosynthesis is how plants make food.")
	offline := provider.Wrap(provider.Descriptor{Name: "offline", Capability: provider.CapabilitySearch, Available: func() bool { return false }},
		provider.FetchFunc(func(ctx context.Context, q string) (string, error) { return "", provider.ErrUnavailable }))

	messenger := &fakeMessenger{}
	engine := dispatch.New(dispatch.Config{
		Classifier: intent.Default(),
		Resolver:   resolver.New(),
		Chains: map[string][]provider.Client{
			dispatch.ChainFact:           {wiki},
			dispatch.ChainSearch:         {chat},
			dispatch.ChainConversational: {chat},
		},
		Messenger: messenger,
	})
	a := assistant.New(assistant.Options{Engine: engine, History: store})

	return &testEnv{
		handler: NewHandler(Deps{
			Assistant: a,
			History:   store,
			Providers: []provider.Client{wiki, chat, offline},
			Token:     token,
		}),
		store:     store,
		assistant: a,
		messenger: messenger,
	}
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestHealth_NoAuthRequired(t *testing.T) {
	env := newTestEnv(t, testToken)

	w := serve(env.handler, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAuth_RejectsMissingAndWrongToken(t *testing.T) {
	env := newTestEnv(t, testToken)

	for _, token := range []string{"", "wrong-token"} {
		w := serve(env.handler, authReq(http.MethodGet, "/v1/history", "", token))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, w.Code)
		}
		body := decode[map[string]map[string]string](t, w)
		if body["error"]["type"] != "authentication_error" {
			t.Errorf("error body = %v", body)
		}
	}

	w := serve(env.handler, authReq(http.MethodGet, "/v1/history", "", testToken))
	if w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", w.Code)
	}
}

func TestAuth_DisabledWithoutToken(t *testing.T) {
	env := newTestEnv(t, "")

	w := serve(env.handler, authReq(http.MethodGet, "/v1/history", "", ""))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestDispatch_ReturnsResultAndRecordsHistory(t *testing.T) {
	env := newTestEnv(t, testToken)

	w := serve(env.handler, authReq(http.MethodPost, "/v1/dispatch", `{"text":"  What is Photosynthesis "}`, testToken))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[DispatchResponse](t, w)
	if resp.Query != "what is photosynthesis" {
		t.Errorf("Query = %q", resp.Query)
	}
	if resp.Result != "chat answer" || resp.Provider != "chat" || resp.Status != "success" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Intent != string(intent.WebSearchFallback) {
		t.Errorf("Intent = %q", resp.Intent)
	}
	if len(resp.Attempts) != 1 || resp.Attempts[0].Outcome != resolver.OutcomeSuccess {
		t.Errorf("Attempts = %+v", resp.Attempts)
	}

	rec, err := env.store.GetHistory(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if rec.Source != "typed" || rec.Response != "chat answer" {
		t.Errorf("record = %+v", rec)
	}
}

func TestDispatch_VoiceSource(t *testing.T) {
	env := newTestEnv(t, "")

	w := serve(env.handler, authReq(http.MethodPost, "/v1/dispatch", `{"text":"tell me a joke","source":"voice"}`, ""))
	resp := decode[DispatchResponse](t, w)

	rec, err := env.store.GetHistory(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if rec.Source != "voice" {
		t.Errorf("Source = %q, want voice", rec.Source)
	}
}

func TestDispatch_EmptyText(t *testing.T) {
	env := newTestEnv(t, "")

	w := serve(env.handler, authReq(http.MethodPost, "/v1/dispatch", `{"text":""}`, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[DispatchResponse](t, w)
	if resp.Result != dispatch.NoCommand || resp.Status != "failed" {
		t.Errorf("resp = %+v", resp)
	}
	if n, _ := env.store.CountHistory(context.Background()); n != 0 {
		t.Errorf("history count = %d, want 0", n)
	}
}

func TestDispatch_FollowUpsAnswerQuestions(t *testing.T) {
	env := newTestEnv(t, "")

	body := `{"text":"send a whatsapp message","followups":["98765 43210","see you at six"]}`
	w := serve(env.handler, authReq(http.MethodPost, "/v1/dispatch", body, ""))
	resp := decode[DispatchResponse](t, w)

	if resp.Result != "Message sent successfully." {
		t.Fatalf("Result = %q", resp.Result)
	}
	if env.messenger.number != "+919876543210" || env.messenger.body != "see you at six" {
		t.Errorf("messenger got %q / %q", env.messenger.number, env.messenger.body)
	}
}

func TestDispatch_MissingFollowUps(t *testing.T) {
	env := newTestEnv(t, "")

	w := serve(env.handler, authReq(http.MethodPost, "/v1/dispatch", `{"text":"search wikipedia"}`, ""))
	resp := decode[DispatchResponse](t, w)
	if resp.Result != "No topic provided for Wikipedia search." {
		t.Errorf("Result = %q", resp.Result)
	}
}

func TestDispatch_InvalidBody(t *testing.T) {
	env := newTestEnv(t, "")

	w := serve(env.handler, authReq(http.MethodPost, "/v1/dispatch", `{not json`, ""))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func seedHistory(t *testing.T, store *storage.Store, n int) {
	t.Helper()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		err := store.AppendHistory(context.Background(), storage.HistoryRecord{
			ID:        "h" + string(rune('a'+i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UserInput: "question " + string(rune('a'+i)),
			Response:  "answer",
			Intent:    string(intent.ConversationalFallback),
		})
		if err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}
}

func TestListHistory_Paging(t *testing.T) {
	env := newTestEnv(t, "")
	seedHistory(t, env.store, 5)

	w := serve(env.handler, authReq(http.MethodGet, "/v1/history?limit=2&offset=1", "", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	page := decode[HistoryPage](t, w)
	if page.Total != 5 {
		t.Errorf("Total = %d, want 5", page.Total)
	}
	if len(page.Entries) != 2 || page.Entries[0].ID != "hd" || page.Entries[1].ID != "hc" {
		t.Errorf("Entries = %+v", page.Entries)
	}
}

func TestListHistory_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t, "")

	w := serve(env.handler, authReq(http.MethodGet, "/v1/history", "", ""))
	if !strings.Contains(w.Body.String(), `"entries":[]`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=500", 100},
		{"limit=-1", 20},
		{"limit=abc", 20},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/v1/history?"+tt.query, nil)
		if got := parseIntParam(r, "limit", 20, 100); got != tt.want {
			t.Errorf("parseIntParam(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestGetHistory(t *testing.T) {
	env := newTestEnv(t, "")
	seedHistory(t, env.store, 1)

	w := serve(env.handler, authReq(http.MethodGet, "/v1/history/ha", "", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	entry := decode[HistoryEntry](t, w)
	if entry.Query != "question a" || entry.Status != "success" {
		t.Errorf("entry = %+v", entry)
	}

	w = serve(env.handler, authReq(http.MethodGet, "/v1/history/missing", "", ""))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestClearHistory(t *testing.T) {
	env := newTestEnv(t, "")
	seedHistory(t, env.store, 3)

	w := serve(env.handler, authReq(http.MethodDelete, "/v1/history", "", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode[map[string]any](t, w)
	if body["deleted"] != float64(3) {
		t.Errorf("body = %v", body)
	}
	if n, _ := env.store.CountHistory(context.Background()); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

type failingHistory struct{ HistoryStore }

func (failingHistory) ListHistory(ctx context.Context, limit, offset int) ([]storage.HistoryRecord, error) {
	return nil, errors.New("disk on fire")
}

func TestListHistory_StoreError(t *testing.T) {
	h := NewHandler(Deps{History: failingHistory{}})

	w := serve(h, authReq(http.MethodGet, "/v1/history", "", ""))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestProviders(t *testing.T) {
	env := newTestEnv(t, "")

	w := serve(env.handler, authReq(http.MethodGet, "/v1/providers", "", ""))
	statuses := decode[[]ProviderStatus](t, w)
	if len(statuses) != 3 {
		t.Fatalf("got %d providers", len(statuses))
	}
	if statuses[0].Name != "wiki" || !statuses[0].Available || statuses[0].Capability != string(provider.CapabilityFact) {
		t.Errorf("statuses[0] = %+v", statuses[0])
	}
	if statuses[2].Name != "offline" || statuses[2].Available {
		t.Errorf("statuses[2] = %+v", statuses[2])
	}
}
