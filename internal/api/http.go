package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/mobi/internal/dispatch"
	"github.com/kalambet/mobi/internal/provider"
	"github.com/kalambet/mobi/internal/storage"
	"github.com/kalambet/mobi/internal/voice"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Assistant handles one utterance end to end. *assistant.Assistant
// satisfies it.
type Assistant interface {
	Handle(ctx context.Context, u dispatch.Utterance, p voice.Prompter) dispatch.Result
}

// HistoryStore is the history access the API needs. *storage.Store
// satisfies it.
type HistoryStore interface {
	GetHistory(ctx context.Context, id string) (storage.HistoryRecord, error)
	ListHistory(ctx context.Context, limit, offset int) ([]storage.HistoryRecord, error)
	CountHistory(ctx context.Context) (int, error)
	ClearHistory(ctx context.Context) (int64, error)
}

type Deps struct {
	Assistant Assistant
	History   HistoryStore
	// Providers are reported by GET /v1/providers.
	Providers []provider.Client
	// Token enables bearer auth on /v1 routes when set.
	Token string
}

// NewHandler returns the HTTP API. /health is always unauthenticated.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Post("/dispatch", handleDispatch(deps))
		r.Get("/history", handleListHistory(deps))
		r.Get("/history/{id}", handleGetHistory(deps))
		r.Delete("/history", handleClearHistory(deps))
		r.Get("/providers", handleProviders(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// scriptedPrompter answers follow-up questions from a fixed list. Requests
// arriving over the network never reach the local microphone.
func scriptedPrompter(answers []string) voice.Prompter {
	return &voice.SpokenPrompter{
		Speaker:     voice.Silent{},
		Listener:    voice.NewScriptListener(answers...),
		MaxAttempts: 1,
	}
}

func handleDispatch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req DispatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		u := dispatch.NewUtterance(req.Text, dispatch.ParseSource(req.Source))
		res := deps.Assistant.Handle(r.Context(), u, scriptedPrompter(req.FollowUps))
		writeJSON(w, http.StatusOK, newDispatchResponse(res))
	}
}

func handleListHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		if limit == 0 {
			limit = 20
		}
		offset := parseIntParam(r, "offset", 0, 0)

		recs, err := deps.History.ListHistory(r.Context(), limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list history: %v", err)
			return
		}
		total, err := deps.History.CountHistory(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count history: %v", err)
			return
		}

		page := HistoryPage{Total: total, Entries: make([]HistoryEntry, 0, len(recs))}
		for _, rec := range recs {
			page.Entries = append(page.Entries, newHistoryEntry(rec))
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func handleGetHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		rec, err := deps.History.GetHistory(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "history entry not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get history entry: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, newHistoryEntry(rec))
	}
}

func handleClearHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := deps.History.ClearHistory(r.Context())
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to clear history: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "cleared", "deleted": n})
	}
}

func handleProviders(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, newProviderStatuses(deps.Providers))
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
