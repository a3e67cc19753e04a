package api

import (
	"time"

	"github.com/kalambet/mobi/internal/dispatch"
	"github.com/kalambet/mobi/internal/provider"
	"github.com/kalambet/mobi/internal/resolver"
	"github.com/kalambet/mobi/internal/storage"
)

// DispatchRequest is the body of POST /v1/dispatch. FollowUps answer, in
// order, any question the handler asks (phone number, message, topic).
type DispatchRequest struct {
	Text      string   `json:"text"`
	Source    string   `json:"source,omitempty"`
	FollowUps []string `json:"followups,omitempty"`
}

// DispatchResponse is the outcome of one dispatched request.
type DispatchResponse struct {
	ID       string             `json:"id"`
	Query    string             `json:"query"`
	Result   string             `json:"result"`
	Intent   string             `json:"intent"`
	Provider string             `json:"provider,omitempty"`
	Status   string             `json:"status"`
	Attempts []resolver.Attempt `json:"attempts,omitempty"`
}

func newDispatchResponse(res dispatch.Result) DispatchResponse {
	return DispatchResponse{
		ID:       res.ID,
		Query:    res.Utterance.Text,
		Result:   res.Text,
		Intent:   string(res.Category),
		Provider: res.ProviderName(),
		Status:   string(res.Status),
		Attempts: res.Attempts,
	}
}

// HistoryEntry is one history row as served over the API.
type HistoryEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source"`
	Query     string    `json:"query"`
	Result    string    `json:"result"`
	Intent    string    `json:"intent"`
	Provider  string    `json:"provider,omitempty"`
	Status    string    `json:"status"`
}

func newHistoryEntry(rec storage.HistoryRecord) HistoryEntry {
	return HistoryEntry{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		Source:    rec.Source,
		Query:     rec.UserInput,
		Result:    rec.Response,
		Intent:    rec.Intent,
		Provider:  rec.Provider,
		Status:    rec.Status,
	}
}

// HistoryPage is the body of GET /v1/history.
type HistoryPage struct {
	Total   int            `json:"total"`
	Entries []HistoryEntry `json:"entries"`
}

// ProviderStatus reports whether a configured provider can be consulted.
type ProviderStatus struct {
	Name       string `json:"name"`
	Capability string `json:"capability"`
	Available  bool   `json:"available"`
}

func newProviderStatuses(clients []provider.Client) []ProviderStatus {
	out := make([]ProviderStatus, 0, len(clients))
	for _, c := range clients {
		d := c.Descriptor()
		out = append(out, ProviderStatus{
			Name:       d.Name,
			Capability: string(d.Capability),
			Available:  d.IsAvailable(),
		})
	}
	return out
}
