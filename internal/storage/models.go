package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// HistoryRecord is one handled utterance and the reply given to it.
type HistoryRecord struct {
	ID        string
	CreatedAt time.Time
	Source    string // "voice" or "typed"
	UserInput string
	Response  string
	Intent    string
	Provider  string
	Status    string // "success", "degraded", "failed"
}
