package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Chat query statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ChatQuery is one logged chat turn.
type ChatQuery struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Query     string    `json:"query"`
	QueryType string    `json:"queryType"`
	QueryTerm string    `json:"queryTerm,omitempty"`
	DaysShown []int     `json:"daysShown"`
	Model     string    `json:"model,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}
