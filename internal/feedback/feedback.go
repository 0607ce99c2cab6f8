// Package feedback counts likes and dislikes per day.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrNotFound is returned by a Store when a day has no feedback row.
	ErrNotFound = errors.New("feedback not found")
	// ErrInvalidKind is returned for a feedback type other than like or dislike.
	ErrInvalidKind = errors.New("invalid feedback type")
	// ErrInvalidDay is returned for day numbers below 1.
	ErrInvalidDay = errors.New("invalid day")
)

// Counts is the tally for one day.
type Counts struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// Kind is a feedback type.
type Kind string

const (
	Like    Kind = "like"
	Dislike Kind = "dislike"
)

// ParseKind accepts "like" or "dislike", case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Like:
		return Like, nil
	case Dislike:
		return Dislike, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Store persists counts. Increment must add exactly one to the field named
// by kind, creating the row when absent, and return the new counts.
type Store interface {
	GetFeedback(ctx context.Context, day int) (Counts, error)
	IncrementFeedback(ctx context.Context, day int, kind Kind) (Counts, error)
}

// Service applies the read and write policy over a Store.
type Service struct {
	store Store
}

// NewService creates a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns the counts for day. A day with no row reads as zero counts
// with a nil error. Any other store error is returned together with zero
// counts, which callers may still render.
func (s *Service) Get(ctx context.Context, day int) (Counts, error) {
	if day < 1 {
		return Counts{}, fmt.Errorf("%w: %d", ErrInvalidDay, day)
	}
	c, err := s.store.GetFeedback(ctx, day)
	if errors.Is(err, ErrNotFound) {
		return Counts{}, nil
	}
	if err != nil {
		slog.Error("reading feedback failed", "day", day, "error", err)
		return Counts{}, fmt.Errorf("reading feedback for day %d: %w", day, err)
	}
	return c, nil
}

// Record adds one feedback of kind to day and returns the updated counts.
func (s *Service) Record(ctx context.Context, day int, kind Kind) (Counts, error) {
	if day < 1 {
		return Counts{}, fmt.Errorf("%w: %d", ErrInvalidDay, day)
	}
	if kind != Like && kind != Dislike {
		return Counts{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	c, err := s.store.IncrementFeedback(ctx, day, kind)
	if err != nil {
		return Counts{}, fmt.Errorf("recording %s for day %d: %w", kind, day, err)
	}
	slog.Debug("feedback recorded", "day", day, "kind", kind, "likes", c.Likes, "dislikes", c.Dislikes)
	return c, nil
}
