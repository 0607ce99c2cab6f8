package feedback

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type memStore struct {
	mu     sync.Mutex
	counts map[int]Counts
	err    error
}

func newMemStore() *memStore { return &memStore{counts: map[int]Counts{}} }

func (m *memStore) GetFeedback(_ context.Context, day int) (Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Counts{}, m.err
	}
	c, ok := m.counts[day]
	if !ok {
		return Counts{}, ErrNotFound
	}
	return c, nil
}

func (m *memStore) IncrementFeedback(_ context.Context, day int, kind Kind) (Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Counts{}, m.err
	}
	c := m.counts[day]
	if kind == Like {
		c.Likes++
	} else {
		c.Dislikes++
	}
	m.counts[day] = c
	return c, nil
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"like", Like, false},
		{"dislike", Dislike, false},
		{" LIKE ", Like, false},
		{"love", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidKind) {
			t.Errorf("ParseKind(%q) error = %v, want ErrInvalidKind", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestService_GetMissingIsZero(t *testing.T) {
	s := NewService(newMemStore())
	c, err := s.Get(context.Background(), 5)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c != (Counts{}) {
		t.Errorf("Get = %+v, want zero", c)
	}
}

func TestService_GetStoreErrorReturnsZero(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection reset")
	c, err := NewService(store).Get(context.Background(), 5)
	if err == nil {
		t.Fatal("expected error")
	}
	if c != (Counts{}) {
		t.Errorf("Get = %+v, want zero alongside the error", c)
	}
}

func TestService_RecordIncrementsOneField(t *testing.T) {
	store := newMemStore()
	s := NewService(store)
	ctx := context.Background()

	c, err := s.Record(ctx, 3, Like)
	if err != nil {
		t.Fatalf("Record insert path: %v", err)
	}
	if c != (Counts{Likes: 1}) {
		t.Errorf("after first like = %+v", c)
	}

	c, err = s.Record(ctx, 3, Like)
	if err != nil {
		t.Fatalf("Record update path: %v", err)
	}
	if c != (Counts{Likes: 2}) {
		t.Errorf("after second like = %+v", c)
	}

	c, _ = s.Record(ctx, 3, Dislike)
	if c != (Counts{Likes: 2, Dislikes: 1}) {
		t.Errorf("after dislike = %+v", c)
	}
}

func TestService_Validation(t *testing.T) {
	s := NewService(newMemStore())
	ctx := context.Background()

	if _, err := s.Record(ctx, 0, Like); !errors.Is(err, ErrInvalidDay) {
		t.Errorf("Record day 0 err = %v, want ErrInvalidDay", err)
	}
	if _, err := s.Record(ctx, 1, Kind("meh")); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("Record bad kind err = %v, want ErrInvalidKind", err)
	}
	if _, err := s.Get(ctx, -1); !errors.Is(err, ErrInvalidDay) {
		t.Errorf("Get day -1 err = %v, want ErrInvalidDay", err)
	}
}
