// Package postgres is a feedback.Store backed by PostgreSQL, for deployments
// where several server instances share one set of counts.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kalambet/designdays/internal/feedback"
)

const schema = `
CREATE TABLE IF NOT EXISTS feedback (
    day_id     INTEGER PRIMARY KEY,
    likes      INTEGER NOT NULL DEFAULT 0,
    dislikes   INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store implements feedback.Store.
type Store struct {
	db *sql.DB
}

// Open connects with the pgx stdlib driver, verifies connectivity and
// creates the feedback table if missing.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	s, err := NewWithDB(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection and ensures the schema exists.
func NewWithDB(ctx context.Context, db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("nil db")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating feedback table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) GetFeedback(ctx context.Context, day int) (feedback.Counts, error) {
	var c feedback.Counts
	err := s.db.QueryRowContext(ctx, `SELECT likes, dislikes FROM feedback WHERE day_id = $1`, day).Scan(&c.Likes, &c.Dislikes)
	if errors.Is(err, sql.ErrNoRows) {
		return feedback.Counts{}, feedback.ErrNotFound
	}
	if err != nil {
		return feedback.Counts{}, err
	}
	return c, nil
}

func (s *Store) IncrementFeedback(ctx context.Context, day int, kind feedback.Kind) (feedback.Counts, error) {
	like, dislike := 0, 1
	if kind == feedback.Like {
		like, dislike = 1, 0
	}
	var c feedback.Counts
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO feedback (day_id, likes, dislikes) VALUES ($1, $2, $3)
		ON CONFLICT (day_id) DO UPDATE SET
			likes = feedback.likes + EXCLUDED.likes,
			dislikes = feedback.dislikes + EXCLUDED.dislikes,
			updated_at = now()
		RETURNING likes, dislikes`,
		day, like, dislike,
	).Scan(&c.Likes, &c.Dislikes)
	if err != nil {
		return feedback.Counts{}, err
	}
	return c, nil
}
