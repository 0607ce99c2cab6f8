package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kalambet/designdays/internal/feedback"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the SQLite database holding feedback counts and the chat query log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "designdays.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Feedback ---

// GetFeedback implements feedback.Store.
func (s *Store) GetFeedback(ctx context.Context, day int) (feedback.Counts, error) {
	var c feedback.Counts
	err := s.db.QueryRowContext(ctx, `SELECT likes, dislikes FROM feedback WHERE day_id = ?`, day).Scan(&c.Likes, &c.Dislikes)
	if errors.Is(err, sql.ErrNoRows) {
		return feedback.Counts{}, feedback.ErrNotFound
	}
	if err != nil {
		return feedback.Counts{}, err
	}
	return c, nil
}

// IncrementFeedback implements feedback.Store with a single upsert, so
// concurrent submissions for the same day are never lost.
func (s *Store) IncrementFeedback(ctx context.Context, day int, kind feedback.Kind) (feedback.Counts, error) {
	like, dislike := kindDeltas(kind)
	var c feedback.Counts
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO feedback (day_id, likes, dislikes, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(day_id) DO UPDATE SET
			likes = likes + excluded.likes,
			dislikes = dislikes + excluded.dislikes,
			updated_at = excluded.updated_at
		RETURNING likes, dislikes`,
		day, like, dislike, time.Now().UTC().Format(time.RFC3339),
	).Scan(&c.Likes, &c.Dislikes)
	if err != nil {
		return feedback.Counts{}, err
	}
	return c, nil
}

func kindDeltas(kind feedback.Kind) (like, dislike int) {
	if kind == feedback.Like {
		return 1, 0
	}
	return 0, 1
}

// --- Chat queries ---

func (s *Store) SaveChatQuery(ctx context.Context, q ChatQuery) error {
	status := q.Status
	if status == "" {
		status = StatusPending
	}
	days := q.DaysShown
	if days == nil {
		days = []int{}
	}
	daysJSON, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("encoding days shown: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_queries (id, created_at, query, query_type, query_term, days_shown, model, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.CreatedAt.UTC().Format(time.RFC3339), q.Query, q.QueryType, q.QueryTerm,
		string(daysJSON), q.Model, status, q.Error,
	)
	return err
}

// UpdateChatQueryStatus sets the final status of a logged query.
func (s *Store) UpdateChatQueryStatus(ctx context.Context, id, status, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chat_queries SET status = ?, error = ? WHERE id = ?`, status, errMsg, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const chatQueryColumns = `id, created_at, query, query_type, query_term, days_shown, model, status, error`

func (s *Store) GetChatQuery(ctx context.Context, id string) (ChatQuery, error) {
	q, err := scanChatQuery(s.db.QueryRowContext(ctx, `SELECT `+chatQueryColumns+` FROM chat_queries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ChatQuery{}, ErrNotFound
	}
	return q, err
}

// RecentChatQueries returns up to limit queries, newest first.
func (s *Store) RecentChatQueries(ctx context.Context, limit int) ([]ChatQuery, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+chatQueryColumns+` FROM chat_queries ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []ChatQuery{}
	for rows.Next() {
		q, err := scanChatQuery(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, q)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChatQuery(r rowScanner) (ChatQuery, error) {
	var q ChatQuery
	var createdAt, daysJSON string
	if err := r.Scan(&q.ID, &createdAt, &q.Query, &q.QueryType, &q.QueryTerm, &daysJSON, &q.Model, &q.Status, &q.Error); err != nil {
		return ChatQuery{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return ChatQuery{}, fmt.Errorf("parsing created_at: %w", err)
	}
	q.CreatedAt = t
	if err := json.Unmarshal([]byte(daysJSON), &q.DaysShown); err != nil {
		return ChatQuery{}, fmt.Errorf("parsing days_shown: %w", err)
	}
	return q, nil
}
