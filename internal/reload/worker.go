// Package reload watches the content directory and drops the cached daily
// context when files change.
package reload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const missingDir = "missing"

// Invalidator drops a cache.
type Invalidator interface {
	Invalidate()
}

// Worker polls a directory's fingerprint (markdown file names, sizes and
// modification times) and calls Invalidate when it changes.
type Worker struct {
	dir    string
	target Invalidator
	poll   time.Duration
	logger *slog.Logger

	last   string
	primed bool
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 5s.
func NewWorker(dir string, target Invalidator, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Worker{
		dir:    dir,
		target: target,
		poll:   pollInterval,
		logger: slog.Default(),
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("content reload enabled", "dir", w.dir, "interval", w.poll)
	for {
		if ctx.Err() != nil {
			return
		}

		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("content reload check failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce takes one fingerprint and reports whether it triggered an
// invalidation. The first call only records the baseline.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fp, err := Fingerprint(w.dir)
	if err != nil {
		return false, fmt.Errorf("fingerprinting %s: %w", w.dir, err)
	}

	if !w.primed {
		w.primed = true
		w.last = fp
		return false, nil
	}
	if fp == w.last {
		return false, nil
	}

	w.last = fp
	w.target.Invalidate()
	w.logger.Info("content changed, daily context invalidated", "dir", w.dir)
	return true, nil
}

// Fingerprint hashes the listing of markdown files in dir. A missing
// directory has a fixed fingerprint so that creating or removing it counts
// as a change.
func Fingerprint(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return missingDir, nil
	}
	if err != nil {
		return "", err
	}

	var lines []string
	for _, de := range entries {
		if de.IsDir() || !strings.EqualFold(filepath.Ext(de.Name()), ".md") {
			continue
		}
		info, err := de.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("%s|%d|%d", de.Name(), info.Size(), info.ModTime().UnixNano()))
	}
	sort.Strings(lines)

	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:]), nil
}
