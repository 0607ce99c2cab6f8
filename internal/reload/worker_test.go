package reload

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

type countingInvalidator struct {
	calls atomic.Int32
}

func (c *countingInvalidator) Invalidate() { c.calls.Add(1) }

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWorker_FirstRunOnlyPrimes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "day-1.md"), "---\nday: 1\n---\n")

	inv := &countingInvalidator{}
	w := NewWorker(dir, inv, time.Second)

	changed, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if changed || inv.calls.Load() != 0 {
		t.Errorf("first run changed=%v calls=%d, want no invalidation", changed, inv.calls.Load())
	}

	changed, _ = w.RunOnce(context.Background())
	if changed {
		t.Error("unchanged directory triggered invalidation")
	}
}

func TestWorker_DetectsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "day-1.md")
	writeFile(t, path, "one")

	inv := &countingInvalidator{}
	w := NewWorker(dir, inv, time.Second)
	w.RunOnce(context.Background())

	steps := []struct {
		name   string
		mutate func()
		want   bool
	}{
		{"add file", func() { writeFile(t, filepath.Join(dir, "day-2.md"), "two") }, true},
		{"non-markdown ignored", func() { writeFile(t, filepath.Join(dir, "notes.txt"), "x") }, false},
		{"resize file", func() { writeFile(t, path, "one, now longer") }, true},
		{"touch file", func() {
			later := time.Now().Add(time.Hour)
			if err := os.Chtimes(path, later, later); err != nil {
				t.Fatal(err)
			}
		}, true},
		{"remove file", func() { os.Remove(filepath.Join(dir, "day-2.md")) }, true},
		{"nothing", func() {}, false},
	}

	want := int32(0)
	for _, st := range steps {
		st.mutate()
		changed, err := w.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("%s: RunOnce: %v", st.name, err)
		}
		if changed != st.want {
			t.Errorf("%s: changed = %v, want %v", st.name, changed, st.want)
		}
		if st.want {
			want++
		}
	}
	if got := inv.calls.Load(); got != want {
		t.Errorf("Invalidate called %d times, want %d", got, want)
	}
}

func TestWorker_DirectoryAppears(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "days")
	inv := &countingInvalidator{}
	w := NewWorker(dir, inv, time.Second)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce on missing dir: %v", err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "day-1.md"), "x")

	changed, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !changed {
		t.Error("new directory should trigger invalidation")
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	inv := &countingInvalidator{}
	w := NewWorker(dir, inv, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("priming RunOnce: %v", err)
	}
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	writeFile(t, filepath.Join(dir, "day-9.md"), "new")

	deadline := time.After(2 * time.Second)
	for inv.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("Run did not pick up the change")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewWorker_DefaultInterval(t *testing.T) {
	w := NewWorker(t.TempDir(), &countingInvalidator{}, 0)
	if w.poll != 5*time.Second {
		t.Errorf("poll = %v, want 5s", w.poll)
	}
}
