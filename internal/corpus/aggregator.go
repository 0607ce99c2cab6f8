// Package corpus merges the markdown content and the code-sample catalog
// into the per-day records the chat assistant searches.
package corpus

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/kalambet/designdays/internal/content"
	"github.com/kalambet/designdays/internal/samples"
)

// Defaults for days that exist only in the sample catalog.
const (
	DefaultProject = "Next.js/React Components"
	DefaultColor   = "#CCCCCC"
)

// DailyContext is the merged record for one day. Empty fields are omitted
// when encoded; callers treat absent and empty the same.
type DailyContext struct {
	Day             int      `json:"day"`
	Title           string   `json:"title,omitempty"`
	Description     string   `json:"description,omitempty"`
	Project         string   `json:"project,omitempty"`
	Color           string   `json:"color,omitempty"`
	ImagePaths      []string `json:"imagePaths,omitempty"`
	MarkdownContent string   `json:"markdownContent,omitempty"`
	ElementName     string   `json:"elementName,omitempty"`
	CodeSnippet     string   `json:"codeSnippet,omitempty"`
}

// PrimaryImage returns the first image path, or "".
func (d DailyContext) PrimaryImage() string {
	if len(d.ImagePaths) == 0 {
		return ""
	}
	return d.ImagePaths[0]
}

func (d DailyContext) clone() DailyContext {
	if d.ImagePaths != nil {
		paths := make([]string, len(d.ImagePaths))
		copy(paths, d.ImagePaths)
		d.ImagePaths = paths
	}
	return d
}

// Aggregator lazily builds the merged day list once and serves copies of it
// until Invalidate is called.
type Aggregator struct {
	source  content.Source
	catalog *samples.Catalog
	logger  *slog.Logger

	group singleflight.Group

	mu         sync.RWMutex
	cached     []DailyContext
	built      bool
	generation uint64
}

// NewAggregator creates an Aggregator over source and catalog. Either may be
// nil, in which case it contributes nothing.
func NewAggregator(source content.Source, catalog *samples.Catalog) *Aggregator {
	return &Aggregator{
		source:  source,
		catalog: catalog,
		logger:  slog.Default(),
	}
}

// Days returns the merged records sorted by day. The first call (or the
// first call after Invalidate) scans the source; concurrent callers share
// that scan. A failed scan is logged and yields an empty list that is not
// cached.
func (a *Aggregator) Days(ctx context.Context) []DailyContext {
	a.mu.RLock()
	if a.built {
		out := cloneAll(a.cached)
		a.mu.RUnlock()
		return out
	}
	a.mu.RUnlock()

	v, _, _ := a.group.Do("days", func() (any, error) {
		return a.build(context.WithoutCancel(ctx)), nil
	})
	return cloneAll(v.([]DailyContext))
}

func (a *Aggregator) build(ctx context.Context) []DailyContext {
	a.mu.RLock()
	if a.built {
		cached := a.cached
		a.mu.RUnlock()
		return cached
	}
	gen := a.generation
	a.mu.RUnlock()

	var entries []content.Entry
	if a.source != nil {
		loaded, err := a.source.Load(ctx)
		if err != nil {
			a.logger.Error("loading content failed, serving empty context", "error", err)
			return []DailyContext{}
		}
		entries = loaded
	}

	merged := Merge(entries, a.catalog)

	a.mu.Lock()
	if a.generation == gen {
		a.cached = merged
		a.built = true
	}
	a.mu.Unlock()

	a.logger.Debug("daily context built", "days", len(merged))
	return merged
}

// Invalidate drops the cached list so the next Days call rescans the source.
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	a.cached = nil
	a.built = false
	a.generation++
	a.mu.Unlock()
	a.group.Forget("days")
}

// Day returns the record for day n.
func (a *Aggregator) Day(ctx context.Context, n int) (DailyContext, bool) {
	for _, d := range a.Days(ctx) {
		if d.Day == n {
			return d, true
		}
	}
	return DailyContext{}, false
}

// Categories returns the distinct non-empty project values.
func (a *Aggregator) Categories(ctx context.Context) []string {
	return Categories(a.Days(ctx))
}

func cloneAll(days []DailyContext) []DailyContext {
	out := make([]DailyContext, len(days))
	for i, d := range days {
		out[i] = d.clone()
	}
	return out
}
