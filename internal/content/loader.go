// Package content reads the per-day markdown corpus from disk.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

const loadConcurrency = 8

// Entry is one parsed day file.
type Entry struct {
	File        string
	Day         int
	Title       string
	Project     string
	Description string
	Color       string
	ImagePaths  []string
	Markdown    string
}

// Source loads entries from some backing store.
type Source interface {
	Load(ctx context.Context) ([]Entry, error)
}

// Dir is a Source backed by a directory of *.md files.
type Dir struct {
	Path   string
	Logger *slog.Logger
}

// NewDir creates a directory-backed Source.
func NewDir(path string) *Dir {
	return &Dir{Path: path, Logger: slog.Default()}
}

// Load reads every markdown file in the directory (non-recursive). Files that
// fail to parse are logged and skipped; only a failure to list the directory
// is returned as an error. Entries are sorted by day, and when two files
// claim the same day the one whose name sorts first wins.
func (d *Dir) Load(ctx context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, fmt.Errorf("reading content directory %s: %w", d.Path, err)
	}

	var names []string
	for _, de := range dirEntries {
		if de.IsDir() || !strings.EqualFold(filepath.Ext(de.Name()), ".md") {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)

	parsed := make([]*Entry, len(names))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(d.Path, name))
			if err != nil {
				d.logger().Warn("skipping unreadable content file", "file", name, "error", err)
				return nil
			}
			e, err := ParseFile(name, data)
			if err != nil {
				d.logger().Warn("skipping malformed content file", "file", name, "error", err)
				return nil
			}
			parsed[i] = &e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[int]string, len(parsed))
	entries := make([]Entry, 0, len(parsed))
	for _, e := range parsed {
		if e == nil {
			continue
		}
		if prev, dup := seen[e.Day]; dup {
			d.logger().Warn("duplicate day in content, keeping first file",
				"day", e.Day, "kept", prev, "dropped", e.File)
			continue
		}
		seen[e.Day] = e.File
		entries = append(entries, *e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Day < entries[j].Day
	})
	return entries, nil
}

func (d *Dir) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// ParseFile parses a single day file. The day number comes from frontmatter
// and falls back to the first integer in the file name.
func ParseFile(name string, data []byte) (Entry, error) {
	header, body, err := splitFrontmatter(data)
	if err != nil {
		return Entry{}, err
	}
	fm, err := parseFrontmatter(header)
	if err != nil {
		return Entry{}, err
	}

	day := int(fm.Day)
	if day <= 0 {
		day = dayFromFilename(name)
	}
	if day <= 0 {
		return Entry{}, fmt.Errorf("no day number in frontmatter or file name")
	}

	bodyImages, markdown := extractImages(string(body))

	var images []string
	seen := make(map[string]bool)
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		images = append(images, p)
	}
	add(fm.Image)
	for _, p := range bodyImages {
		add(p)
	}

	return Entry{
		File:        name,
		Day:         day,
		Title:       strings.TrimSpace(fm.Title),
		Project:     strings.TrimSpace(fm.Project),
		Description: strings.TrimSpace(fm.Description),
		Color:       strings.TrimSpace(fm.Color),
		ImagePaths:  images,
		Markdown:    markdown,
	}, nil
}
