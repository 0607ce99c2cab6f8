package corpus

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/kalambet/designdays/internal/content"
	"github.com/kalambet/designdays/internal/samples"
)

// Merge joins content entries with catalog samples by day. Catalog days
// with no content get a synthetic record with DefaultProject and
// DefaultColor. The result is sorted by day and holds each day once.
func Merge(entries []content.Entry, catalog *samples.Catalog) []DailyContext {
	byDay := make(map[int]int, len(entries))
	out := make([]DailyContext, 0, len(entries))

	for _, e := range entries {
		if _, dup := byDay[e.Day]; dup {
			continue
		}
		d := DailyContext{
			Day:             e.Day,
			Title:           e.Title,
			Description:     e.Description,
			Project:         e.Project,
			Color:           e.Color,
			MarkdownContent: e.Markdown,
		}
		if len(e.ImagePaths) > 0 {
			d.ImagePaths = append([]string(nil), e.ImagePaths...)
		}
		if s, ok := catalog.ForDay(e.Day); ok {
			d.ElementName = s.ElementName
			d.CodeSnippet = s.Code
		}
		byDay[e.Day] = len(out)
		out = append(out, d)
	}

	for _, s := range catalog.All() {
		if _, ok := byDay[s.Day]; ok {
			continue
		}
		byDay[s.Day] = len(out)
		out = append(out, DailyContext{
			Day:         s.Day,
			Project:     DefaultProject,
			Color:       DefaultColor,
			ElementName: s.ElementName,
			CodeSnippet: s.Code,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// Categories returns the distinct non-empty Project values of days,
// sorted case-insensitively.
func Categories(days []DailyContext) []string {
	seen := make(map[string]bool)
	cats := []string{}
	for _, d := range days {
		if d.Project == "" || seen[d.Project] {
			continue
		}
		seen[d.Project] = true
		cats = append(cats, d.Project)
	}
	collate.New(language.English, collate.IgnoreCase).SortStrings(cats)
	return cats
}
