package ranking

import (
	"github.com/kalambet/designdays/internal/corpus"
	"github.com/kalambet/designdays/internal/intent"
)

// DefaultBatchSize caps the first response to a category or topic query.
const DefaultBatchSize = 3

// Limits bounds how many results a response carries.
type Limits struct {
	// BatchSize caps a first category or topic response. <= 0 means
	// DefaultBatchSize.
	BatchSize int
	// MaxContinuation caps a show-more response. <= 0 means no cap: a
	// continuation returns every remaining match.
	MaxContinuation int
}

// Selection is what one chat turn shows.
type Selection struct {
	Query   intent.Query
	Results []Scored
	// Categories is set for list-categories queries only.
	Categories []string
	// Remaining counts matches held back for a later show-more.
	Remaining int
	// ShownDays lists every day shown so far in this thread, including
	// Results. A client echoes it back in the next show-more.
	ShownDays []int
}

// Select runs q against days and returns the batch to show.
func Select(days []corpus.DailyContext, q intent.Query, lim Limits) Selection {
	sel := Selection{Query: q}

	switch q.Type {
	case intent.TypeCategory, intent.TypeTopic:
		batch := lim.BatchSize
		if batch <= 0 {
			batch = DefaultBatchSize
		}
		sel.Results, sel.Remaining = take(Score(days, q), batch)
		sel.ShownDays = daysOf(sel.Results)

	case intent.TypeShowMore:
		if !q.Paged() {
			return sel
		}
		shown := make(map[int]bool, len(q.ShownDays))
		for _, d := range q.ShownDays {
			shown[d] = true
		}
		var rest []Scored
		for _, s := range Score(days, q) {
			if !shown[s.Day] {
				rest = append(rest, s)
			}
		}
		sel.Results, sel.Remaining = take(rest, lim.MaxContinuation)
		sel.ShownDays = append(append([]int{}, q.ShownDays...), daysOf(sel.Results)...)

	case intent.TypeDay:
		for _, d := range days {
			if d.Day == q.Day {
				sel.Results = []Scored{{DailyContext: d}}
				sel.ShownDays = []int{d.Day}
				break
			}
		}

	case intent.TypeListCategories:
		sel.Categories = corpus.Categories(days)
	}

	return sel
}

// take returns at most n items (all when n <= 0) and how many were left.
func take(items []Scored, n int) ([]Scored, int) {
	if n <= 0 || len(items) <= n {
		return items, 0
	}
	return items[:n], len(items) - n
}

func daysOf(items []Scored) []int {
	out := make([]int, len(items))
	for i, s := range items {
		out[i] = s.Day
	}
	return out
}
