// Package ranking scores daily records against a classified query and picks
// the batch shown to the user.
package ranking

import (
	"sort"
	"strings"

	"github.com/kalambet/designdays/internal/corpus"
	"github.com/kalambet/designdays/internal/intent"
)

// Category weights.
const (
	categoryProjectWeight = 10
	categoryTitleWeight   = 3
	categoryElementWeight = 3
	categoryBodyWeight    = 1
	categoryCodeWeight    = 1
)

// Topic weights.
const (
	topicKeywordWeight = 1
	topicTitleBonus    = 2
)

// Scored is a record with its relevance for one query.
type Scored struct {
	corpus.DailyContext
	Score int `json:"score"`
}

// Score rates every record against q and returns those with a positive score,
// highest first and by day among equals. Only category and topic queries, or
// continuations of them, are scored; anything else yields nil.
func Score(days []corpus.DailyContext, q intent.Query) []Scored {
	kind := q.Type
	if kind == intent.TypeShowMore {
		kind = q.Continues
	}

	var fn func(corpus.DailyContext) int
	switch kind {
	case intent.TypeCategory:
		fn = categoryScorer(q.Term)
	case intent.TypeTopic:
		fn = topicScorer(q.Term)
	default:
		return nil
	}

	var out []Scored
	for _, d := range days {
		if s := fn(d); s > 0 {
			out = append(out, Scored{DailyContext: d, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Day < out[j].Day
	})
	return out
}

func categoryScorer(term string) func(corpus.DailyContext) int {
	term = strings.ToLower(strings.TrimSpace(term))
	return func(d corpus.DailyContext) int {
		if term == "" {
			return 0
		}
		score := 0
		if strings.EqualFold(strings.TrimSpace(d.Project), term) {
			score += categoryProjectWeight
		}
		if containsFold(d.Title, term) {
			score += categoryTitleWeight
		}
		if containsFold(d.ElementName, term) {
			score += categoryElementWeight
		}
		if containsFold(d.MarkdownContent, term) {
			score += categoryBodyWeight
		}
		if containsFold(d.CodeSnippet, term) {
			score += categoryCodeWeight
		}
		return score
	}
}

func topicScorer(term string) func(corpus.DailyContext) int {
	keywords := strings.Fields(strings.ToLower(term))
	return func(d corpus.DailyContext) int {
		if len(keywords) == 0 {
			return 0
		}
		haystack := strings.ToLower(strings.Join([]string{
			d.Title, d.Description, d.Project, d.MarkdownContent, d.ElementName,
		}, " "))
		title := strings.ToLower(d.Title)
		element := strings.ToLower(d.ElementName)

		score := 0
		bonus := false
		for _, kw := range keywords {
			if strings.Contains(haystack, kw) {
				score += topicKeywordWeight
			}
			if strings.Contains(title, kw) || strings.Contains(element, kw) {
				bonus = true
			}
		}
		if bonus {
			score += topicTitleBonus
		}
		return score
	}
}

func containsFold(s, lowerTerm string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), lowerTerm)
}
