// Package intent classifies chat messages into the query kinds the
// assistant knows how to answer.
package intent

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// QueryType names what a message is asking for.
type QueryType string

const (
	TypeShowMore       QueryType = "show-more"
	TypeCreator        QueryType = "creator"
	TypePurpose        QueryType = "purpose"
	TypeListCategories QueryType = "list-categories"
	TypeCategory       QueryType = "category"
	TypeTopic          QueryType = "topic"
	TypeDay            QueryType = "day"
	TypeUnrecognized   QueryType = "unrecognized"
)

// Query is the classification result for one message.
type Query struct {
	Type QueryType `json:"type"`
	// Term is the category name or topic keywords, or the day number as text.
	Term string `json:"term,omitempty"`
	Day  int    `json:"day,omitempty"`

	// Set only for show-more continuations.
	Continues     QueryType `json:"continues,omitempty"`
	OriginalQuery string    `json:"originalQuery,omitempty"`
	ShownDays     []int     `json:"shownDays,omitempty"`
}

// Paged reports whether the query produces a scored, batched result list.
func (q Query) Paged() bool {
	switch q.Type {
	case TypeCategory, TypeTopic:
		return true
	case TypeShowMore:
		return q.Continues == TypeCategory || q.Continues == TypeTopic
	}
	return false
}

// Rule is one classification step. Match reports whether text belongs to
// the rule's type and, if so, the extracted query.
type Rule struct {
	Type  QueryType
	Match func(text string) (Query, bool)
}

var (
	creatorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bwho\b.*\b(made|built|created|designed|developed|is behind|wrote)\b.*\b(this|the)\s+(project|site|website|portfolio|challenge)\b`),
		regexp.MustCompile(`(?i)\bwho\s+(is|was|are)\s+the\s+(creator|author|designer|developer|maker)s?\b`),
	}
	purposePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bwhat(?:'s|\s+is)\s+(this|the)\s+(project|site|website|portfolio|challenge)\s+(about|for)\b`),
		regexp.MustCompile(`(?i)\b(point|purpose|goal|idea)\s+of\s+(this|the)\s+(project|site|website|portfolio|challenge)\b`),
	}
	// The group noun must be the object of the request and end the
	// sentence, so "what groups of buttons are there" is not a listing.
	listCategoriesPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(list|show|what\s+are|which\s+are|name|tell\s+me)\s+(?:me\s+)?(?:all\s+|the\s+|your\s+|of\s+)*(categories|project\s+groups|groups)(?:\s+of\s+projects)?(?:\s+(?:are\s+there|are\s+available|do\s+you\s+have|exist))?(?:\s+please)?\s*[?.!]*\s*$`),
		regexp.MustCompile(`(?i)\b(which|what)\s+(categories|project\s+groups|groups)(?:\s+of\s+projects)?\s+(are\s+there|are\s+available|do\s+you\s+have|exist)\b`),
	}
	categoryPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\babout\s+the\s+["']?(.+?)["']?\s+(?:category|project\s+group|group)\b`),
		regexp.MustCompile(`(?i)\bprojects?\s+in\s+the\s+["']?(.+?)["']?\s+(?:category|project\s+group|group)\b`),
	}
	topicPattern = regexp.MustCompile(`(?i)\bprojects?\s+(?:about|related\s+to|using|involving|with|on|featuring|that\s+use)\s+(.+)`)
	dayPattern   = regexp.MustCompile(`(?i)\bday\s*#?\s*(\d+)\b`)
	// Any lone integer counts as a day reference.
	bareIntPattern = regexp.MustCompile(`\b(\d+)\b`)
)

// rules is assigned in init: matchShowMore classifies through it.
var rules []Rule

func init() {
	rules = []Rule{
		{Type: TypeShowMore, Match: matchShowMore},
		{Type: TypeCreator, Match: matchAny(TypeCreator, creatorPatterns)},
		{Type: TypePurpose, Match: matchAny(TypePurpose, purposePatterns)},
		{Type: TypeListCategories, Match: matchAny(TypeListCategories, listCategoriesPatterns)},
		{Type: TypeCategory, Match: matchCategory},
		{Type: TypeTopic, Match: matchTopic},
		{Type: TypeDay, Match: matchDay},
		{Type: TypeUnrecognized, Match: func(string) (Query, bool) { return Query{Type: TypeUnrecognized}, true }},
	}
}

// Rules returns the classification rules in evaluation order. The first
// rule that matches decides the type.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Classify returns the query for text. It never fails: text that matches
// nothing is TypeUnrecognized.
func Classify(text string) Query {
	return classifyWith(rules, text)
}

// classifyPlain skips the show-more rule. Used for the original query of a
// continuation so markers cannot nest.
func classifyPlain(text string) Query {
	return classifyWith(rules[1:], text)
}

func classifyWith(rs []Rule, text string) Query {
	for _, r := range rs {
		if q, ok := r.Match(text); ok {
			return q
		}
	}
	return Query{Type: TypeUnrecognized}
}

func matchAny(t QueryType, patterns []*regexp.Regexp) func(string) (Query, bool) {
	return func(text string) (Query, bool) {
		for _, p := range patterns {
			if p.MatchString(text) {
				return Query{Type: t}, true
			}
		}
		return Query{}, false
	}
}

func matchCategory(text string) (Query, bool) {
	for _, p := range categoryPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if term := cleanTerm(m[1]); term != "" {
			return Query{Type: TypeCategory, Term: term}, true
		}
	}
	return Query{}, false
}

func matchTopic(text string) (Query, bool) {
	m := topicPattern.FindStringSubmatch(text)
	if m == nil {
		return Query{}, false
	}
	term := cleanTerm(m[1])
	if term == "" {
		return Query{}, false
	}
	return Query{Type: TypeTopic, Term: term}, true
}

func matchDay(text string) (Query, bool) {
	for _, p := range []*regexp.Regexp{dayPattern, bareIntPattern} {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return Query{Type: TypeDay, Day: n, Term: strconv.Itoa(n)}, true
	}
	return Query{}, false
}

func cleanTerm(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"'?!.,;:`))
}

// LastUserMessage returns the content of the final message in raw, a JSON
// array of chat messages, if that message has role "user". Messages whose
// content is not a plain string read as "".
func LastUserMessage(raw json.RawMessage) (string, bool) {
	var msgs []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &msgs); err != nil || len(msgs) == 0 {
		return "", false
	}
	last := msgs[len(msgs)-1]
	if last.Role != "user" {
		return "", false
	}
	var content string
	if err := json.Unmarshal(last.Content, &content); err != nil {
		// Multi-part content arrays classify as an empty question.
		return "", true
	}
	return content, true
}
