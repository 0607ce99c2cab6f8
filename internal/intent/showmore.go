package intent

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// ShowMoreMarker prefixes a continuation message. The JSON payload follows
// it with no separator.
const ShowMoreMarker = "__SHOW_MORE__"

type showMorePayload struct {
	OriginalQuery string `json:"originalQuery"`
	ShownDays     []int  `json:"shownDays"`
}

// EncodeShowMore builds the continuation message for originalQuery after
// shownDays have been displayed.
func EncodeShowMore(originalQuery string, shownDays []int) string {
	if shownDays == nil {
		shownDays = []int{}
	}
	b, _ := json.Marshal(showMorePayload{OriginalQuery: originalQuery, ShownDays: shownDays})
	return ShowMoreMarker + string(b)
}

// IsShowMore reports whether text carries the continuation marker.
func IsShowMore(text string) bool {
	return strings.HasPrefix(text, ShowMoreMarker)
}

// matchShowMore claims every message with the marker. A payload that does
// not decode falls back to classifying the text after the marker.
func matchShowMore(text string) (Query, bool) {
	if !IsShowMore(text) {
		return Query{}, false
	}
	rest := strings.TrimPrefix(text, ShowMoreMarker)

	var p showMorePayload
	if err := json.Unmarshal([]byte(rest), &p); err != nil {
		slog.Warn("malformed show-more payload, classifying as plain text", "error", err)
		return classifyPlain(rest), true
	}

	under := classifyPlain(p.OriginalQuery)
	return Query{
		Type:          TypeShowMore,
		Term:          under.Term,
		Day:           under.Day,
		Continues:     under.Type,
		OriginalQuery: p.OriginalQuery,
		ShownDays:     p.ShownDays,
	}, true
}
