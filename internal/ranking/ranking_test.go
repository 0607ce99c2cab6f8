package ranking

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/designdays/internal/corpus"
	"github.com/kalambet/designdays/internal/intent"
)

func scoresByDay(scored []Scored) map[int]int {
	m := make(map[int]int, len(scored))
	for _, s := range scored {
		m[s.Day] = s.Score
	}
	return m
}

func TestScore_CategoryAdditivity(t *testing.T) {
	days := []corpus.DailyContext{
		{Day: 1, Project: "Motion", Title: "Motion study"},
		{Day: 2, Project: "Motion", Title: "Springs"},
		{Day: 3, Project: "Layout", Title: "Grid"},
	}
	got := Score(days, intent.Query{Type: intent.TypeCategory, Term: "motion"})

	want := map[int]int{1: 13, 2: 10}
	if diff := cmp.Diff(want, scoresByDay(got)); diff != "" {
		t.Errorf("scores mismatch (-want +got):\n%s", diff)
	}
	if got[0].Day != 1 {
		t.Errorf("top result = day %d, want 1", got[0].Day)
	}
}

func TestScore_CategoryAllCriteria(t *testing.T) {
	days := []corpus.DailyContext{{
		Day:             4,
		Project:         "Buttons",
		Title:           "Buttons galore",
		ElementName:     "ButtonsGrid",
		MarkdownContent: "Three buttons.",
		CodeSnippet:     "<Buttons />",
	}}
	got := Score(days, intent.Query{Type: intent.TypeCategory, Term: "Buttons"})
	if len(got) != 1 || got[0].Score != 18 {
		t.Errorf("Score = %+v, want single result scoring 18", got)
	}
}

func TestScore_Topic(t *testing.T) {
	days := []corpus.DailyContext{
		{Day: 1, Title: "Dark mode toggle", Project: "Themes"},
		{Day: 2, Description: "Supports dark themes", Project: "Themes"},
		{Day: 3, Title: "Carousel", MarkdownContent: "Swipe through cards."},
		{Day: 4, ElementName: "ModeSwitch"},
	}
	got := Score(days, intent.Query{Type: intent.TypeTopic, Term: "dark mode"})

	// day 1: dark+mode in haystack (2) + title bonus (2)
	// day 2: dark only (1)
	// day 4: mode in elementName (1) + bonus (2)
	want := map[int]int{1: 4, 2: 1, 4: 3}
	if diff := cmp.Diff(want, scoresByDay(got)); diff != "" {
		t.Errorf("scores mismatch (-want +got):\n%s", diff)
	}
	order := daysOf(got)
	if diff := cmp.Diff([]int{1, 4, 2}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestScore_TiesByDay(t *testing.T) {
	days := []corpus.DailyContext{
		{Day: 9, Project: "A"},
		{Day: 2, Project: "A"},
		{Day: 5, Project: "A"},
	}
	got := daysOf(Score(days, intent.Query{Type: intent.TypeCategory, Term: "a"}))
	if diff := cmp.Diff([]int{2, 5, 9}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestScore_UnscoredTypes(t *testing.T) {
	days := []corpus.DailyContext{{Day: 1, Project: "A"}}
	for _, q := range []intent.Query{
		{Type: intent.TypeDay, Day: 1},
		{Type: intent.TypeCreator},
		{Type: intent.TypeShowMore, Continues: intent.TypeDay},
		{Type: intent.TypeCategory, Term: ""},
	} {
		if got := Score(days, q); len(got) != 0 {
			t.Errorf("Score(%+v) = %+v, want none", q, got)
		}
	}
}

func manyInProject(n int, project string) []corpus.DailyContext {
	days := make([]corpus.DailyContext, n)
	for i := range days {
		days[i] = corpus.DailyContext{Day: i + 1, Project: project, Title: fmt.Sprintf("Item %d", i+1)}
	}
	return days
}

func TestSelect_BatchAsymmetry(t *testing.T) {
	days := manyInProject(10, "Motion")
	q := intent.Classify("tell me about the Motion category")

	first := Select(days, q, Limits{})
	if len(first.Results) != DefaultBatchSize {
		t.Fatalf("first batch = %d results, want %d", len(first.Results), DefaultBatchSize)
	}
	if first.Remaining != 7 {
		t.Errorf("Remaining = %d, want 7", first.Remaining)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, first.ShownDays); diff != "" {
		t.Errorf("ShownDays mismatch (-want +got):\n%s", diff)
	}

	more := intent.Classify(intent.EncodeShowMore("tell me about the Motion category", first.ShownDays))
	next := Select(days, more, Limits{})
	if len(next.Results) != 7 {
		t.Fatalf("continuation = %d results, want all 7 remaining", len(next.Results))
	}
	if next.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", next.Remaining)
	}
	for _, s := range next.Results {
		if s.Day <= 3 {
			t.Errorf("continuation repeated day %d", s.Day)
		}
	}
	if got := len(next.ShownDays); got != 10 {
		t.Errorf("len(ShownDays) = %d, want 10", got)
	}
}

func TestSelect_ContinuationCap(t *testing.T) {
	days := manyInProject(10, "Motion")
	more := intent.Classify(intent.EncodeShowMore("projects in the Motion category", []int{1, 2, 3}))

	sel := Select(days, more, Limits{MaxContinuation: 4})
	if len(sel.Results) != 4 || sel.Remaining != 3 {
		t.Errorf("got %d results, %d remaining; want 4 and 3", len(sel.Results), sel.Remaining)
	}
}

func TestSelect_CustomBatch(t *testing.T) {
	days := manyInProject(5, "Motion")
	sel := Select(days, intent.Query{Type: intent.TypeCategory, Term: "Motion"}, Limits{BatchSize: 10})
	if len(sel.Results) != 5 || sel.Remaining != 0 {
		t.Errorf("got %d results, %d remaining; want 5 and 0", len(sel.Results), sel.Remaining)
	}
}

func TestSelect_ShowMoreOfNonPagedQuery(t *testing.T) {
	days := manyInProject(3, "Motion")
	more := intent.Classify(intent.EncodeShowMore("tell me about day 2", []int{2}))
	sel := Select(days, more, Limits{})
	if len(sel.Results) != 0 {
		t.Errorf("Results = %+v, want none", sel.Results)
	}
}

func TestSelect_Day(t *testing.T) {
	days := []corpus.DailyContext{{Day: 41, Title: "A"}, {Day: 42, Title: "B"}, {Day: 420, Title: "C"}}

	sel := Select(days, intent.Classify("Tell me about day 42"), Limits{})
	if len(sel.Results) != 1 || sel.Results[0].Title != "B" {
		t.Fatalf("Results = %+v, want day 42 only", sel.Results)
	}
	if sel.Results[0].Score != 0 {
		t.Errorf("Score = %d, want 0 for direct lookup", sel.Results[0].Score)
	}

	miss := Select(days, intent.Classify("day 7"), Limits{})
	if len(miss.Results) != 0 {
		t.Errorf("Results = %+v, want none", miss.Results)
	}
}

func TestSelect_ListCategories(t *testing.T) {
	days := []corpus.DailyContext{
		{Day: 1, Project: "ui Components"},
		{Day: 2, Project: "Tech Showcase"},
		{Day: 3, Project: "ui Components"},
		{Day: 4},
	}
	sel := Select(days, intent.Classify("list all project groups"), Limits{})
	if diff := cmp.Diff([]string{"Tech Showcase", "ui Components"}, sel.Categories); diff != "" {
		t.Errorf("Categories mismatch (-want +got):\n%s", diff)
	}
	if len(sel.Results) != 0 {
		t.Errorf("Results = %+v, want none", sel.Results)
	}
}

func TestSelect_EmptyContext(t *testing.T) {
	for _, text := range []string{"projects about motion", "day 3", "list all categories"} {
		sel := Select(nil, intent.Classify(text), Limits{})
		if len(sel.Results) != 0 {
			t.Errorf("%q: Results = %+v, want none", text, sel.Results)
		}
	}
}

func TestSelect_EndToEndCategory(t *testing.T) {
	days := []corpus.DailyContext{
		{Day: 7, Project: "UI Components", Title: "Primary Button"},
		{Day: 58, Project: "Tech Showcase", Title: "Tech Card"},
	}
	sel := Select(days, intent.Classify("tell me about the UI Components category"), Limits{})

	want := []Scored{{DailyContext: days[0], Score: 10}}
	if diff := cmp.Diff(want, sel.Results); diff != "" {
		t.Errorf("Results mismatch (-want +got):\n%s", diff)
	}
}
