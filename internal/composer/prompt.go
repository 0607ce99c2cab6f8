// Package composer turns a ranked selection into the system prompt, the
// card payloads and the tool contract sent to the language model.
package composer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/designdays/internal/corpus"
	"github.com/kalambet/designdays/internal/intent"
	"github.com/kalambet/designdays/internal/ranking"
)

// PlaceholderImage is used for cards whose day has no image.
const PlaceholderImage = "/images/placeholder.png"

// maxDetailRunes bounds the markdown excerpt included for a single-day answer.
const maxDetailRunes = 1500

// SiteInfo describes the portfolio the assistant talks about.
type SiteInfo struct {
	Name        string
	Creator     string
	Description string
}

// Card is the payload of one displayProjectCard call.
type Card struct {
	Day     int    `json:"day"`
	Title   string `json:"title"`
	Image   string `json:"image"`
	Color   string `json:"color"`
	Project string `json:"project"`
}

// Prompt is the assembled model input for one turn.
type Prompt struct {
	System string
	Cards  []Card
	// ToolCalls is how many times the model is told to call the card tool.
	// Always len(Cards).
	ToolCalls int
}

// Composer assembles prompts for one site.
type Composer struct {
	site SiteInfo
}

// New creates a Composer.
func New(site SiteInfo) *Composer {
	return &Composer{site: site}
}

// Compose renders sel into a Prompt.
func (c *Composer) Compose(sel ranking.Selection) Prompt {
	var sb strings.Builder
	c.writePreamble(&sb)

	q := sel.Query
	kind := q.Type
	if kind == intent.TypeShowMore {
		kind = q.Continues
	}

	p := Prompt{}
	switch {
	case q.Type == intent.TypeCreator:
		fmt.Fprintf(&sb, "The user is asking who made this project. Answer that it was created by %s.", c.creator())
		if c.site.Description != "" {
			sb.WriteString(" You may add one sentence about what the project is.")
		}
		writeNoTool(&sb)

	case q.Type == intent.TypePurpose:
		sb.WriteString("The user is asking what this project is about. Explain it briefly using the site description above.")
		writeNoTool(&sb)

	case q.Type == intent.TypeListCategories:
		if len(sel.Categories) == 0 {
			sb.WriteString("The user asked for the project groups, but none are available right now. Say so briefly.")
		} else {
			sb.WriteString("The user asked for the list of project groups. List every group below, one per line, without adding or removing any:\n")
			for _, cat := range sel.Categories {
				fmt.Fprintf(&sb, "- %s\n", cat)
			}
		}
		writeNoTool(&sb)

	case q.Type == intent.TypeUnrecognized, q.Type == intent.TypeShowMore && !q.Paged():
		sb.WriteString("The request did not match anything you can look up. Ask the user to rephrase, and suggest asking about a specific day (\"tell me about day 7\"), a project group (\"tell me about the UI Components category\"), or a topic (\"projects about animation\").")
		writeNoTool(&sb)

	case len(sel.Results) == 0:
		fmt.Fprintf(&sb, "No matching projects were found for %s. Tell the user nothing matched and suggest a different phrasing.", describe(q, kind))
		writeNoTool(&sb)

	default:
		p.Cards = cardsFor(sel.Results)
		p.ToolCalls = len(p.Cards)
		c.writeResults(&sb, sel, kind, p.ToolCalls)
	}

	p.System = sb.String()
	return p
}

func (c *Composer) writePreamble(sb *strings.Builder) {
	name := c.site.Name
	if name == "" {
		name = "this portfolio"
	}
	fmt.Fprintf(sb, "You are the chat assistant for %s, a series of daily design engineering projects by %s.", name, c.creator())
	if c.site.Description != "" {
		fmt.Fprintf(sb, " About the site: %s", c.site.Description)
	}
	sb.WriteString(" Answer only from the context given here. Keep replies short and friendly.\n\n")
}

func (c *Composer) creator() string {
	if c.site.Creator == "" {
		return "the site's author"
	}
	return c.site.Creator
}

func (c *Composer) writeResults(sb *strings.Builder, sel ranking.Selection, kind intent.QueryType, calls int) {
	q := sel.Query
	if q.Type == intent.TypeShowMore {
		fmt.Fprintf(sb, "The user asked to see more results for %s. These are projects not shown before.\n", describe(q, kind))
	} else {
		fmt.Fprintf(sb, "The user asked about %s.\n", describe(q, kind))
	}

	sb.WriteString("Start your reply with a brief summary of the projects below.")
	if sel.Remaining > 0 {
		fmt.Fprintf(sb, " Tell the user there %s %d more matching %s and that they can ask to see more.",
			plural(sel.Remaining, "is", "are"), sel.Remaining, plural(sel.Remaining, "project", "projects"))
	}
	fmt.Fprintf(sb, " Then call the %s tool exactly %d %s, once for each project below, in the order listed, using the day, title, image, color and project values exactly as given. ",
		ToolName, calls, plural(calls, "time", "times"))
	sb.WriteString("Do not call it for any other project, and write nothing after the tool calls.")
	sb.WriteString("\n\nContext:\n")

	detail := kind == intent.TypeDay
	for _, s := range sel.Results {
		writeRecord(sb, s, detail)
	}
}

func writeRecord(sb *strings.Builder, s ranking.Scored, detail bool) {
	fmt.Fprintf(sb, "--- Day %d ---\n", s.Day)
	fmt.Fprintf(sb, "Day: %d\n", s.Day)
	fmt.Fprintf(sb, "Title: %s\n", titleOf(s.DailyContext))
	fmt.Fprintf(sb, "Project: %s\n", s.Project)
	if s.Description != "" {
		fmt.Fprintf(sb, "Description: %s\n", s.Description)
	}
	fmt.Fprintf(sb, "Image: %s\n", imageOf(s.DailyContext))
	fmt.Fprintf(sb, "Color: %s\n", colorOf(s.DailyContext))
	fmt.Fprintf(sb, "Score: %d\n", s.Score)
	if s.ElementName != "" {
		fmt.Fprintf(sb, "Component: %s\n", s.ElementName)
	}
	if detail && s.MarkdownContent != "" {
		fmt.Fprintf(sb, "Details:\n%s\n", truncate(strings.TrimSpace(s.MarkdownContent), maxDetailRunes))
	}
	sb.WriteString("\n")
}

func writeNoTool(sb *strings.Builder) {
	fmt.Fprintf(sb, "\n\nDo not call the %s tool in this reply.", ToolName)
}

func describe(q intent.Query, kind intent.QueryType) string {
	switch kind {
	case intent.TypeCategory:
		return fmt.Sprintf("the %q project group", q.Term)
	case intent.TypeTopic:
		return fmt.Sprintf("projects related to %q", q.Term)
	case intent.TypeDay:
		return fmt.Sprintf("day %d", q.Day)
	}
	return "their request"
}

func cardsFor(results []ranking.Scored) []Card {
	cards := make([]Card, len(results))
	for i, s := range results {
		cards[i] = Card{
			Day:     s.Day,
			Title:   titleOf(s.DailyContext),
			Image:   imageOf(s.DailyContext),
			Color:   colorOf(s.DailyContext),
			Project: s.Project,
		}
	}
	return cards
}

func titleOf(d corpus.DailyContext) string {
	if d.Title == "" {
		return fmt.Sprintf("Day %d", d.Day)
	}
	return d.Title
}

func imageOf(d corpus.DailyContext) string {
	if img := d.PrimaryImage(); img != "" {
		return img
	}
	return PlaceholderImage
}

func colorOf(d corpus.DailyContext) string {
	if d.Color == "" {
		return corpus.DefaultColor
	}
	return d.Color
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
