package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/designdays/internal/corpus"
	"github.com/kalambet/designdays/internal/feedback"
	"github.com/kalambet/designdays/internal/intent"
	"github.com/kalambet/designdays/internal/ranking"
)

const (
	defaultFindLimit = 10
	maxFindLimit     = 100
)

// DayReader is the read side of the daily records.
type DayReader interface {
	Days(ctx context.Context) []corpus.DailyContext
	Day(ctx context.Context, n int) (corpus.DailyContext, bool)
	Categories(ctx context.Context) []string
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Days     DayReader
	Feedback FeedbackService // optional; get_feedback reports an error when nil
	Version  string
}

// FindResult is the find_projects tool output.
type FindResult struct {
	QueryType  intent.QueryType `json:"queryType"`
	Term       string           `json:"term,omitempty"`
	Results    []FoundProject   `json:"results"`
	Categories []string         `json:"categories,omitempty"`
	Remaining  int              `json:"remaining"`
}

// FoundProject is one scored match.
type FoundProject struct {
	Day         int    `json:"day"`
	Title       string `json:"title"`
	Project     string `json:"project,omitempty"`
	Description string `json:"description,omitempty"`
	Score       int    `json:"score"`
}

// NewMCPServer creates an MCP server exposing the day catalog.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"designdays",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("designdays: search the 100 Days of Design Engineering projects by category, topic or day."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_categories",
			mcp.WithDescription("List the distinct project categories, sorted alphabetically."),
		),
		mcpListCategories(deps),
	)

	s.AddTool(
		mcp.NewTool("find_projects",
			mcp.WithDescription("Find projects matching a free-text question such as \"projects about animation\" or \"day 12\"."),
			mcp.WithString("query", mcp.Description("Question or search phrase"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpFindProjects(deps),
	)

	s.AddTool(
		mcp.NewTool("get_day",
			mcp.WithDescription("Return the full record for one day, including markdown and code sample."),
			mcp.WithNumber("day", mcp.Description("Day number"), mcp.Required()),
		),
		mcpGetDay(deps),
	)

	s.AddTool(
		mcp.NewTool("get_feedback",
			mcp.WithDescription("Return like and dislike counts for one day."),
			mcp.WithNumber("day", mcp.Description("Day number"), mcp.Required()),
		),
		mcpGetFeedback(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"designdays://categories",
			"Project Categories",
			mcp.WithResourceDescription("Distinct project categories as a JSON array"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceCategories(deps),
	)

	return s
}

func mcpListCategories(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b, err := json.Marshal(deps.Days.Categories(ctx))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal categories: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpFindProjects(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", defaultFindLimit)
		if limit <= 0 {
			limit = defaultFindLimit
		}
		if limit > maxFindLimit {
			limit = maxFindLimit
		}

		q := intent.Classify(query)
		sel := ranking.Select(deps.Days.Days(ctx), q, ranking.Limits{BatchSize: limit, MaxContinuation: limit})

		out := FindResult{
			QueryType:  q.Type,
			Term:       q.Term,
			Results:    make([]FoundProject, len(sel.Results)),
			Categories: sel.Categories,
			Remaining:  sel.Remaining,
		}
		for i, s := range sel.Results {
			out.Results[i] = FoundProject{
				Day:         s.Day,
				Title:       s.Title,
				Project:     s.Project,
				Description: s.Description,
				Score:       s.Score,
			}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetDay(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		n, err := req.RequireInt("day")
		if err != nil {
			return mcpError("day is required"), nil
		}

		d, ok := deps.Days.Day(ctx, n)
		if !ok {
			return mcpError(fmt.Sprintf("day %d not found", n)), nil
		}

		b, err := json.Marshal(d)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal day: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetFeedback(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Feedback == nil {
			return mcpError("feedback store not configured"), nil
		}
		n, err := req.RequireInt("day")
		if err != nil {
			return mcpError("day is required"), nil
		}

		c, err := deps.Feedback.Get(ctx, n)
		if errors.Is(err, feedback.ErrInvalidDay) {
			return mcpError(err.Error()), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("reading feedback failed: %v", err)), nil
		}

		b, err := json.Marshal(c)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal counts: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceCategories(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Days.Categories(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal categories: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
