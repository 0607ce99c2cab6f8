package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/designdays/internal/api"
	"github.com/kalambet/designdays/internal/config"
	"github.com/kalambet/designdays/internal/content"
	"github.com/kalambet/designdays/internal/corpus"
	"github.com/kalambet/designdays/internal/feedback"
	"github.com/kalambet/designdays/internal/intent"
	"github.com/kalambet/designdays/internal/ranking"
	"github.com/kalambet/designdays/internal/storage"
)

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDay(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid day %q: must be a positive integer", s)
	}
	return n, nil
}

// --- days ---

var daysCmd = &cobra.Command{
	Use:   "days",
	Short: "Browse the daily projects served by the running server",
}

var daysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every day",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/days")
		if err != nil {
			return err
		}

		var days []api.DaySummary
		if err := decodeJSON(resp, &days); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(days) == 0 {
			fmt.Fprintln(out, "No days found.")
			return nil
		}
		for _, d := range days {
			printDayLine(out, d.Day, d.Title, d.Project, 0)
		}
		return nil
	},
}

var daysShowCmd = &cobra.Command{
	Use:   "show <day>",
	Short: "Show the full record for one day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseDay(args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/api/days/%d", day))
		if err != nil {
			return err
		}

		var d corpus.DailyContext
		if err := decodeJSON(resp, &d); err != nil {
			return err
		}
		return writeIndented(cmd.OutOrStdout(), d)
	},
}

func init() {
	daysCmd.AddCommand(daysListCmd)
	daysCmd.AddCommand(daysShowCmd)
}

// --- classify ---

var classifyCmd = &cobra.Command{
	Use:   "classify <question>",
	Short: "Show how a chat question is classified",
	Long: `Classify a chat question locally, without a running server.

With --rank the question is also run against the content directory and
code-sample catalog from the configuration, and the selected days are listed.

Examples:
  designdays classify "tell me about the UI Components category"
  designdays classify --rank "projects about animation"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		rank, _ := cmd.Flags().GetBool("rank")
		out := cmd.OutOrStdout()

		q := intent.Classify(text)
		if err := writeIndented(out, q); err != nil {
			return err
		}
		if !rank {
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		catalog, err := loadCatalog(cfg.Content.SamplesFile)
		if err != nil {
			return fmt.Errorf("loading code samples: %w", err)
		}
		agg := corpus.NewAggregator(content.NewDir(cfg.Content.Dir), catalog)

		sel := ranking.Select(agg.Days(cmd.Context()), q, ranking.Limits{
			BatchSize:       cfg.Chat.BatchSize,
			MaxContinuation: cfg.Chat.MaxContinuation,
		})
		printSelection(out, sel)
		return nil
	},
}

func printSelection(w io.Writer, sel ranking.Selection) {
	if len(sel.Categories) > 0 {
		fmt.Fprintln(w, colorize(colorBold, "Categories:"))
		for _, c := range sel.Categories {
			fmt.Fprintf(w, "  %s\n", c)
		}
		return
	}
	if len(sel.Results) == 0 {
		fmt.Fprintln(w, "No matching days.")
		return
	}
	for _, r := range sel.Results {
		printDayLine(w, r.Day, r.Title, r.Project, r.Score)
	}
	if sel.Remaining > 0 {
		fmt.Fprintf(w, "%d more held back for show-more\n", sel.Remaining)
	}
}

func init() {
	classifyCmd.Flags().Bool("rank", false, "also select matching days from the local content")
}

// --- feedback ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Read or record likes and dislikes",
}

var feedbackShowCmd = &cobra.Command{
	Use:   "show <day>",
	Short: "Show the counts for a day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseDay(args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/feedback/%d", day))
		if err != nil {
			return err
		}

		var c feedback.Counts
		if err := decodeJSON(resp, &c); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Day %d: %d likes, %d dislikes\n", day, c.Likes, c.Dislikes)
		return nil
	},
}

func newVoteCmd(kind feedback.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   string(kind) + " <day>",
		Short: fmt.Sprintf("Record a %s for a day", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDay(args[0])
			if err != nil {
				return err
			}

			client, err := newAPIClient()
			if err != nil {
				return err
			}

			resp, err := client.post(cmd.Context(), "/feedback/update", api.FeedbackUpdate{DayID: day, Type: string(kind)})
			if err != nil {
				return err
			}

			var c feedback.Counts
			if err := decodeJSON(resp, &c); err != nil {
				return err
			}
			printSuccess("Day %d: %d likes, %d dislikes", day, c.Likes, c.Dislikes)
			return nil
		},
	}
}

func init() {
	feedbackCmd.AddCommand(feedbackShowCmd)
	feedbackCmd.AddCommand(newVoteCmd(feedback.Like))
	feedbackCmd.AddCommand(newVoteCmd(feedback.Dislike))
}

// --- admin ---

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Admin operations (require server.admin_token)",
}

var adminQueriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "List recent chat questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/admin/chat-queries?limit=%d", limit))
		if err != nil {
			return err
		}

		var queries []storage.ChatQuery
		if err := decodeJSON(resp, &queries); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(queries) == 0 {
			fmt.Fprintln(out, "No chat queries logged.")
			return nil
		}
		for _, q := range queries {
			status := q.Status
			if q.Status == storage.StatusFailed {
				status = colorize(colorRed, status)
			}
			fmt.Fprintf(out, "%s  %-15s %-9s %s\n",
				q.CreatedAt.Format("2006-01-02 15:04"),
				q.QueryType,
				status,
				shorten(q.Query, 70),
			)
		}
		return nil
	},
}

var adminQueryCmd = &cobra.Command{
	Use:   "query <id>",
	Short: "Show one logged chat question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/admin/chat-queries/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var q storage.ChatQuery
		if err := decodeJSON(resp, &q); err != nil {
			return err
		}
		return writeIndented(cmd.OutOrStdout(), q)
	},
}

var adminInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Drop the cached daily context so content is re-read",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/admin/content/invalidate", nil)
		if err != nil {
			return err
		}

		var result struct {
			Days int `json:"days"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Content reloaded: %d days", result.Days)
		return nil
	},
}

func init() {
	adminQueriesCmd.Flags().Int("limit", 20, "maximum number of queries to list")
	adminCmd.AddCommand(adminQueriesCmd)
	adminCmd.AddCommand(adminQueryCmd)
	adminCmd.AddCommand(adminInvalidateCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
