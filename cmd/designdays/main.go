package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "designdays",
	Short: "Chat and feedback backend for the 100 Days of Design Engineering site",
	Long: `designdays serves the daily project catalog, the chat assistant that
answers questions about it, and the like/dislike counters.

Run "designdays serve" to start the HTTP API, or "designdays mcp" to expose
the catalog to an MCP client over stdio.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if os.Getenv("NO_COLOR") != "" {
			noColor = true
		}
	},
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(daysCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
