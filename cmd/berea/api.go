package main

import (
	"github.com/spf13/cobra"

	"github.com/berea-study/berea/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Berea server via HTTP.

These commands require a running server (berea serve).
Use --server to specify a custom server URL.

Examples:
  berea api health               # Check server health
  berea api search "Who was Boaz?"
  berea api questions list       # List answered questions
  berea api admin control start  # Start a generation run`,
}

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Answered question commands",
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Generation run administration commands",
}

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Scheduler commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Study endpoints at top level of api
	apiCmd.AddCommand((&endpoints.SearchEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.TrackEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.RecentSearchesEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.SimilarTopicsEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.SitemapEndpoint{}).Command(getServerURL))

	// Questions as subcommand group
	questionsCmd.AddCommand((&endpoints.ListQuestionsEndpoint{}).Command(getServerURL))
	questionsCmd.AddCommand((&endpoints.GetQuestionEndpoint{}).Command(getServerURL))

	// Admin as subcommand group
	adminCmd.AddCommand((&endpoints.AdminControlEndpoint{}).Command(getServerURL))
	adminCmd.AddCommand((&endpoints.AdminStatusEndpoint{}).Command(getServerURL))
	adminCmd.AddCommand((&endpoints.AdminStatsEndpoint{}).Command(getServerURL))
	adminCmd.AddCommand((&endpoints.DeleteQuestionEndpoint{}).Command(getServerURL))
	adminCmd.AddCommand((&endpoints.AdminLLMCallsEndpoint{}).Command(getServerURL))

	// Cron as subcommand group
	cronCmd.AddCommand((&endpoints.CronTickEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(questionsCmd)
	apiCmd.AddCommand(adminCmd)
	apiCmd.AddCommand(cronCmd)
	rootCmd.AddCommand(apiCmd)
}
