package main

import (
	"github.com/spf13/cobra"

	"github.com/berea-study/berea/internal/api"
	"github.com/berea-study/berea/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "berea",
	Short: "Bible study server with LLM-generated answers",
	Long: `Berea answers Bible study questions with structured, LLM-generated
study content and builds a library of answered questions over time.

The server provides:
  - A cache-first search API backed by Postgres
  - Background auto-generation of new study questions and answers
  - Admin controls for the generation run (start, stop, reset)
  - Sitemap and topic discovery endpoints`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.berea/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "berea home directory (default: ~/.berea)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
