// Package main implements the paperwatch CLI.
//
// paperwatch fetches the day's preprints, filters them for relevance
// with a cheap model, analyzes the survivors with an expensive model,
// and writes a Markdown report. It is designed to be run once a day
// by cron or a CI scheduler.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errAborted) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps the command result to the process exit code: 0 for a
// written report, 1 for startup or command errors, 2 for an aborted
// pipeline run. Mapping here, after Execute returns, lets runPipeline's
// deferred cleanup (telemetry flush, log sync) finish first.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errAborted):
		return 2
	default:
		return 1
	}
}

var rootCmd = &cobra.Command{
	Use:   "paperwatch",
	Short: "Daily AI-for-Science preprint digest",
	Long: `paperwatch builds a daily Markdown digest of new preprints relevant
to AI for Science.

It fetches candidates from arXiv, bioRxiv, medRxiv, and ChemRxiv,
classifies each for relevance with a cheap LLM, runs a deep analysis
of the relevant ones, and renders the results into a report.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("paperwatch by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}
