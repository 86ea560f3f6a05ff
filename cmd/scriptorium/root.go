package main

import (
	"github.com/spf13/cobra"

	"github.com/pagewright/scriptorium/internal/api"
	"github.com/pagewright/scriptorium/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "scriptorium",
	Short: "Coordination server for volunteer book transcription",
	Long: `Scriptorium coordinates volunteer editors transcribing scanned books.

Admins ingest scanned PDFs, which become books whose pages are rendered
to images and opened for claiming. Editors claim a page, transcribe it,
and mark it complete; points reward finished work and book counters
track progress.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.scriptorium/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "scriptorium home directory (default: ~/.scriptorium)",
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
