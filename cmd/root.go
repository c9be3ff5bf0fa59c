package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "petube",
	Short: "petube edge coordinator: stream rooms, device pairing registry",
	Long:  `HTTP + WebSocket API. Commands: api, migrate, seed, token.`,
	RunE:  runAPI, // default: run API (same as "petube api")
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenCmd)
}

// Execute runs the root command and returns the error (for main to log.Fatal).
func Execute() error {
	return rootCmd.Execute()
}
