package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errUnhealthy makes `check` exit non-zero without printing usage.
var errUnhealthy = errors.New("system unhealthy")

var rootCmd = &cobra.Command{
	Use:   "phenotype-health",
	Short: "Health reporting for the phenotype catalog service",
	Long: `phenotype-health validates the environment, probes the database, the
embedding service and other dependencies, and serves the aggregate status on
GET /health. It can also watch the status and alert on transitions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errUnhealthy) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
