package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relayq",
	Short: "Idempotent asynchronous email dispatch service",
	Long:  "An email dispatch service: submit once, get a durable status handle, and delivery happens out-of-band with retries, provider failover, circuit breaking and rate limiting.",
}

// Execute runs the root Cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
