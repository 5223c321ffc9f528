package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "billing-service",
	Short: "Subscription billing and payment reconciliation service",
	Long:  "Reconciles payment provider notifications into the subscription ledger and answers plan-limit checks.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
