package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var userID string

var rootCmd = &cobra.Command{
	Use:   "fintrack-cli",
	Short: "Inspect and maintain fintrack ledgers from the terminal",
	Long: `fintrack-cli works directly against the configured storage backend.
It reads the same environment (and .env file) as the fintrack server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "default", "ledger owner")

	autopayCmd.AddCommand(autopayRunCmd, autopayListCmd)
	rootCmd.AddCommand(reportCmd, exportCmd, addCmd, autopayCmd, seedCmd, usersCmd)
}
