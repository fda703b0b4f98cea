/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "academy",
	Short: "Qenty academy storefront",
	Long: `Course catalog, checkout and classroom for the Qenty academy.

	academy server      serve the storefront
	academy migrate up  apply database migrations
	academy seed        create the administrator and sample catalog
	academy worker      write purchase receipts from the message queue
`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
