package cmd

import (
	"github.com/garytangtang2-bit/hkfirstclick/config"
	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	rootCmd := &cobra.Command{
		Use:           "hkfirstclick",
		Short:         "HK First Click itinerary backend",
		Long:          "hkfirstclick serves the itinerary generation API and manages accounts and migrations. Without a subcommand it runs the server.",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          serve.RunE,
	}

	rootCmd.AddCommand(
		serve,
		newMigrateCmd(),
		newAccountsCmd(),
	)

	return rootCmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			return migrateDatabase(config.Load())
		},
	}
}
