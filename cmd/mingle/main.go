package main

import (
	"os"

	"github.com/spf13/cobra"

	"mingle/internal/interfaces/cli/migrate"
	"mingle/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mingle",
		Short: "Mingle - conference networking backend",
		Long:  `Mingle backend with the integration API server, calendar sync worker, and migration tools.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
