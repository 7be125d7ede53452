package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gridbase-io/gridbase/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gridbase",
		Short: "Gridbase - remote table grid editor backend",
		Long:  `Gridbase serves the session-authenticated command/event protocol behind the remote-table grid editor.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
