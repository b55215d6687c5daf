package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/opsync/cmd/opsync/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &commands.Options{}

	rootCmd := &cobra.Command{
		Use:   "opsync",
		Short: "1Password secrets sync for Home Assistant",
		Long: `opsync mirrors 1Password vault items into a local registry, writes
assigned secrets into Home Assistant's secrets.yaml, and notifies Home
Assistant about every change through events and persistent notifications.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "Extra .env file to load")

	rootCmd.AddCommand(
		commands.NewServeCommand(opts),
		commands.NewSyncCommand(opts),
		commands.NewRateLimitCommand(opts),
		commands.NewDoctorCommand(opts),
	)

	return rootCmd.Execute()
}
