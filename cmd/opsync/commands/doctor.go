package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/systmms/opsync/internal/config"
	"github.com/systmms/opsync/internal/logging"
	"github.com/systmms/opsync/internal/op"
	"github.com/systmms/opsync/internal/store"
)

// optionsPath is where the Supervisor writes the add-on options.
const optionsPath = "/data/options.json"

func NewDoctorCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and connectivity",
		Long: `Verify that opsync can do its job.

This command checks:
- Environment configuration
- Add-on options file validity
- 1Password CLI availability and authentication
- Database access
- Supervisor API token presence`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.EnvFile != "" {
				if err := godotenv.Load(opts.EnvFile); err != nil {
					return fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
				}
			}

			failures := 0
			check := func(name string, err error) {
				if err != nil {
					failures++
					fmt.Printf("✗ %s: %v\n", name, err)
					return
				}
				fmt.Printf("✓ %s\n", name)
			}

			cfg, err := config.Load()
			check("configuration", err)
			if err != nil {
				return fmt.Errorf("%d check(s) failed", failures)
			}

			check("options file", config.ValidateOptions(optionsPath))

			if _, err := os.Stat(cfg.ConfigFolder); err != nil {
				failures++
				fmt.Printf("✗ config folder: %v\n", err)
			} else {
				fmt.Println("✓ config folder")
			}

			logger := logging.NewNop()
			opClient := op.NewCLI(cfg.ServiceAccountToken, logger)
			check("1password cli", opClient.Validate())

			if cfg.ServiceAccountToken == "" {
				failures++
				fmt.Println("✗ service account token: OP_SERVICE_ACCOUNT_TOKEN is not set")
			} else if _, err := opClient.GetUsage(cmd.Context()); err != nil {
				failures++
				fmt.Printf("✗ 1password auth: %v\n", err)
			} else {
				fmt.Println("✓ 1password auth")
			}

			db, err := store.Open(cfg.DBPath)
			check("database", err)
			if err == nil {
				if sqlDB, dbErr := db.DB(); dbErr == nil {
					_ = sqlDB.Close()
				}
			}

			if cfg.SupervisorToken == "" {
				fmt.Println("! supervisor token: not set, events and notifications will be skipped")
			} else {
				fmt.Println("✓ supervisor token")
			}

			if failures > 0 {
				return fmt.Errorf("%d check(s) failed", failures)
			}
			fmt.Println("All checks passed")
			return nil
		},
	}
}
