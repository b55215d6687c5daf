package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewRateLimitCommand(opts *Options) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Show 1Password API usage",
		Long: `Print the stored rate-limit snapshot as JSON, including the detected
account tier. With --refresh the snapshot is fetched from the CLI first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()

			if refresh {
				if _, err := a.limits.FetchAndStore(ctx); err != nil {
					return err
				}
			}

			snapshot, err := a.limits.Stored(ctx)
			if err != nil {
				return err
			}
			if snapshot == nil {
				return fmt.Errorf("no rate limit data stored yet, run with --refresh")
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(snapshot)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch fresh usage data before printing")

	return cmd
}
