package commands

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func NewSyncCommand(opts *Options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single sync pass",
		Long: `Run one reconciliation pass: discover secret keys, refresh the item
cache, resolve recently changed assignments, and write them to secrets.yaml.
The result is printed as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.orchestrator.Sync(cmd.Context(), force)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Ignore the refresh cooldown")

	return cmd
}
