// Package op wraps the 1Password CLI.
package op

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	opsyncerrors "github.com/systmms/opsync/internal/errors"
)

// Client is the vault access contract consumed by the sync engine.
type Client interface {
	// ListItems returns item summaries across all vaults the service
	// account can see. Listings do not include detailed fields.
	ListItems(ctx context.Context) ([]Item, error)

	// GetItem fetches one item with full field detail. It returns
	// (nil, nil) when the item does not exist.
	GetItem(ctx context.Context, id, vaultID string) (*Item, error)

	// ResolveReference resolves an op://vault/item/field reference to its
	// live plaintext value.
	ResolveReference(ctx context.Context, ref string) (string, error)

	// GetUsage returns the account's raw rate-limit rows.
	GetUsage(ctx context.Context) ([]UsageRow, error)
}

// DefaultTimeout bounds a single CLI invocation.
const DefaultTimeout = 30 * time.Second

// CLI implements Client by shelling out to the `op` binary.
type CLI struct {
	serviceAccountToken string
	timeout             time.Duration
	logger              *zap.SugaredLogger
}

// NewCLI creates a CLI-backed client authenticated via service account token.
func NewCLI(serviceAccountToken string, logger *zap.SugaredLogger) *CLI {
	return &CLI{
		serviceAccountToken: serviceAccountToken,
		timeout:             DefaultTimeout,
		logger:              logger,
	}
}

// Validate checks that the op binary is available.
func (c *CLI) Validate() error {
	if _, err := exec.LookPath("op"); err != nil {
		return opsyncerrors.UserError{
			Message:    "1Password CLI not found in PATH",
			Suggestion: "Install 1Password CLI: https://developer.1password.com/docs/cli/get-started/",
			Err:        err,
		}
	}
	return nil
}

func (c *CLI) ListItems(ctx context.Context) ([]Item, error) {
	output, err := c.run(ctx, "item", "list", "--format", "json")
	if err != nil {
		return nil, opsyncerrors.VaultCLIError("item list", err)
	}

	var items []Item
	if err := json.Unmarshal(output, &items); err != nil {
		return nil, fmt.Errorf("failed to parse item listing: %w", err)
	}
	return items, nil
}

func (c *CLI) GetItem(ctx context.Context, id, vaultID string) (*Item, error) {
	output, err := c.run(ctx, "item", "get", id, "--vault", vaultID, "--format", "json")
	if err != nil {
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "isn't an item") {
			return nil, nil
		}
		return nil, opsyncerrors.VaultCLIError("item get", err)
	}

	var item Item
	if err := json.Unmarshal(output, &item); err != nil {
		return nil, fmt.Errorf("failed to parse item: %w", err)
	}
	return &item, nil
}

func (c *CLI) ResolveReference(ctx context.Context, ref string) (string, error) {
	output, err := c.run(ctx, "read", ref)
	if err != nil {
		return "", opsyncerrors.VaultCLIError("read", err)
	}
	// op read terminates the value with a newline.
	return strings.TrimSuffix(string(output), "\n"), nil
}

func (c *CLI) GetUsage(ctx context.Context) ([]UsageRow, error) {
	output, err := c.run(ctx, "service-account", "ratelimit", "--format", "json")
	if err != nil {
		return nil, opsyncerrors.VaultCLIError("service-account ratelimit", err)
	}

	var rows []UsageRow
	if err := json.Unmarshal(output, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse rate limit output: %w", err)
	}
	return rows, nil
}

// run executes one op invocation with the configured timeout. The service
// account token travels through the child environment, never through argv.
func (c *CLI) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "op", args...)
	cmd.Env = append(os.Environ(), "OP_SERVICE_ACCOUNT_TOKEN="+c.serviceAccountToken)

	c.logger.Debugw("running op", "args", args)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if stderr != "" {
				return nil, fmt.Errorf("op %s: %s", args[0], stderr)
			}
		}
		return nil, fmt.Errorf("failed to execute op %s: %w", args[0], err)
	}
	return output, nil
}
