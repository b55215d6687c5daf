package sync

import (
	"context"

	"github.com/awnumar/memguard"
	"go.uber.org/zap"

	"github.com/systmms/opsync/internal/groups"
	"github.com/systmms/opsync/internal/ha"
	"github.com/systmms/opsync/internal/metrics"
	"github.com/systmms/opsync/internal/secrets"
	"github.com/systmms/opsync/internal/store"
)

// Reconciler owns the Home Assistant side of the sync: discovering secret
// keys in use, keeping the registry current, writing changed values to the
// secrets file, and the assignment operations the UI drives.
type Reconciler struct {
	files   secrets.Store
	secrets store.SecretRepo
	groups  *groups.Service
	sink    ha.Sink
	logger  *zap.SugaredLogger
}

// NewReconciler creates a reconciler.
func NewReconciler(
	files secrets.Store,
	secretRepo store.SecretRepo,
	groupSvc *groups.Service,
	sink ha.Sink,
	logger *zap.SugaredLogger,
) *Reconciler {
	return &Reconciler{
		files:   files,
		secrets: secretRepo,
		groups:  groupSvc,
		sink:    sink,
		logger:  logger,
	}
}

// SyncKnownSecrets ensures every secret key in use has a registry row.
// Keys come from !secret references in config files unioned with keys
// already present in the secrets file (other add-ons write secrets with no
// reference anywhere). Existing rows are never modified, so assignment
// state survives rediscovery.
func (r *Reconciler) SyncKnownSecrets(ctx context.Context) error {
	referenced, err := r.files.ScanReferencedKeys()
	if err != nil {
		return err
	}
	existing, err := r.files.ExistingKeys()
	if err != nil {
		return err
	}

	seen := map[string]struct{}{}
	for _, key := range referenced {
		seen[key] = struct{}{}
	}
	for _, key := range existing {
		seen[key] = struct{}{}
	}

	for key := range seen {
		if err := r.secrets.CreateIfAbsent(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// ApplyChanges writes the given values into the secrets file and fires one
// secret-written event per key, strictly after the write succeeded, plus a
// group-updated event for every group touched. A write failure propagates:
// silently proceeding as if secrets were written would desynchronize the
// UI from reality.
func (r *Reconciler) ApplyChanges(ctx context.Context, values map[string]*memguard.Enclave) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	written, addedList, err := r.files.Apply(values)
	if err != nil {
		return nil, err
	}
	metrics.SecretsWritten.Add(float64(len(written)))

	added := make(map[string]struct{}, len(addedList))
	for _, key := range addedList {
		added[key] = struct{}{}
	}
	for _, name := range written {
		_, isNew := added[name]
		ha.FireSecretWrittenEvent(ctx, r.sink, name, isNew)
	}

	affected, err := r.groups.ForSecrets(ctx, written)
	if err != nil {
		// The write already happened; group events are best-effort.
		r.logger.Errorw("failed to look up affected groups", "error", err)
		return written, nil
	}
	ha.FireGroupUpdatedEvents(ctx, r.sink, affected)

	return written, nil
}

// Assign links a secret to a vault item. Both the item id and the
// reference are set in one write; no state with exactly one of the two
// exists.
func (r *Reconciler) Assign(ctx context.Context, secretID, itemID, reference string) error {
	if err := r.secrets.Assign(ctx, secretID, itemID, reference); err != nil {
		return err
	}
	ha.FireSecretAssignedEvent(ctx, r.sink, secretID, itemID, reference)
	return nil
}

// Unassign clears a secret's item link and reference together.
func (r *Reconciler) Unassign(ctx context.Context, secretID string) error {
	if err := r.secrets.Unassign(ctx, secretID); err != nil {
		return err
	}
	ha.FireSecretUnassignedEvent(ctx, r.sink, secretID)
	return nil
}

// ToggleSkip flips a secret's skip flag and returns the updated row plus
// the previous flag value.
func (r *Reconciler) ToggleSkip(ctx context.Context, secretID string) (*store.Secret, bool, error) {
	secret, previous, err := r.secrets.ToggleSkip(ctx, secretID)
	if err != nil {
		return nil, false, err
	}
	ha.FireSecretSkipToggledEvent(ctx, r.sink, secretID, secret.IsSkipped)
	return secret, previous, nil
}

// Get returns one secret or nil.
func (r *Reconciler) Get(ctx context.Context, secretID string) (*store.Secret, error) {
	return r.secrets.Get(ctx, secretID)
}

// List returns all secrets in display order.
func (r *Reconciler) List(ctx context.Context) ([]store.Secret, error) {
	return r.secrets.List(ctx)
}
