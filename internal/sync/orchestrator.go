package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/systmms/opsync/internal/groups"
	"github.com/systmms/opsync/internal/ha"
	"github.com/systmms/opsync/internal/metrics"
	"github.com/systmms/opsync/internal/ratelimit"
)

// Result is what one sync pass reports back to the caller.
type Result struct {
	ChangedSecrets []string           `json:"changedSecrets"`
	ChangedGroups  []ha.AffectedGroup `json:"changedGroups"`
}

// Orchestrator drives one end-to-end sync cycle. A pass is a single
// linear sequence with no persisted intermediate state: it either fully
// completes or fails and the caller retries a whole new pass.
type Orchestrator struct {
	cache      *ItemCache
	reconciler *Reconciler
	groups     *groups.Service
	sink       ha.Sink
	limits     *ratelimit.Tracker
	logger     *zap.SugaredLogger
}

// NewOrchestrator wires the sync pipeline. The rate-limit tracker is
// optional; when present its snapshot is refreshed opportunistically after
// every pass.
func NewOrchestrator(
	cache *ItemCache,
	reconciler *Reconciler,
	groupSvc *groups.Service,
	sink ha.Sink,
	limits *ratelimit.Tracker,
	logger *zap.SugaredLogger,
) *Orchestrator {
	return &Orchestrator{
		cache:      cache,
		reconciler: reconciler,
		groups:     groupSvc,
		sink:       sink,
		limits:     limits,
		logger:     logger,
	}
}

// Sync runs one reconciliation pass. Failures before the secrets-file
// write abort the pass and fire an error event; once the file write has
// succeeded the sync has "happened" and notification failures can no
// longer unwind it.
func (o *Orchestrator) Sync(ctx context.Context, force bool) (Result, error) {
	start := time.Now()
	defer func() { metrics.SyncDuration.Observe(time.Since(start).Seconds()) }()

	o.logger.Debug("syncing known secrets")
	if err := o.reconciler.SyncKnownSecrets(ctx); err != nil {
		return Result{}, o.fail(ctx, err)
	}

	o.logger.Debug("refreshing item cache")
	o.cache.RefreshAll(ctx, force)

	o.logger.Debug("detecting changed secrets")
	changes, err := o.cache.RecentlyChangedAssignedSecrets(ctx)
	if err != nil {
		return Result{}, o.fail(ctx, err)
	}

	if len(changes) == 0 {
		o.logger.Debug("no secrets changed")
		o.refreshRateLimits(ctx)
		metrics.SyncTotal.WithLabelValues("ok").Inc()
		return Result{ChangedSecrets: []string{}, ChangedGroups: []ha.AffectedGroup{}}, nil
	}

	written, err := o.reconciler.ApplyChanges(ctx, changes)
	if err != nil {
		return Result{}, o.fail(ctx, err)
	}

	changedGroups, err := o.groups.ForSecrets(ctx, written)
	if err != nil {
		// The file write already happened; report the pass as done with
		// what we know rather than pretend nothing was written.
		o.logger.Errorw("failed to resolve changed groups", "error", err)
		changedGroups = []ha.AffectedGroup{}
	}

	ha.FireSecretsSyncedEvent(ctx, o.sink, written, changedGroups)
	o.sink.SendNotification(ctx,
		"1Password Secrets Updated",
		syncNotificationMessage(written),
		ha.SyncNotificationID,
	)

	o.refreshRateLimits(ctx)
	metrics.SyncTotal.WithLabelValues("ok").Inc()

	o.logger.Infow("sync completed",
		"changedSecrets", len(written),
		"changedGroups", len(changedGroups))

	return Result{ChangedSecrets: written, ChangedGroups: changedGroups}, nil
}

func (o *Orchestrator) fail(ctx context.Context, err error) error {
	o.logger.Errorw("sync failed", "error", err)
	metrics.SyncTotal.WithLabelValues("failed").Inc()
	ha.FireErrorEvent(ctx, o.sink, "sync_failed", map[string]interface{}{
		"error": err.Error(),
	})
	return err
}

// refreshRateLimits opportunistically updates the usage snapshot after a
// pass. Best-effort: a failed introspection never fails the sync.
func (o *Orchestrator) refreshRateLimits(ctx context.Context) {
	if o.limits == nil {
		return
	}
	if _, err := o.limits.FetchAndStore(ctx); err != nil {
		o.logger.Warnw("failed to refresh rate limits", "error", err)
	}
}

func syncNotificationMessage(written []string) string {
	plural := "s"
	if len(written) == 1 {
		plural = ""
	}
	return fmt.Sprintf("Updated %d secret%s: %s", len(written), plural, strings.Join(written, ", "))
}
