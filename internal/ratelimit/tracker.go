// Package ratelimit snapshots 1Password API usage so the UI can warn
// before quota exhaustion.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/systmms/opsync/internal/op"
	"github.com/systmms/opsync/internal/store"
)

// Tier is the detected 1Password account tier.
type Tier string

const (
	TierBusiness Tier = "business"
	TierTeams    Tier = "teams"
	TierPersonal Tier = "personal"
)

// Metric is one rate-limit window.
type Metric struct {
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
	Reset     string `json:"reset"`
}

// Data groups the two windows the add-on cares about.
type Data struct {
	Daily       Metric `json:"daily"`
	HourlyReads Metric `json:"hourlyReads"`
}

// Account describes the detected account tier.
type Account struct {
	Tier        Tier   `json:"tier"`
	DisplayName string `json:"displayName"`
}

// Snapshot is the persisted rate-limit state.
type Snapshot struct {
	Timestamp string  `json:"timestamp"`
	Limits    Data    `json:"limits"`
	Account   Account `json:"account"`
}

// legacySnapshot is the pre-account persisted shape; detected and migrated
// transparently on read.
type legacySnapshot struct {
	Timestamp string   `json:"timestamp"`
	Limits    Data     `json:"limits"`
	Account   *Account `json:"account"`
}

// DefaultWarningThreshold is the used/limit ratio at which the UI warns.
const DefaultWarningThreshold = 0.9

// Tracker fetches, classifies, and persists rate-limit snapshots.
type Tracker struct {
	client   op.Client
	settings store.SettingRepo
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewTracker creates a rate-limit tracker.
func NewTracker(client op.Client, settings store.SettingRepo, logger *zap.SugaredLogger) *Tracker {
	return &Tracker{
		client:   client,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// FetchAndStore queries usage from the CLI, classifies the account tier,
// and persists the snapshot. Introspection failures propagate; the caller
// decides whether they are fatal.
func (t *Tracker) FetchAndStore(ctx context.Context) (*Snapshot, error) {
	t.logger.Debug("fetching rate limits")

	rows, err := t.client.GetUsage(ctx)
	if err != nil {
		return nil, err
	}

	limits := t.transform(rows)
	snapshot := &Snapshot{
		Timestamp: t.now().Format(time.RFC3339),
		Limits:    limits,
		Account:   DetectAccountTier(limits.Daily.Limit, limits.HourlyReads.Limit),
	}

	if err := t.persist(ctx, snapshot); err != nil {
		return nil, err
	}

	t.logger.Infow("rate limits updated",
		"daily", limits.Daily.Used, "dailyLimit", limits.Daily.Limit,
		"tier", snapshot.Account.Tier)
	return snapshot, nil
}

// Stored returns the persisted snapshot, or nil when none exists. Legacy
// snapshots missing the account field are migrated in place.
func (t *Tracker) Stored(ctx context.Context) (*Snapshot, error) {
	value, found, err := t.settings.Get(ctx, store.SettingRateLimits)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var legacy legacySnapshot
	if err := json.Unmarshal([]byte(value), &legacy); err != nil {
		return nil, fmt.Errorf("failed to decode rate limit snapshot: %w", err)
	}

	if legacy.Account == nil {
		t.logger.Warn("found old rate limit data format, detecting account tier")
		migrated := &Snapshot{
			Timestamp: legacy.Timestamp,
			Limits:    legacy.Limits,
			Account:   DetectAccountTier(legacy.Limits.Daily.Limit, legacy.Limits.HourlyReads.Limit),
		}
		if err := t.persist(ctx, migrated); err != nil {
			return nil, err
		}
		return migrated, nil
	}

	return &Snapshot{
		Timestamp: legacy.Timestamp,
		Limits:    legacy.Limits,
		Account:   *legacy.Account,
	}, nil
}

// WarningLimits returns the window names ("daily", "hourlyReads") whose
// usage ratio is at or above threshold.
func (t *Tracker) WarningLimits(ctx context.Context, threshold float64) ([]string, error) {
	snapshot, err := t.Stored(ctx)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, nil
	}

	var warnings []string
	if ratio(snapshot.Limits.Daily) >= threshold {
		warnings = append(warnings, "daily")
	}
	if ratio(snapshot.Limits.HourlyReads) >= threshold {
		warnings = append(warnings, "hourlyReads")
	}
	return warnings, nil
}

// ShouldWarn reports whether any window crossed the threshold.
func (t *Tracker) ShouldWarn(ctx context.Context, threshold float64) (bool, error) {
	warnings, err := t.WarningLimits(ctx, threshold)
	if err != nil {
		return false, err
	}
	return len(warnings) > 0, nil
}

func (t *Tracker) persist(ctx context.Context, snapshot *Snapshot) error {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode rate limit snapshot: %w", err)
	}
	return t.settings.Upsert(ctx, store.SettingRateLimits, string(encoded))
}

// transform maps the raw CLI rows onto the two windows the UI shows:
// daily is the account-level read_write limit, hourlyReads the token-level
// read limit. Missing rows fall back to the personal-tier default of 1000.
func (t *Tracker) transform(rows []op.UsageRow) Data {
	now := t.now()

	daily := metricFrom(findRow(rows, "account", "read_write"), now, 24*time.Hour)
	hourlyReads := metricFrom(findRow(rows, "token", "read"), now, time.Hour)

	return Data{Daily: daily, HourlyReads: hourlyReads}
}

func findRow(rows []op.UsageRow, rowType, action string) *op.UsageRow {
	for i := range rows {
		if rows[i].Type == rowType && rows[i].Action == action {
			return &rows[i]
		}
	}
	return nil
}

func metricFrom(row *op.UsageRow, now time.Time, fallbackWindow time.Duration) Metric {
	if row == nil {
		return Metric{
			Limit:     1000,
			Used:      0,
			Remaining: 1000,
			Reset:     now.Add(fallbackWindow).Format(time.RFC3339),
		}
	}

	remaining := row.Remaining
	if remaining == 0 && row.Limit > row.Used {
		remaining = row.Limit - row.Used
	}

	reset := now.Add(fallbackWindow)
	if row.Reset > 0 {
		reset = now.Add(time.Duration(row.Reset) * time.Second)
	}

	return Metric{
		Limit:     row.Limit,
		Used:      row.Used,
		Remaining: remaining,
		Reset:     reset.Format(time.RFC3339),
	}
}

// DetectAccountTier classifies the account from its observed limits.
// Business accounts get 50k daily requests, Teams 5k; Personal and
// Families share the same 1k limits and cannot be told apart.
func DetectAccountTier(dailyLimit, hourlyReadLimit int) Account {
	switch {
	case dailyLimit >= 50000:
		return Account{Tier: TierBusiness, DisplayName: "1Password Business"}
	case dailyLimit >= 5000:
		return Account{Tier: TierTeams, DisplayName: "1Password Teams"}
	case hourlyReadLimit >= 1000:
		return Account{Tier: TierPersonal, DisplayName: "1Password / Families"}
	default:
		return Account{Tier: TierPersonal, DisplayName: "1Password"}
	}
}

func ratio(m Metric) float64 {
	if m.Limit == 0 {
		return 0
	}
	return float64(m.Used) / float64(m.Limit)
}
