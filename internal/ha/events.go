package ha

import (
	"context"
	"sync"
)

// AffectedGroup describes a group touched by a sync pass, carrying only
// the members that actually changed.
type AffectedGroup struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Secrets []string `json:"secrets"`
}

// FireErrorEvent reports a failure condition to Home Assistant.
func FireErrorEvent(ctx context.Context, s Sink, errorType string, details map[string]interface{}) bool {
	data := map[string]interface{}{"errorType": errorType}
	for k, v := range details {
		data[k] = v
	}
	return s.FireEvent(ctx, EventError, data)
}

// FireSecretWrittenEvent announces a single secret write.
func FireSecretWrittenEvent(ctx context.Context, s Sink, secretName string, isNew bool) bool {
	return s.FireEvent(ctx, EventSecretWritten, map[string]interface{}{
		"secretName": secretName,
		"isNew":      isNew,
	})
}

// FireGroupUpdatedEvent announces that members of a group changed.
func FireGroupUpdatedEvent(ctx context.Context, s Sink, group AffectedGroup) bool {
	return s.FireEvent(ctx, GroupUpdatedEvent(group.Name), map[string]interface{}{
		"groupName":      group.Name,
		"groupId":        group.ID,
		"updatedSecrets": group.Secrets,
	})
}

// FireGroupUpdatedEvents fans a group-updated event out to every affected
// group concurrently. One group's delivery failure never blocks the rest.
func FireGroupUpdatedEvents(ctx context.Context, s Sink, groups []AffectedGroup) {
	if len(groups) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, group := range groups {
		wg.Add(1)
		go func(g AffectedGroup) {
			defer wg.Done()
			FireGroupUpdatedEvent(ctx, s, g)
		}(group)
	}
	wg.Wait()
}

// FireSecretsSyncedEvent summarizes a completed sync pass.
func FireSecretsSyncedEvent(ctx context.Context, s Sink, changedSecrets []string, changedGroups []AffectedGroup) bool {
	groupNames := make([]string, 0, len(changedGroups))
	for _, g := range changedGroups {
		groupNames = append(groupNames, g.Name)
	}
	return s.FireEvent(ctx, EventSecretsSynced, map[string]interface{}{
		"changedCount":   len(changedSecrets),
		"changedSecrets": changedSecrets,
		"changedGroups":  groupNames,
	})
}

// FireSecretAssignedEvent announces a new secret assignment.
func FireSecretAssignedEvent(ctx context.Context, s Sink, secretName, itemID, reference string) bool {
	return s.FireEvent(ctx, EventSecretAssigned, map[string]interface{}{
		"secretName": secretName,
		"itemId":     itemID,
		"reference":  reference,
	})
}

// FireSecretUnassignedEvent announces a removed secret assignment.
func FireSecretUnassignedEvent(ctx context.Context, s Sink, secretName string) bool {
	return s.FireEvent(ctx, EventSecretUnassigned, map[string]interface{}{
		"secretName": secretName,
	})
}

// FireItemRefreshedEvent announces an on-demand single-item refresh.
func FireItemRefreshedEvent(ctx context.Context, s Sink, itemID, vaultID string, affectedSecrets []string) bool {
	return s.FireEvent(ctx, EventItemRefreshed, map[string]interface{}{
		"itemId":          itemID,
		"vaultId":         vaultID,
		"affectedSecrets": affectedSecrets,
	})
}

// FireSecretSkipToggledEvent announces a skip-flag change.
func FireSecretSkipToggledEvent(ctx context.Context, s Sink, secretName string, isSkipped bool) bool {
	return s.FireEvent(ctx, EventSecretSkipToggled, map[string]interface{}{
		"secretName": secretName,
		"isSkipped":  isSkipped,
	})
}
