// Package groups manages named secret collections and answers which groups
// a set of changed secrets belongs to.
package groups

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	opsyncerrors "github.com/systmms/opsync/internal/errors"
	"github.com/systmms/opsync/internal/ha"
	"github.com/systmms/opsync/internal/store"
)

const (
	nameMinLen        = 1
	nameMaxLen        = 50
	descriptionMaxLen = 500
)

var nameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidateName rejects group names that are empty, too long, or contain
// anything beyond lowercase letters, digits, underscores, and hyphens.
// Group names become part of Home Assistant event types, so the character
// set has to stay event-safe.
func ValidateName(name string) error {
	if len(name) < nameMinLen {
		return opsyncerrors.ValidationError{Field: "name", Message: "group name is required"}
	}
	if len(name) > nameMaxLen {
		return opsyncerrors.ValidationError{Field: "name", Message: fmt.Sprintf("group name must be at most %d characters", nameMaxLen)}
	}
	if !nameRe.MatchString(name) {
		return opsyncerrors.ValidationError{
			Field:   "name",
			Message: "group name must contain only lowercase letters, numbers, underscores, and hyphens",
		}
	}
	return nil
}

func validateDescription(description *string) error {
	if description != nil && len(*description) > descriptionMaxLen {
		return opsyncerrors.ValidationError{Field: "description", Message: fmt.Sprintf("description must be at most %d characters", descriptionMaxLen)}
	}
	return nil
}

// Service wraps the group repository with validation and intersection logic.
type Service struct {
	repo   store.GroupRepo
	logger *zap.SugaredLogger
}

// NewService creates the group service.
func NewService(repo store.GroupRepo, logger *zap.SugaredLogger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Create validates and creates a group, optionally with initial members.
// Validation runs before any storage write is attempted.
func (s *Service) Create(ctx context.Context, name string, description *string, secretIDs []string) (*store.Group, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if err := validateDescription(description); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, opsyncerrors.ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("group with name %q already exists", name),
		}
	}

	s.logger.Infow("creating group", "name", name)
	return s.repo.Create(ctx, store.Group{Name: name, Description: description}, secretIDs)
}

// Update validates and applies a partial group update.
func (s *Service) Update(ctx context.Context, id string, name *string, description *string) (*store.Group, error) {
	if name != nil {
		if err := ValidateName(*name); err != nil {
			return nil, err
		}
		existing, err := s.repo.GetByName(ctx, *name)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, opsyncerrors.ValidationError{
				Field:   "name",
				Message: fmt.Sprintf("group with name %q already exists", *name),
			}
		}
	}
	if err := validateDescription(description); err != nil {
		return nil, err
	}

	s.logger.Infow("updating group", "id", id)
	return s.repo.Update(ctx, id, name, description)
}

// Delete removes a group and its memberships.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.logger.Infow("deleting group", "id", id)
	return s.repo.Delete(ctx, id)
}

// Get returns one group or nil.
func (s *Service) Get(ctx context.Context, id string) (*store.Group, error) {
	return s.repo.Get(ctx, id)
}

// GetByName returns one group or nil.
func (s *Service) GetByName(ctx context.Context, name string) (*store.Group, error) {
	return s.repo.GetByName(ctx, name)
}

// List returns all groups ordered by name.
func (s *Service) List(ctx context.Context) ([]store.Group, error) {
	return s.repo.List(ctx)
}

// AddSecrets adds members to a group, ignoring duplicates.
func (s *Service) AddSecrets(ctx context.Context, groupID string, secretIDs []string) error {
	s.logger.Infow("adding secrets to group", "group", groupID, "secrets", secretIDs)
	return s.repo.AddSecrets(ctx, groupID, secretIDs)
}

// RemoveSecrets removes members from a group.
func (s *Service) RemoveSecrets(ctx context.Context, groupID string, secretIDs []string) error {
	s.logger.Infow("removing secrets from group", "group", groupID, "secrets", secretIDs)
	return s.repo.RemoveSecrets(ctx, groupID, secretIDs)
}

// SetSecrets replaces a group's full membership atomically.
func (s *Service) SetSecrets(ctx context.Context, groupID string, secretIDs []string) error {
	s.logger.Infow("setting secrets for group", "group", groupID, "secrets", secretIDs)
	return s.repo.ReplaceSecrets(ctx, groupID, secretIDs)
}

// ForSecrets returns every group containing at least one of the given
// secrets, annotated with only the intersecting members so a change
// notification reflects what changed rather than the whole group. An
// empty input returns immediately without touching storage.
func (s *Service) ForSecrets(ctx context.Context, secretIDs []string) ([]ha.AffectedGroup, error) {
	if len(secretIDs) == 0 {
		return nil, nil
	}

	changed := make(map[string]struct{}, len(secretIDs))
	for _, id := range secretIDs {
		changed[id] = struct{}{}
	}

	groups, err := s.repo.FindContainingSecrets(ctx, secretIDs)
	if err != nil {
		return nil, err
	}

	affected := make([]ha.AffectedGroup, 0, len(groups))
	for _, group := range groups {
		var members []string
		for _, m := range group.Secrets {
			if _, ok := changed[m.SecretID]; ok {
				members = append(members, m.SecretID)
			}
		}
		affected = append(affected, ha.AffectedGroup{
			ID:      group.ID,
			Name:    group.Name,
			Secrets: members,
		})
	}
	return affected, nil
}
