// Package registry manages the binding between alerting-engine rules and
// the users, teams, and assignment strategy that handle their alerts.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/elite-business/case-tools-new-sub004/internal/database"
	"github.com/elite-business/case-tools-new-sub004/internal/events"
	"github.com/elite-business/case-tools-new-sub004/internal/strategy"
)

// ValidationError reports a rejected assignment field. Handlers map it to a
// 400 response.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Store is the persistence interface the registry depends on.
type Store interface {
	GetAssignment(ctx context.Context, ruleID string) (*database.Assignment, error)
	UpsertAssignment(ctx context.Context, a *database.Assignment) (*database.Assignment, error)
	RemoveAssignmentRecipients(ctx context.Context, ruleID string, userIDs, teamIDs []int64) (*database.Assignment, error)
}

// Service validates and stores rule assignments.
type Service struct {
	store Store
}

// NewService creates a registry service backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get retrieves the assignment for a rule.
// Returns database.ErrNotFound if the rule has no assignment.
func (s *Service) Get(ctx context.Context, ruleID string) (*database.Assignment, error) {
	if ruleID == "" {
		return nil, &ValidationError{Field: "rule_id", Reason: "cannot be empty"}
	}
	return s.store.GetAssignment(ctx, ruleID)
}

// Upsert validates and stores an assignment, replacing any existing binding
// for the rule. Re-applying an identical assignment is a no-op.
func (s *Service) Upsert(ctx context.Context, a *database.Assignment) (*database.Assignment, error) {
	if err := validateAssignment(a); err != nil {
		return nil, err
	}

	stored, err := s.store.UpsertAssignment(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("failed to store assignment: %w", err)
	}

	slog.Info("Assignment stored",
		"rule_id", stored.RuleID,
		"strategy", stored.Strategy,
		"users", len(stored.UserIDs),
		"teams", len(stored.TeamIDs),
	)
	return stored, nil
}

// RemoveRecipients removes users and teams from a rule's assignment.
// Removing an id that is not bound to the rule succeeds without effect.
func (s *Service) RemoveRecipients(ctx context.Context, ruleID string, userIDs, teamIDs []int64) (*database.Assignment, error) {
	if ruleID == "" {
		return nil, &ValidationError{Field: "rule_id", Reason: "cannot be empty"}
	}
	if len(userIDs) == 0 && len(teamIDs) == 0 {
		return nil, &ValidationError{Field: "recipients", Reason: "at least one user or team id is required"}
	}
	return s.store.RemoveAssignmentRecipients(ctx, ruleID, userIDs, teamIDs)
}

func validateAssignment(a *database.Assignment) error {
	if a.RuleID == "" {
		return &ValidationError{Field: "rule_id", Reason: "cannot be empty"}
	}
	if !events.IsValidSeverity(a.Severity) {
		return &ValidationError{Field: "severity", Reason: fmt.Sprintf("unknown severity %q", a.Severity)}
	}
	if _, err := strategy.ParseStrategy(a.Strategy); err != nil {
		return &ValidationError{Field: "strategy", Reason: err.Error()}
	}
	for _, id := range a.UserIDs {
		if id <= 0 {
			return &ValidationError{Field: "user_ids", Reason: fmt.Sprintf("invalid user id %d", id)}
		}
	}
	for _, id := range a.TeamIDs {
		if id <= 0 {
			return &ValidationError{Field: "team_ids", Reason: fmt.Sprintf("invalid team id %d", id)}
		}
	}
	return nil
}
