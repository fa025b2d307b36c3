package dispatcher

import (
	"context"

	"github.com/elite-business/case-tools-new-sub004/internal/database"
	"github.com/elite-business/case-tools-new-sub004/internal/events"
)

// AssignmentSource loads the routing binding for a rule.
type AssignmentSource interface {
	Get(ctx context.Context, ruleID string) (*database.Assignment, error)
}

// RecipientResolver expands an assignment into its recipient user ids.
type RecipientResolver interface {
	Resolve(ctx context.Context, a *database.Assignment) (recipients []int64, teams []*database.Team, ok bool, err error)
}

// AssigneeSelector picks the case assignee for a dispatch.
type AssigneeSelector interface {
	Select(ctx context.Context, a *database.Assignment, teams []*database.Team, recipients []int64) (int64, bool, error)
}

// Store is the persistence surface the dispatcher writes through.
type Store interface {
	InsertNotificationIdempotent(ctx context.Context, n *database.Notification) (*database.Notification, bool, error)
	GetPreference(ctx context.Context, userID int64) (*database.Preference, error)
	GetUser(ctx context.Context, userID int64) (*database.User, error)
}

// LivePublisher pushes frames to connected sessions. Returns the number of
// sessions reached.
type LivePublisher interface {
	Publish(topic string, frame []byte) int
}

// CasePublisher hands the dispatch outcome to the case-management pipeline.
type CasePublisher interface {
	Publish(ctx context.Context, assignment *events.CaseAssignment) error
}
