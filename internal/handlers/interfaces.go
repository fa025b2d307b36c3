package handlers

import (
	"context"

	"github.com/elite-business/case-tools-new-sub004/internal/database"
	"github.com/elite-business/case-tools-new-sub004/internal/dispatcher"
	"github.com/elite-business/case-tools-new-sub004/internal/events"
)

// AssignmentRegistry manages rule assignment bindings.
type AssignmentRegistry interface {
	Get(ctx context.Context, ruleID string) (*database.Assignment, error)
	Upsert(ctx context.Context, a *database.Assignment) (*database.Assignment, error)
	RemoveRecipients(ctx context.Context, ruleID string, userIDs, teamIDs []int64) (*database.Assignment, error)
}

// NotificationStore serves the read side of the notification feed.
type NotificationStore interface {
	ListNotificationsSince(ctx context.Context, recipientID, sinceID int64, limit int) ([]*database.Notification, error)
	UnreadCount(ctx context.Context, recipientID int64) (int, error)
	MarkNotificationsRead(ctx context.Context, recipientID int64, ids []int64) (int64, error)
}

// EventDispatcher routes one alert event.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event *events.AlertEvent) (*dispatcher.Report, error)
}
