package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// Notification represents a persisted notification record.
// The triple (rule_id, external_event_id, recipient_id) is unique: redelivered
// webhook events never create a second record for the same recipient.
type Notification struct {
	ID              int64      `json:"id"`
	RecipientID     int64      `json:"recipient_id"`
	RuleID          string     `json:"rule_id"`
	ExternalEventID string     `json:"external_event_id"`
	Severity        string     `json:"severity"`
	Type            string     `json:"type"`
	Title           string     `json:"title"`
	Message         string     `json:"message"`
	CreatedAt       time.Time  `json:"created_at"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
}

const notificationColumns = `id, recipient_id, rule_id, external_event_id, severity, type, title, message, created_at, read_at`

func scanNotification(row interface{ Scan(...interface{}) error }) (*Notification, error) {
	var n Notification
	var readAt sql.NullTime
	err := row.Scan(
		&n.ID,
		&n.RecipientID,
		&n.RuleID,
		&n.ExternalEventID,
		&n.Severity,
		&n.Type,
		&n.Title,
		&n.Message,
		&n.CreatedAt,
		&readAt,
	)
	if err != nil {
		return nil, err
	}
	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	return &n, nil
}

// InsertNotificationIdempotent inserts a notification record with
// idempotency protection on (rule_id, external_event_id, recipient_id).
// Returns the stored record and true if a new row was inserted, or nil and
// false if the record already existed.
func (db *DB) InsertNotificationIdempotent(ctx context.Context, n *Notification) (*Notification, bool, error) {
	query := `
		INSERT INTO notifications (recipient_id, rule_id, external_event_id, severity, type, title, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (rule_id, external_event_id, recipient_id) DO NOTHING
		RETURNING ` + notificationColumns + `
	`
	stored, err := scanNotification(db.conn.QueryRowContext(ctx, query,
		n.RecipientID,
		n.RuleID,
		n.ExternalEventID,
		n.Severity,
		n.Type,
		n.Title,
		n.Message,
	))
	if err == sql.ErrNoRows {
		// No row was inserted: the dedup key already exists.
		slog.Debug("Notification already exists, skipping",
			"rule_id", n.RuleID,
			"external_event_id", n.ExternalEventID,
			"recipient_id", n.RecipientID,
		)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert notification: %w", err)
	}
	return stored, true, nil
}

// ListNotificationsSince retrieves a recipient's notifications with an id
// greater than sinceID, oldest first. Used by sessions reconciling after a
// reconnect. Pass sinceID=0 for the initial load.
func (db *DB) ListNotificationsSince(ctx context.Context, recipientID, sinceID int64, limit int) ([]*Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE recipient_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`
	rows, err := db.conn.QueryContext(ctx, query, recipientID, sinceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// UnreadCount returns the number of unread notifications for a recipient.
func (db *DB) UnreadCount(ctx context.Context, recipientID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE recipient_id = $1 AND read_at IS NULL
	`
	var count int
	if err := db.conn.QueryRowContext(ctx, query, recipientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkNotificationsRead marks the given notifications as read for a
// recipient. Ids belonging to other recipients are ignored. Returns the
// number of rows updated.
func (db *DB) MarkNotificationsRead(ctx context.Context, recipientID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE notifications
		SET read_at = NOW()
		WHERE recipient_id = $1 AND id = ANY($2) AND read_at IS NULL
	`
	result, err := db.conn.ExecContext(ctx, query, recipientID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return updated, nil
}

// AdvanceCursor atomically reads and advances the round-robin cursor for a
// rule. The cursor is created lazily at zero on first use; the returned value
// is the position to use for the current dispatch. The single-statement
// upsert serializes concurrent dispatches for the same rule on the row lock
// while leaving other rules unaffected.
func (db *DB) AdvanceCursor(ctx context.Context, ruleID string) (int64, error) {
	query := `
		INSERT INTO assignment_cursors (rule_id, position)
		VALUES ($1, 0)
		ON CONFLICT (rule_id) DO UPDATE
		SET position = assignment_cursors.position + 1
		RETURNING position
	`
	var position int64
	if err := db.conn.QueryRowContext(ctx, query, ruleID).Scan(&position); err != nil {
		return 0, fmt.Errorf("failed to advance assignment cursor: %w", err)
	}
	return position, nil
}
