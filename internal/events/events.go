// Package events defines the event and frame structures exchanged with the
// external alerting engine, the case service, and live transport sessions.
package events

import "time"

// Severity levels, ordered from least to most urgent.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// SeverityRank returns the numeric rank of a severity level.
// LOW=1, MEDIUM=2, HIGH=3, CRITICAL=4. Unknown severities rank 0.
func SeverityRank(severity string) int {
	switch severity {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// IsValidSeverity reports whether the severity is a recognized level.
func IsValidSeverity(severity string) bool {
	return SeverityRank(severity) > 0
}

// AlertEvent represents an alert fired by the external alerting engine,
// received either on POST /webhook or from the alerts.events topic.
// (RuleID, ExternalEventID) identifies one firing; redelivery of the same
// pair must not create duplicate notifications.
type AlertEvent struct {
	RuleID          string            `json:"rule_id"`
	ExternalEventID string            `json:"external_event_id"`
	Severity        string            `json:"severity"`
	Type            string            `json:"type"`
	Payload         map[string]string `json:"payload,omitempty"`
	EventTS         int64             `json:"event_ts,omitempty"`
	SchemaVersion   int               `json:"schema_version,omitempty"`
}

// NotificationFrame is the message pushed to live transport sessions and
// returned by the pull reconciliation endpoints.
type NotificationFrame struct {
	ID        int64     `json:"id"`
	RuleID    string    `json:"rule_id"`
	Severity  string    `json:"severity"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// CaseAssignment is the hand-off published to the case service once an
// owner has been selected. AssigneeID is nil when the dispatch resolved no
// recipients and the case lands in the unassigned pool.
type CaseAssignment struct {
	RuleID          string `json:"rule_id"`
	ExternalEventID string `json:"external_event_id"`
	AssigneeID      *int64 `json:"assignee_id"`
	Severity        string `json:"severity"`
	AssignedTS      int64  `json:"assigned_ts"`
	SchemaVersion   int    `json:"schema_version"`
}
