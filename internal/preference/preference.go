// Package preference decides whether a notification should be delivered to
// a user given their saved delivery preferences.
package preference

import (
	"time"

	"github.com/elite-business/case-tools-new-sub004/internal/database"
	"github.com/elite-business/case-tools-new-sub004/internal/events"
)

// Default returns the permissive preference applied to users who have never
// saved one: every type, every severity, no quiet hours, all channels on.
func Default(userID int64) *database.Preference {
	return &database.Preference{
		UserID:            userID,
		SeverityThreshold: events.SeverityLow,
		InApp:             true,
		Desktop:           true,
		Email:             true,
	}
}

// Decision explains a suppression. Delivered decisions carry ReasonDelivered.
type Decision string

const (
	ReasonDelivered    Decision = "delivered"
	ReasonTypeDisabled Decision = "type_disabled"
	ReasonBelowLevel   Decision = "below_threshold"
	ReasonQuietHours   Decision = "quiet_hours"
)

// ShouldDeliver applies the filter chain in order: type allow-list, severity
// threshold, quiet hours. CRITICAL alerts bypass quiet hours but not the
// earlier checks. now is evaluated in its own location.
func ShouldDeliver(p *database.Preference, severity, alertType string, now time.Time) (bool, Decision) {
	// An empty allow-list means all types are enabled.
	if len(p.EnabledTypes) > 0 && !containsType(p.EnabledTypes, alertType) {
		return false, ReasonTypeDisabled
	}

	if events.SeverityRank(severity) < events.SeverityRank(p.SeverityThreshold) {
		return false, ReasonBelowLevel
	}

	if severity != events.SeverityCritical && inQuietHours(p.QuietStart, p.QuietEnd, now) {
		return false, ReasonQuietHours
	}

	return true, ReasonDelivered
}

func containsType(types []string, t string) bool {
	for _, enabled := range types {
		if enabled == t {
			return true
		}
	}
	return false
}

// inQuietHours reports whether now falls inside the [start, end) quiet
// window, in minutes of the day. A window with start > end wraps midnight;
// start == end means quiet hours are disabled.
func inQuietHours(start, end int, now time.Time) bool {
	if start == end {
		return false
	}
	minute := now.Hour()*60 + now.Minute()
	if start < end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}
