package handlers

import (
	"net/http"

	"github.com/elite-business/case-tools-new-sub004/internal/events"
)

// WebhookRequest is the alert event pushed by the alerting engine.
type WebhookRequest struct {
	RuleID          string            `json:"rule_id"`
	ExternalEventID string            `json:"external_event_id"`
	Severity        string            `json:"severity"`
	Type            string            `json:"type"`
	Payload         map[string]string `json:"payload,omitempty"`
	EventTS         int64             `json:"event_ts"`
}

// WebhookResponse acknowledges an accepted alert event. Created reports
// whether any new notification records were written; redeliveries come back
// with created=false.
type WebhookResponse struct {
	Created        bool `json:"created"`
	RecipientCount int  `json:"recipient_count"`
	Unassigned     bool `json:"unassigned"`
}

// Webhook accepts an alert event, routes it synchronously, and returns 202.
// Redelivered events are acknowledged again without creating duplicates.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.RuleID == "" {
		http.Error(w, "rule_id is required", http.StatusBadRequest)
		return
	}
	if req.ExternalEventID == "" {
		http.Error(w, "external_event_id is required", http.StatusBadRequest)
		return
	}
	if !events.IsValidSeverity(req.Severity) {
		http.Error(w, "severity must be one of: LOW, MEDIUM, HIGH, CRITICAL", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		http.Error(w, "type is required", http.StatusBadRequest)
		return
	}

	report, err := h.dispatcher.Dispatch(r.Context(), &events.AlertEvent{
		RuleID:          req.RuleID,
		ExternalEventID: req.ExternalEventID,
		Severity:        req.Severity,
		Type:            req.Type,
		Payload:         req.Payload,
		EventTS:         req.EventTS,
		SchemaVersion:   1,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, WebhookResponse{
		Created:        report.Created > 0,
		RecipientCount: report.RecipientCount,
		Unassigned:     report.Unassigned,
	})
}
