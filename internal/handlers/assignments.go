package handlers

import (
	"net/http"

	"github.com/elite-business/case-tools-new-sub004/internal/database"
)

// UpsertAssignmentRequest creates or replaces a rule's assignment.
type UpsertAssignmentRequest struct {
	Severity string  `json:"severity"`
	Category string  `json:"category"`
	Strategy string  `json:"strategy"`
	Active   *bool   `json:"active,omitempty"`
	UserIDs  []int64 `json:"user_ids"`
	TeamIDs  []int64 `json:"team_ids"`
}

// RemoveMembersRequest removes recipients from a rule's assignment.
type RemoveMembersRequest struct {
	UserIDs []int64 `json:"user_ids"`
	TeamIDs []int64 `json:"team_ids"`
}

// GetAssignment handles GET /rule-assignments/{ruleID}.
func (h *Handlers) GetAssignment(w http.ResponseWriter, r *http.Request) {
	assignment, err := h.registry.Get(r.Context(), r.PathValue("ruleID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

// UpsertAssignment handles PUT /rule-assignments/{ruleID}. Re-applying an
// identical assignment succeeds without side effects.
func (h *Handlers) UpsertAssignment(w http.ResponseWriter, r *http.Request) {
	var req UpsertAssignmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	stored, err := h.registry.Upsert(r.Context(), &database.Assignment{
		RuleID:   r.PathValue("ruleID"),
		Severity: req.Severity,
		Category: req.Category,
		Strategy: req.Strategy,
		Active:   active,
		UserIDs:  req.UserIDs,
		TeamIDs:  req.TeamIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

// RemoveAssignmentMembers handles DELETE /rule-assignments/{ruleID}/members.
// Removing ids that are not bound succeeds without effect.
func (h *Handlers) RemoveAssignmentMembers(w http.ResponseWriter, r *http.Request) {
	var req RemoveMembersRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.registry.RemoveRecipients(r.Context(), r.PathValue("ruleID"), req.UserIDs, req.TeamIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
