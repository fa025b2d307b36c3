package handlers

import (
	"net/http"

	"github.com/elite-business/case-tools-new-sub004/internal/database"
)

// ListNotificationsResponse is the notification feed page for one user.
type ListNotificationsResponse struct {
	Notifications []*database.Notification `json:"notifications"`
	LastID        int64                    `json:"last_id"`
}

// MarkReadRequest marks a batch of notifications as read.
type MarkReadRequest struct {
	UserID int64   `json:"user_id"`
	IDs    []int64 `json:"ids"`
}

// MarkReadResponse reports how many notifications were marked.
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}

// ListNotifications handles GET /notifications?user_id=&since=&limit=.
// Results are ascending by id so clients can resume from last_id after a
// reconnect.
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	notifications, err := h.store.ListNotificationsSince(r.Context(), userID, parseSince(r), parseLimit(r))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ListNotificationsResponse{Notifications: notifications}
	if resp.Notifications == nil {
		resp.Notifications = []*database.Notification{}
	}
	if n := len(notifications); n > 0 {
		resp.LastID = notifications[n-1].ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// UnreadCount handles GET /notifications/unread-count?user_id=.
func (h *Handlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	count, err := h.store.UnreadCount(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

// MarkRead handles POST /notifications/read.
func (h *Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req MarkReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		http.Error(w, "ids is required", http.StatusBadRequest)
		return
	}

	updated, err := h.store.MarkNotificationsRead(r.Context(), req.UserID, req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MarkReadResponse{Updated: updated})
}
