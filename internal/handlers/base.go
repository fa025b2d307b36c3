// Package handlers provides the HTTP handlers for the alert routing API.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Handlers wraps dependencies for the HTTP handlers.
type Handlers struct {
	registry   AssignmentRegistry
	store      NotificationStore
	dispatcher EventDispatcher
}

// NewHandlers creates a handlers instance.
func NewHandlers(registry AssignmentRegistry, store NotificationStore, d EventDispatcher) *Handlers {
	return &Handlers{
		registry:   registry,
		store:      store,
		dispatcher: d,
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes the request body into v. Writes a 400 response and
// returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// requireUserID parses the user_id query parameter. Writes a 400 response
// and returns false when it is missing or not a positive integer.
func requireUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		http.Error(w, "user_id query parameter is required", http.StatusBadRequest)
		return 0, false
	}
	return userID, true
}

// parseSince parses the optional since query parameter, defaulting to zero.
func parseSince(r *http.Request) int64 {
	since, err := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if err != nil || since < 0 {
		return 0
	}
	return since
}

// parseLimit parses the optional limit query parameter with a ceiling.
func parseLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return defaultPageLimit
	}
	if limit > maxPageLimit {
		return maxPageLimit
	}
	return limit
}
