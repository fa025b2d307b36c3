package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/elite-business/case-tools-new-sub004/internal/database"
	"github.com/elite-business/case-tools-new-sub004/internal/registry"
)

// writeError maps service errors to HTTP responses: validation failures are
// 400, missing records 404, everything else 500.
func writeError(w http.ResponseWriter, err error) {
	var verr *registry.ValidationError
	if errors.As(err, &verr) {
		http.Error(w, verr.Error(), http.StatusBadRequest)
		return
	}
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	slog.Error("Request failed", "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
