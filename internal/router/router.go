// Package router wires the HTTP routes for the alert routing service.
package router

import (
	"net/http"
	"time"

	"github.com/elite-business/case-tools-new-sub004/internal/handlers"
)

// Router wraps the HTTP mux and route configuration.
type Router struct {
	mux      *http.ServeMux
	handlers *handlers.Handlers
	ws       http.Handler
}

// NewRouter creates a router with all routes configured. ws handles the
// websocket upgrade endpoint and may be nil in tests.
func NewRouter(h *handlers.Handlers, ws http.Handler) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		handlers: h,
		ws:       ws,
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.mux.HandleFunc("POST /webhook", r.handlers.Webhook)

	r.mux.HandleFunc("GET /rule-assignments/{ruleID}", r.handlers.GetAssignment)
	r.mux.HandleFunc("PUT /rule-assignments/{ruleID}", r.handlers.UpsertAssignment)
	r.mux.HandleFunc("DELETE /rule-assignments/{ruleID}/members", r.handlers.RemoveAssignmentMembers)

	r.mux.HandleFunc("GET /notifications", r.handlers.ListNotifications)
	r.mux.HandleFunc("GET /notifications/unread-count", r.handlers.UnreadCount)
	r.mux.HandleFunc("POST /notifications/read", r.handlers.MarkRead)

	if r.ws != nil {
		r.mux.Handle("GET /ws", r.ws)
	}

	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// Handler returns the HTTP handler with CORS middleware applied.
func (r *Router) Handler() http.Handler {
	return corsMiddleware(r.mux)
}

// corsMiddleware applies CORS headers to all requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewServer creates the HTTP server with the router configured.
func NewServer(port string, h *handlers.Handlers, ws http.Handler) *http.Server {
	router := NewRouter(h, ws)
	return &http.Server{
		Addr:         ":" + port,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
