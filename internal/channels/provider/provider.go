// Package provider defines the email backend interface and a registry with
// primary/fallback selection.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Message is an email ready to send.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Provider is an email backend.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
	// IsConfigured reports whether the backend has usable credentials.
	IsConfigured() bool
}

// Registry holds the registered email backends and routes sends to the
// primary one, falling back in order when it is unconfigured or fails.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	primary   string
	fallback  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a backend.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	slog.Info("Registered email provider", "name", p.Name(), "configured", p.IsConfigured())
}

// SetPrimary selects the preferred backend by name.
func (r *Registry) SetPrimary(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("provider %q not registered", name)
	}
	r.primary = name
	return nil
}

// SetFallback sets the fallback order tried when the primary is unavailable.
func (r *Registry) SetFallback(names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if _, ok := r.providers[name]; !ok {
			return fmt.Errorf("provider %q not registered", name)
		}
	}
	r.fallback = names
	return nil
}

// pick returns the first configured backend: primary, then fallbacks, then
// anything registered.
func (r *Registry) pick() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.providers[r.primary]; ok && p.IsConfigured() {
		return p, nil
	}
	for _, name := range r.fallback {
		if p, ok := r.providers[name]; ok && p.IsConfigured() {
			slog.Warn("Primary email provider unavailable, using fallback",
				"primary", r.primary, "fallback", name)
			return p, nil
		}
	}
	for _, p := range r.providers {
		if p.IsConfigured() {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no configured email provider available")
}

// Send delivers the message through the best available backend, trying
// fallbacks when the chosen one fails. The original error is returned when
// every attempt fails.
func (r *Registry) Send(ctx context.Context, msg *Message) error {
	chosen, err := r.pick()
	if err != nil {
		return err
	}

	sendErr := chosen.Send(ctx, msg)
	if sendErr == nil {
		return nil
	}

	r.mu.RLock()
	fallbacks := r.fallback
	r.mu.RUnlock()

	for _, name := range fallbacks {
		r.mu.RLock()
		p, ok := r.providers[name]
		r.mu.RUnlock()
		if !ok || !p.IsConfigured() || p.Name() == chosen.Name() {
			continue
		}
		slog.Warn("Email provider failed, trying fallback",
			"failed", chosen.Name(), "fallback", name, "error", sendErr)
		if err := p.Send(ctx, msg); err == nil {
			return nil
		}
	}
	return sendErr
}
