// Package strategy selects a case assignee from the resolved recipient set
// according to a rule's configured assignment strategy.
package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/elite-business/case-tools-new-sub004/internal/database"
)

// Strategy identifies an assignee selection policy.
type Strategy string

const (
	// Manual assigns the first recipient in resolver order without
	// consulting any counter.
	Manual Strategy = "MANUAL"
	// RoundRobin cycles through eligible recipients per rule.
	RoundRobin Strategy = "ROUND_ROBIN"
	// LoadBased picks the recipient with the fewest open cases.
	LoadBased Strategy = "LOAD_BASED"
	// TeamBased assigns to a bound team's lead, falling back to the
	// least-loaded recipient when no lead is eligible.
	TeamBased Strategy = "TEAM_BASED"
)

// ParseStrategy validates a strategy name. Unknown names are rejected rather
// than defaulted so that configuration typos surface at write time.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case Manual, RoundRobin, LoadBased, TeamBased:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

// CursorAdvancer atomically advances and returns a rule's round-robin
// position.
type CursorAdvancer interface {
	AdvanceCursor(ctx context.Context, ruleID string) (int64, error)
}

// LoadReader reports the open case count per user.
type LoadReader interface {
	GetOpenCaseCounts(ctx context.Context, userIDs []int64) (map[int64]int, error)
}

// Engine applies the configured strategy to a dispatch.
type Engine struct {
	cursors CursorAdvancer
	loads   LoadReader
}

// NewEngine creates a strategy engine.
func NewEngine(cursors CursorAdvancer, loads LoadReader) *Engine {
	return &Engine{cursors: cursors, loads: loads}
}

// Select picks the assignee for one dispatch. recipients is the resolved,
// deduplicated recipient set in ascending id order; teams carries the
// expanded team records for TEAM_BASED. Returns (0, false, nil) when the
// recipient set is empty and the case stays unassigned.
func (e *Engine) Select(ctx context.Context, a *database.Assignment, teams []*database.Team, recipients []int64) (int64, bool, error) {
	if len(recipients) == 0 {
		return 0, false, nil
	}

	strat, err := ParseStrategy(a.Strategy)
	if err != nil {
		return 0, false, err
	}

	switch strat {
	case Manual:
		return recipients[0], true, nil

	case RoundRobin:
		position, err := e.cursors.AdvanceCursor(ctx, a.RuleID)
		if err != nil {
			return 0, false, fmt.Errorf("failed to advance cursor for rule %s: %w", a.RuleID, err)
		}
		return recipients[position%int64(len(recipients))], true, nil

	case LoadBased:
		return e.leastLoaded(ctx, recipients)

	case TeamBased:
		// Any bound team's lead wins, regardless of load, as long as the
		// lead actually resolved as a recipient.
		eligible := make(map[int64]struct{}, len(recipients))
		for _, id := range recipients {
			eligible[id] = struct{}{}
		}
		for _, team := range teams {
			if team.LeadUserID == nil {
				continue
			}
			if _, ok := eligible[*team.LeadUserID]; ok {
				return *team.LeadUserID, true, nil
			}
		}
		slog.Debug("No eligible team lead, falling back to load-based selection", "rule_id", a.RuleID)
		return e.leastLoaded(ctx, recipients)
	}

	return 0, false, fmt.Errorf("unhandled strategy %q", strat)
}

// leastLoaded returns the candidate with the fewest open cases. Ties break
// toward the lowest user id; candidates without a load row count as zero.
func (e *Engine) leastLoaded(ctx context.Context, candidates []int64) (int64, bool, error) {
	if len(candidates) == 0 {
		return 0, false, nil
	}

	counts, err := e.loads.GetOpenCaseCounts(ctx, candidates)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read open case counts: %w", err)
	}

	best := candidates[0]
	bestLoad := counts[best]
	for _, id := range candidates[1:] {
		load := counts[id]
		if load < bestLoad || (load == bestLoad && id < best) {
			best = id
			bestLoad = load
		}
	}
	return best, true, nil
}
