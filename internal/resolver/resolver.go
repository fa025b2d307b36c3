// Package resolver expands an assignment's user and team bindings into the
// concrete set of recipient user ids.
package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/elite-business/case-tools-new-sub004/internal/database"
)

// TeamReader loads team records with their member lists.
type TeamReader interface {
	GetTeams(ctx context.Context, teamIDs []int64) ([]*database.Team, error)
}

// Resolver expands assignments into recipient sets.
type Resolver struct {
	teams TeamReader
}

// NewResolver creates a resolver backed by the given team reader.
func NewResolver(teams TeamReader) *Resolver {
	return &Resolver{teams: teams}
}

// Resolve expands the assignment's team bindings, unions them with the
// directly bound users, and returns the deduplicated recipient ids in
// ascending order together with the expanded team records. ok is false when
// the assignment yields no recipients at all.
//
// A user bound both directly and through a team appears once. Unknown team
// ids expand to nothing.
func (r *Resolver) Resolve(ctx context.Context, a *database.Assignment) (recipients []int64, teams []*database.Team, ok bool, err error) {
	teams, err = r.teams.GetTeams(ctx, a.TeamIDs)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to expand teams for rule %s: %w", a.RuleID, err)
	}

	seen := make(map[int64]struct{}, len(a.UserIDs))
	for _, id := range a.UserIDs {
		seen[id] = struct{}{}
	}
	for _, team := range teams {
		for _, id := range team.MemberIDs {
			seen[id] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil, teams, false, nil
	}

	recipients = make([]int64, 0, len(seen))
	for id := range seen {
		recipients = append(recipients, id)
	}
	sort.Slice(recipients, func(i, j int) bool { return recipients[i] < recipients[j] })

	return recipients, teams, true, nil
}
