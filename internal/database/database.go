// Package database provides PostgreSQL operations for rule assignments,
// teams, users, notification preferences, and notification records.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a requested record does not exist.
// Callers should test with errors.Is.
var ErrNotFound = errors.New("not found")

// Assignment represents the active routing binding for one alerting-engine
// rule. A rule has at most one assignment (rule_id is the primary key).
type Assignment struct {
	RuleID    string    `json:"rule_id"`
	Severity  string    `json:"severity"`
	Category  string    `json:"category"`
	Strategy  string    `json:"strategy"`
	Active    bool      `json:"active"`
	UserIDs   []int64   `json:"user_ids"`
	TeamIDs   []int64   `json:"team_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Team represents a team with its ordered member list and optional lead.
type Team struct {
	TeamID     int64   `json:"team_id"`
	Name       string  `json:"name"`
	LeadUserID *int64  `json:"lead_user_id,omitempty"`
	MemberIDs  []int64 `json:"member_ids"`
}

// User represents a portal user visible to the routing engine.
type User struct {
	UserID        int64  `json:"user_id"`
	Role          string `json:"role"`
	Email         string `json:"email"`
	OpenCaseCount int    `json:"open_case_count"`
}

// Preference holds a user's notification delivery preferences.
// QuietStart and QuietEnd are minutes of the local day; a window with
// QuietStart >= QuietEnd wraps midnight, and QuietStart == QuietEnd means
// quiet hours are disabled.
type Preference struct {
	UserID            int64    `json:"user_id"`
	SeverityThreshold string   `json:"severity_threshold"`
	EnabledTypes      []string `json:"enabled_types"`
	QuietStart        int      `json:"quiet_hours_start"`
	QuietEnd          int      `json:"quiet_hours_end"`
	InApp             bool     `json:"channel_in_app"`
	Desktop           bool     `json:"channel_desktop"`
	Email             bool     `json:"channel_email"`
}

// DB wraps a database connection and provides routing-engine storage
// operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		slog.Info("Closing database connection")
		return db.conn.Close()
	}
	return nil
}

// ============================================================================
// Rule Assignment Operations
// ============================================================================

const assignmentColumns = `rule_id, severity, category, strategy, active, user_ids, team_ids, created_at, updated_at`

func scanAssignment(row interface{ Scan(...interface{}) error }) (*Assignment, error) {
	var a Assignment
	err := row.Scan(
		&a.RuleID,
		&a.Severity,
		&a.Category,
		&a.Strategy,
		&a.Active,
		pq.Array(&a.UserIDs),
		pq.Array(&a.TeamIDs),
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAssignment retrieves the assignment bound to a rule.
// Returns ErrNotFound if the rule has no assignment.
func (db *DB) GetAssignment(ctx context.Context, ruleID string) (*Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM rule_assignments
		WHERE rule_id = $1
	`
	a, err := scanAssignment(db.conn.QueryRowContext(ctx, query, ruleID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("assignment for rule %s: %w", ruleID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// UpsertAssignment creates or replaces the assignment for a rule.
// Re-applying an identical spec is a no-op at the row level aside from
// updated_at. Returns the stored assignment.
func (db *DB) UpsertAssignment(ctx context.Context, a *Assignment) (*Assignment, error) {
	query := `
		INSERT INTO rule_assignments (rule_id, severity, category, strategy, active, user_ids, team_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (rule_id) DO UPDATE
		SET severity = EXCLUDED.severity,
		    category = EXCLUDED.category,
		    strategy = EXCLUDED.strategy,
		    active = EXCLUDED.active,
		    user_ids = EXCLUDED.user_ids,
		    team_ids = EXCLUDED.team_ids,
		    updated_at = NOW()
		RETURNING ` + assignmentColumns + `
	`
	stored, err := scanAssignment(db.conn.QueryRowContext(ctx, query,
		a.RuleID,
		a.Severity,
		a.Category,
		a.Strategy,
		a.Active,
		pq.Array(a.UserIDs),
		pq.Array(a.TeamIDs),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert assignment: %w", err)
	}
	return stored, nil
}

// RemoveAssignmentRecipients removes the given user and team ids from the
// assignment's recipient sets. Ids that are not present are ignored.
// Returns ErrNotFound if the rule has no assignment.
func (db *DB) RemoveAssignmentRecipients(ctx context.Context, ruleID string, userIDs, teamIDs []int64) (*Assignment, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT ` + assignmentColumns + `
		FROM rule_assignments
		WHERE rule_id = $1
		FOR UPDATE
	`
	current, err := scanAssignment(tx.QueryRowContext(ctx, query, ruleID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("assignment for rule %s: %w", ruleID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock assignment: %w", err)
	}

	keptUsers := removeIDs(current.UserIDs, userIDs)
	keptTeams := removeIDs(current.TeamIDs, teamIDs)

	update := `
		UPDATE rule_assignments
		SET user_ids = $2,
		    team_ids = $3,
		    updated_at = NOW()
		WHERE rule_id = $1
		RETURNING ` + assignmentColumns + `
	`
	updated, err := scanAssignment(tx.QueryRowContext(ctx, update, ruleID, pq.Array(keptUsers), pq.Array(keptTeams)))
	if err != nil {
		return nil, fmt.Errorf("failed to update assignment recipients: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit recipient removal: %w", err)
	}
	return updated, nil
}

// removeIDs returns ids minus the members of drop, preserving order.
func removeIDs(ids, drop []int64) []int64 {
	if len(drop) == 0 {
		return ids
	}
	dropSet := make(map[int64]struct{}, len(drop))
	for _, id := range drop {
		dropSet[id] = struct{}{}
	}
	kept := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, gone := dropSet[id]; !gone {
			kept = append(kept, id)
		}
	}
	return kept
}

// ============================================================================
// Team Operations
// ============================================================================

// GetTeams retrieves teams by id, including their ordered member lists.
// Unknown team ids are silently omitted from the result.
func (db *DB) GetTeams(ctx context.Context, teamIDs []int64) ([]*Team, error) {
	if len(teamIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT t.team_id, t.name, t.lead_user_id,
		       COALESCE(array_agg(m.user_id ORDER BY m.position) FILTER (WHERE m.user_id IS NOT NULL), '{}')
		FROM teams t
		LEFT JOIN team_members m ON m.team_id = t.team_id
		WHERE t.team_id = ANY($1)
		GROUP BY t.team_id, t.name, t.lead_user_id
		ORDER BY t.team_id
	`
	rows, err := db.conn.QueryContext(ctx, query, pq.Array(teamIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		var team Team
		var lead sql.NullInt64
		if err := rows.Scan(&team.TeamID, &team.Name, &lead, pq.Array(&team.MemberIDs)); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		if lead.Valid {
			team.LeadUserID = &lead.Int64
		}
		teams = append(teams, &team)
	}
	return teams, rows.Err()
}

// GetUserTeamIDs retrieves the ids of all teams a user belongs to,
// ascending. Used by the live transport to build the session topic set.
func (db *DB) GetUserTeamIDs(ctx context.Context, userID int64) ([]int64, error) {
	query := `
		SELECT team_id
		FROM team_members
		WHERE user_id = $1
		ORDER BY team_id
	`
	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user team ids: %w", err)
	}
	defer rows.Close()

	var teamIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan team id: %w", err)
		}
		teamIDs = append(teamIDs, id)
	}
	return teamIDs, rows.Err()
}

// ============================================================================
// User Operations
// ============================================================================

// GetUser retrieves a user by id. Returns ErrNotFound for unknown users.
func (db *DB) GetUser(ctx context.Context, userID int64) (*User, error) {
	query := `
		SELECT user_id, role, email, open_case_count
		FROM users
		WHERE user_id = $1
	`
	var u User
	err := db.conn.QueryRowContext(ctx, query, userID).Scan(&u.UserID, &u.Role, &u.Email, &u.OpenCaseCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetOpenCaseCounts retrieves the open case counter for each of the given
// users. Users without a row are absent from the result map; the strategy
// engine treats them as zero-load candidates.
func (db *DB) GetOpenCaseCounts(ctx context.Context, userIDs []int64) (map[int64]int, error) {
	if len(userIDs) == 0 {
		return map[int64]int{}, nil
	}

	query := `
		SELECT user_id, open_case_count
		FROM users
		WHERE user_id = ANY($1)
	`
	rows, err := db.conn.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get open case counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int, len(userIDs))
	for rows.Next() {
		var id int64
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("failed to scan open case count: %w", err)
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

// GetUserEmails retrieves the email address for each of the given users.
func (db *DB) GetUserEmails(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	if len(userIDs) == 0 {
		return map[int64]string{}, nil
	}

	query := `
		SELECT user_id, email
		FROM users
		WHERE user_id = ANY($1)
	`
	rows, err := db.conn.QueryContext(ctx, query, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get user emails: %w", err)
	}
	defer rows.Close()

	emails := make(map[int64]string, len(userIDs))
	for rows.Next() {
		var id int64
		var email string
		if err := rows.Scan(&id, &email); err != nil {
			return nil, fmt.Errorf("failed to scan user email: %w", err)
		}
		emails[id] = email
	}
	return emails, rows.Err()
}

// ============================================================================
// Preference Operations
// ============================================================================

// GetPreference retrieves a user's notification preferences.
// Returns ErrNotFound when the user has never saved preferences; callers
// fall back to the permissive default.
func (db *DB) GetPreference(ctx context.Context, userID int64) (*Preference, error) {
	query := `
		SELECT user_id, severity_threshold, enabled_types, quiet_hours_start, quiet_hours_end,
		       channel_in_app, channel_desktop, channel_email
		FROM notification_preferences
		WHERE user_id = $1
	`
	var p Preference
	err := db.conn.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID,
		&p.SeverityThreshold,
		pq.Array(&p.EnabledTypes),
		&p.QuietStart,
		&p.QuietEnd,
		&p.InApp,
		&p.Desktop,
		&p.Email,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("preferences for user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	return &p, nil
}

// UpsertPreference creates or replaces a user's notification preferences.
func (db *DB) UpsertPreference(ctx context.Context, p *Preference) (*Preference, error) {
	query := `
		INSERT INTO notification_preferences (user_id, severity_threshold, enabled_types, quiet_hours_start, quiet_hours_end,
		                                      channel_in_app, channel_desktop, channel_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE
		SET severity_threshold = EXCLUDED.severity_threshold,
		    enabled_types = EXCLUDED.enabled_types,
		    quiet_hours_start = EXCLUDED.quiet_hours_start,
		    quiet_hours_end = EXCLUDED.quiet_hours_end,
		    channel_in_app = EXCLUDED.channel_in_app,
		    channel_desktop = EXCLUDED.channel_desktop,
		    channel_email = EXCLUDED.channel_email
		RETURNING user_id, severity_threshold, enabled_types, quiet_hours_start, quiet_hours_end,
		          channel_in_app, channel_desktop, channel_email
	`
	var stored Preference
	err := db.conn.QueryRowContext(ctx, query,
		p.UserID,
		p.SeverityThreshold,
		pq.Array(p.EnabledTypes),
		p.QuietStart,
		p.QuietEnd,
		p.InApp,
		p.Desktop,
		p.Email,
	).Scan(
		&stored.UserID,
		&stored.SeverityThreshold,
		pq.Array(&stored.EnabledTypes),
		&stored.QuietStart,
		&stored.QuietEnd,
		&stored.InApp,
		&stored.Desktop,
		&stored.Email,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert preferences: %w", err)
	}
	return &stored, nil
}
