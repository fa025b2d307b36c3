package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/elite-business/case-tools-new-sub004/internal/database"
	"github.com/elite-business/case-tools-new-sub004/internal/events"
)

type fakeAssignments struct {
	assignment *database.Assignment
	err        error
}

func (f *fakeAssignments) Get(ctx context.Context, ruleID string) (*database.Assignment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.assignment, nil
}

type fakeResolver struct {
	recipients []int64
	teams      []*database.Team
	ok         bool
	err        error
}

func (f *fakeResolver) Resolve(ctx context.Context, a *database.Assignment) ([]int64, []*database.Team, bool, error) {
	if f.err != nil {
		return nil, nil, false, f.err
	}
	return f.recipients, f.teams, f.ok, nil
}

type fakeSelector struct {
	assignee int64
	assigned bool
	err      error
}

func (f *fakeSelector) Select(ctx context.Context, a *database.Assignment, teams []*database.Team, recipients []int64) (int64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	return f.assignee, f.assigned, nil
}

type fakeStore struct {
	mu        sync.Mutex
	prefs     map[int64]*database.Preference
	users     map[int64]*database.User
	existing  map[string]struct{}
	inserted  []*database.Notification
	insertErr error
	prefErr   error
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		prefs:    make(map[int64]*database.Preference),
		users:    make(map[int64]*database.User),
		existing: make(map[string]struct{}),
	}
}

func dedupKey(n *database.Notification) string {
	return fmt.Sprintf("%s|%s|%d", n.RuleID, n.ExternalEventID, n.RecipientID)
}

func (f *fakeStore) InsertNotificationIdempotent(ctx context.Context, n *database.Notification) (*database.Notification, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, false, f.insertErr
	}
	key := dedupKey(n)
	if _, dup := f.existing[key]; dup {
		return nil, false, nil
	}
	f.existing[key] = struct{}{}
	f.nextID++
	stored := *n
	stored.ID = f.nextID
	f.inserted = append(f.inserted, &stored)
	return &stored, true, nil
}

func (f *fakeStore) GetPreference(ctx context.Context, userID int64) (*database.Preference, error) {
	if f.prefErr != nil {
		return nil, f.prefErr
	}
	if p, ok := f.prefs[userID]; ok {
		return p, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) GetUser(ctx context.Context, userID int64) (*database.User, error) {
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, database.ErrNotFound
}

type fakeLive struct {
	mu       sync.Mutex
	frames   map[string][][]byte
	audience int
}

func newFakeLive(audience int) *fakeLive {
	return &fakeLive{frames: make(map[string][][]byte), audience: audience}
}

func (f *fakeLive) Publish(topic string, frame []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames[topic] = append(f.frames[topic], frame)
	return f.audience
}

func (f *fakeLive) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var topics []string
	for topic := range f.frames {
		topics = append(topics, topic)
	}
	return topics
}

type fakeCases struct {
	mu        sync.Mutex
	published []*events.CaseAssignment
	err       error
}

func (f *fakeCases) Publish(ctx context.Context, assignment *events.CaseAssignment) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, assignment)
	return nil
}

type fakeAdapter struct {
	mu        sync.Mutex
	name      string
	enabled   func(*database.Preference) bool
	err       error
	delivered []int64
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Enabled(p *database.Preference) bool {
	if f.enabled == nil {
		return true
	}
	return f.enabled(p)
}

func (f *fakeAdapter) Deliver(ctx context.Context, user *database.User, n *database.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, user.UserID)
	return nil
}
