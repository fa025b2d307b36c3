package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elite-business/case-tools-new-sub004/internal/database"
	"github.com/elite-business/case-tools-new-sub004/internal/events"
	"github.com/elite-business/case-tools-new-sub004/internal/preference"
	"github.com/elite-business/case-tools-new-sub004/internal/transport"
)

func testEvent() *events.AlertEvent {
	return &events.AlertEvent{
		RuleID:          "R1",
		ExternalEventID: "evt-100",
		Severity:        "HIGH",
		Type:            "THRESHOLD_BREACH",
		EventTS:         1717243200,
		SchemaVersion:   1,
	}
}

func middayClock() func() time.Time {
	return func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
}

type fixture struct {
	assignments *fakeAssignments
	resolver    *fakeResolver
	selector    *fakeSelector
	store       *fakeStore
	live        *fakeLive
	cases       *fakeCases
}

func newFixture() *fixture {
	return &fixture{
		assignments: &fakeAssignments{assignment: &database.Assignment{
			RuleID:   "R1",
			Severity: "HIGH",
			Strategy: "MANUAL",
			Active:   true,
			UserIDs:  []int64{5, 7},
			TeamIDs:  []int64{1},
		}},
		resolver: &fakeResolver{recipients: []int64{5, 7}, ok: true},
		selector: &fakeSelector{assignee: 5, assigned: true},
		store:    newFakeStore(),
		live:     newFakeLive(1),
		cases:    &fakeCases{},
	}
}

func (f *fixture) dispatcher(opts ...Option) *Dispatcher {
	opts = append([]Option{WithClock(middayClock())}, opts...)
	return NewDispatcher(f.assignments, f.resolver, f.selector, f.store, f.live, f.cases, opts...)
}

func TestDispatcher_Dispatch(t *testing.T) {
	f := newFixture()
	d := f.dispatcher()

	report, err := d.Dispatch(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	if report.RecipientCount != 2 || report.Created != 2 {
		t.Errorf("Dispatch() report = %+v, want 2 recipients and 2 created", report)
	}
	if report.AssigneeID == nil || *report.AssigneeID != 5 {
		t.Errorf("Dispatch() assignee = %v, want 5", report.AssigneeID)
	}
	if report.Unassigned {
		t.Error("Dispatch() unassigned = true, want false")
	}

	if len(f.store.inserted) != 2 {
		t.Fatalf("Dispatch() persisted %d notifications, want 2", len(f.store.inserted))
	}

	// One frame per recipient user topic plus one team broadcast.
	topics := f.live.frames
	if len(topics[transport.UserTopic(5)]) != 1 || len(topics[transport.UserTopic(7)]) != 1 {
		t.Errorf("Dispatch() user topics = %v, want one frame each for user.5 and user.7", f.live.topics())
	}
	if len(topics[transport.TeamTopic(1)]) != 1 {
		t.Errorf("Dispatch() team topics = %v, want one broadcast on team.1", f.live.topics())
	}

	if len(f.cases.published) != 1 {
		t.Fatalf("Dispatch() published %d case assignments, want 1", len(f.cases.published))
	}
	published := f.cases.published[0]
	if published.AssigneeID == nil || *published.AssigneeID != 5 {
		t.Errorf("Dispatch() case assignee = %v, want 5", published.AssigneeID)
	}
}

func TestDispatcher_Dispatch_Idempotent(t *testing.T) {
	f := newFixture()
	d := f.dispatcher()

	if _, err := d.Dispatch(context.Background(), testEvent()); err != nil {
		t.Fatalf("Dispatch() first error: %v", err)
	}
	report, err := d.Dispatch(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("Dispatch() redelivery error: %v", err)
	}

	if report.Created != 0 || report.Duplicates != 2 {
		t.Errorf("Dispatch() redelivery report = %+v, want 0 created and 2 duplicates", report)
	}
	if len(f.store.inserted) != 2 {
		t.Errorf("Dispatch() total persisted = %d, want 2 after redelivery", len(f.store.inserted))
	}
}

func TestDispatcher_Dispatch_NoAssignment(t *testing.T) {
	f := newFixture()
	f.assignments.err = database.ErrNotFound
	d := f.dispatcher()

	report, err := d.Dispatch(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if !report.Unassigned || report.Created != 0 {
		t.Errorf("Dispatch() report = %+v, want unassigned with nothing created", report)
	}
	if len(f.cases.published) != 1 || f.cases.published[0].AssigneeID != nil {
		t.Errorf("Dispatch() should publish an unassigned case, got %+v", f.cases.published)
	}
}

func TestDispatcher_Dispatch_InactiveAssignment(t *testing.T) {
	f := newFixture()
	f.assignments.assignment.Active = false
	d := f.dispatcher()

	report, err := d.Dispatch(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if !report.Unassigned || report.Created != 0 {
		t.Errorf("Dispatch() report = %+v, want unassigned with nothing created", report)
	}
}

func TestDispatcher_Dispatch_EmptyRecipients(t *testing.T) {
	f := newFixture()
	f.resolver.ok = false
	f.resolver.recipients = nil
	d := f.dispatcher()

	report, err := d.Dispatch(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if !report.Unassigned {
		t.Error("Dispatch() with no recipients should route to the unassigned pool")
	}
	if len(f.cases.published) != 1 || f.cases.published[0].AssigneeID != nil {
		t.Errorf("Dispatch() should publish an unassigned case, got %+v", f.cases.published)
	}
}

func TestDispatcher_Dispatch_UnassignedSelection(t *testing.T) {
	f := newFixture()
	f.selector.assigned = false
	d := f.dispatcher()

	report, err := d.Dispatch(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if !report.Unassigned || report.AssigneeID != nil {
		t.Errorf("Dispatch() report = %+v, want unassigned", report)
	}
	// Recipients are still notified even when nobody is auto-assigned.
	if report.Created != 2 {
		t.Errorf("Dispatch() created = %d, want 2", report.Created)
	}
}

func TestDispatcher_Dispatch_PreferenceSuppression(t *testing.T) {
	f := newFixture()
	// User 5 sleeps through non-critical alerts at midday via a high
	// threshold; user 7 has no saved preference and gets the default.
	f.store.prefs[5] = &database.Preference{UserID: 5, SeverityThreshold: "CRITICAL", InApp: true}
	d := f.dispatcher()

	report, err := d.Dispatch(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	// Both records persist; only the suppressed recipient's push is skipped.
	if report.Suppressed != 1 || report.Created != 2 {
		t.Errorf("Dispatch() report = %+v, want 1 suppressed and 2 created", report)
	}
	if len(f.live.frames[transport.UserTopic(5)]) != 0 {
		t.Error("Dispatch() should not push frames to a suppressed recipient")
	}
	if len(f.live.frames[transport.UserTopic(7)]) != 1 {
		t.Error("Dispatch() should push to the unsuppressed recipient")
	}
}

func TestDispatcher_Dispatch_QuietHours(t *testing.T) {
	quietPref := func(userID int64) *database.Preference {
		p := preference.Default(userID)
		p.QuietStart = 22 * 60
		p.QuietEnd = 6 * 60
		return p
	}

	f := newFixture()
	f.store.prefs[5] = quietPref(5)
	f.store.prefs[7] = quietPref(7)
	nightClock := func() time.Time { return time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC) }
	d := f.dispatcher(WithClock(nightClock))

	report, err := d.Dispatch(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if report.Suppressed != 2 || report.LivePushes != 0 {
		t.Errorf("Dispatch() at night = %+v, want both suppressed with no pushes", report)
	}
	if report.Created != 2 {
		t.Errorf("Dispatch() at night created = %d, suppressed records still persist", report.Created)
	}

	// CRITICAL events bypass quiet hours.
	critical := testEvent()
	critical.Severity = "CRITICAL"
	critical.ExternalEventID = "evt-101"
	report, err = d.Dispatch(context.Background(), critical)
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	if report.Created != 2 || report.Suppressed != 0 {
		t.Errorf("Dispatch() critical at night = %+v, want 2 created", report)
	}
}

func TestDispatcher_Dispatch_ChannelFanOut(t *testing.T) {
	f := newFixture()
	f.store.users[5] = &database.User{UserID: 5, Email: "a@portal.example"}
	f.store.users[7] = &database.User{UserID: 7, Email: "b@portal.example"}
	email := &fakeAdapter{name: "email", enabled: func(p *database.Preference) bool { return p.Email }}
	failing := &fakeAdapter{name: "desktop", enabled: func(p *database.Preference) bool { return p.Desktop }, err: errors.New("gateway down")}
	d := f.dispatcher(WithAdapters(email, failing))

	report, err := d.Dispatch(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	// Both recipients use the permissive default preference, so both
	// adapters ran for each; the failing one only counts errors.
	if len(email.delivered) != 2 {
		t.Errorf("Dispatch() email deliveries = %v, want both recipients", email.delivered)
	}
	if report.ChannelErrors != 2 {
		t.Errorf("Dispatch() channel errors = %d, want 2", report.ChannelErrors)
	}
	if report.Created != 2 {
		t.Errorf("Dispatch() created = %d, channel failures must not affect persistence", report.Created)
	}
}

func TestDispatcher_Dispatch_PersistenceError(t *testing.T) {
	f := newFixture()
	f.store.insertErr = errors.New("postgres down")
	d := f.dispatcher()

	_, err := d.Dispatch(context.Background(), testEvent())
	if err == nil {
		t.Fatal("Dispatch() expected error when the notification store is down")
	}
	if !errors.Is(err, f.store.insertErr) {
		t.Errorf("Dispatch() error = %v, want wrapped store error", err)
	}
	if len(f.cases.published) != 0 {
		t.Error("Dispatch() should not publish a case when persistence fails")
	}
}

func TestDispatcher_Dispatch_PreferenceLoadError(t *testing.T) {
	f := newFixture()
	f.store.prefErr = errors.New("postgres down")
	d := f.dispatcher()

	_, err := d.Dispatch(context.Background(), testEvent())
	if err == nil {
		t.Fatal("Dispatch() expected error when preferences cannot be read")
	}
	if len(f.store.inserted) != 0 {
		t.Errorf("Dispatch() persisted %d notifications despite the failure, want 0", len(f.store.inserted))
	}
}

func TestDispatcher_Dispatch_CasePublishError(t *testing.T) {
	f := newFixture()
	f.cases.err = errors.New("kafka down")
	d := f.dispatcher()

	if _, err := d.Dispatch(context.Background(), testEvent()); err == nil {
		t.Fatal("Dispatch() expected error when case publish fails")
	}
}

func TestDispatcher_Dispatch_ResolverError(t *testing.T) {
	f := newFixture()
	f.resolver.err = errors.New("teams unavailable")
	d := f.dispatcher()

	if _, err := d.Dispatch(context.Background(), testEvent()); err == nil {
		t.Fatal("Dispatch() expected error when resolution fails")
	}
	if len(f.cases.published) != 0 {
		t.Error("Dispatch() should not publish a case when resolution fails")
	}
}
