// Package dispatcher routes one alert event through assignment lookup,
// recipient resolution, preference filtering, persistence, live push, and
// case hand-off.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/elite-business/case-tools-new-sub004/internal/channels"
	"github.com/elite-business/case-tools-new-sub004/internal/database"
	"github.com/elite-business/case-tools-new-sub004/internal/events"
	"github.com/elite-business/case-tools-new-sub004/internal/metrics"
	"github.com/elite-business/case-tools-new-sub004/internal/preference"
	"github.com/elite-business/case-tools-new-sub004/internal/transport"
)

// Report summarizes the outcome of routing one alert event.
type Report struct {
	RuleID          string `json:"rule_id"`
	ExternalEventID string `json:"external_event_id"`
	RecipientCount  int    `json:"recipient_count"`
	Created         int    `json:"created"`
	Duplicates      int    `json:"duplicates"`
	Suppressed      int    `json:"suppressed"`
	LivePushes      int    `json:"live_pushes"`
	ChannelErrors   int    `json:"channel_errors"`
	AssigneeID      *int64 `json:"assignee_id,omitempty"`
	Unassigned      bool   `json:"unassigned"`
}

// Dispatcher routes alert events to notifications and case assignments.
type Dispatcher struct {
	assignments AssignmentSource
	resolver    RecipientResolver
	selector    AssigneeSelector
	store       Store
	live        LivePublisher
	cases       CasePublisher
	adapters    []channels.Adapter
	metrics     metrics.Recorder

	channelTimeout time.Duration
	now            func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAdapters sets the secondary delivery channels.
func WithAdapters(adapters ...channels.Adapter) Option {
	return func(d *Dispatcher) { d.adapters = adapters }
}

// WithMetrics sets the metrics recorder. Defaults to a no-op.
func WithMetrics(m metrics.Recorder) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithChannelTimeout bounds each adapter delivery attempt.
func WithChannelTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.channelTimeout = timeout }
}

// WithClock overrides the time source used for preference evaluation.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(
	assignments AssignmentSource,
	resolver RecipientResolver,
	selector AssigneeSelector,
	store Store,
	live LivePublisher,
	cases CasePublisher,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		assignments:    assignments,
		resolver:       resolver,
		selector:       selector,
		store:          store,
		live:           live,
		cases:          cases,
		metrics:        metrics.NoOp{},
		channelTimeout: 5 * time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch routes one alert event. The assignment is read once at the start;
// concurrent assignment edits do not affect a dispatch in flight. Redelivered
// events are absorbed by the idempotent insert and reported as duplicates.
func (d *Dispatcher) Dispatch(ctx context.Context, event *events.AlertEvent) (*Report, error) {
	d.metrics.RecordEventReceived()

	report := &Report{RuleID: event.RuleID, ExternalEventID: event.ExternalEventID}

	assignment, err := d.assignments.Get(ctx, event.RuleID)
	if errors.Is(err, database.ErrNotFound) {
		slog.Info("No assignment for rule, routing to unassigned pool", "rule_id", event.RuleID)
		report.Unassigned = true
		return report, d.publishCase(ctx, event, nil)
	}
	if err != nil {
		d.metrics.RecordError()
		return nil, fmt.Errorf("failed to load assignment for rule %s: %w", event.RuleID, err)
	}
	if !assignment.Active {
		slog.Info("Assignment inactive, routing to unassigned pool", "rule_id", event.RuleID)
		report.Unassigned = true
		return report, d.publishCase(ctx, event, nil)
	}

	recipients, teams, ok, err := d.resolver.Resolve(ctx, assignment)
	if err != nil {
		d.metrics.RecordError()
		return nil, err
	}
	if !ok {
		slog.Warn("Assignment resolves to no recipients", "rule_id", event.RuleID)
		report.Unassigned = true
		return report, d.publishCase(ctx, event, nil)
	}
	report.RecipientCount = len(recipients)

	assigneeID, assigned, err := d.selector.Select(ctx, assignment, teams, recipients)
	if err != nil {
		d.metrics.RecordError()
		return nil, err
	}
	if assigned {
		report.AssigneeID = &assigneeID
	} else {
		report.Unassigned = true
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, recipientID := range recipients {
		if err := d.deliverToRecipient(ctx, event, recipientID, report, &wg, &mu); err != nil {
			wg.Wait()
			d.metrics.RecordError()
			return nil, err
		}
	}
	wg.Wait()

	for _, teamID := range assignment.TeamIDs {
		d.publishTeamBroadcast(teamID, event, report)
	}

	if err := d.publishCase(ctx, event, report.AssigneeID); err != nil {
		return nil, err
	}

	slog.Info("Event dispatched",
		"rule_id", event.RuleID,
		"external_event_id", event.ExternalEventID,
		"recipients", report.RecipientCount,
		"created", report.Created,
		"duplicates", report.Duplicates,
		"suppressed", report.Suppressed,
		"assigned", assigned,
	)
	return report, nil
}

// deliverToRecipient filters, persists, and fans out one recipient's
// notification. Channel deliveries run in the background and are awaited by
// the caller through wg. Store failures propagate: a notification record
// that cannot be written must fail the dispatch so the caller retries.
func (d *Dispatcher) deliverToRecipient(ctx context.Context, event *events.AlertEvent, recipientID int64, report *Report, wg *sync.WaitGroup, mu *sync.Mutex) error {
	pref, err := d.store.GetPreference(ctx, recipientID)
	if errors.Is(err, database.ErrNotFound) {
		pref = preference.Default(recipientID)
	} else if err != nil {
		return fmt.Errorf("failed to load preferences for user %d: %w", recipientID, err)
	}

	deliver, reason := preference.ShouldDeliver(pref, event.Severity, event.Type, d.now())

	// Suppressed notifications are still persisted for the in-app feed; only
	// the live push and secondary channels are skipped.
	stored, created, err := d.store.InsertNotificationIdempotent(ctx, &database.Notification{
		RecipientID:     recipientID,
		RuleID:          event.RuleID,
		ExternalEventID: event.ExternalEventID,
		Severity:        event.Severity,
		Type:            event.Type,
		Title:           notificationTitle(event),
		Message:         notificationMessage(event),
	})
	if err != nil {
		return fmt.Errorf("failed to persist notification for user %d: %w", recipientID, err)
	}
	if !created {
		d.metrics.RecordDuplicate()
		report.Duplicates++
		return nil
	}
	d.metrics.RecordNotificationCreated()
	report.Created++

	if !deliver {
		d.metrics.RecordSuppressed()
		report.Suppressed++
		slog.Debug("Notification suppressed", "user_id", recipientID, "reason", reason)
		return nil
	}

	if pref.InApp {
		if d.pushFrame(transport.UserTopic(recipientID), stored) {
			report.LivePushes++
		}
	}

	d.fanOutChannels(ctx, pref, stored, report, wg, mu)
	return nil
}

// fanOutChannels runs each opted-in adapter concurrently with a bounded
// timeout. Failures are counted, never propagated. mu guards the report's
// channel error counter, which goroutines for different recipients share.
func (d *Dispatcher) fanOutChannels(ctx context.Context, pref *database.Preference, n *database.Notification, report *Report, wg *sync.WaitGroup, mu *sync.Mutex) {
	var enabled []channels.Adapter
	for _, adapter := range d.adapters {
		if adapter.Enabled(pref) {
			enabled = append(enabled, adapter)
		}
	}
	if len(enabled) == 0 {
		return
	}

	user, err := d.store.GetUser(ctx, n.RecipientID)
	if err != nil {
		d.metrics.RecordChannelError()
		mu.Lock()
		report.ChannelErrors++
		mu.Unlock()
		slog.Error("Failed to load user for channel delivery", "user_id", n.RecipientID, "error", err)
		return
	}

	for _, adapter := range enabled {
		wg.Add(1)
		go func(adapter channels.Adapter) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.channelTimeout)
			defer cancel()

			if err := adapter.Deliver(callCtx, user, n); err != nil {
				d.metrics.RecordChannelError()
				mu.Lock()
				report.ChannelErrors++
				mu.Unlock()
				slog.Warn("Channel delivery failed",
					"channel", adapter.Name(),
					"user_id", user.UserID,
					"notification_id", n.ID,
					"error", err,
				)
			}
		}(adapter)
	}
}

// pushFrame publishes a notification frame to a hub topic.
func (d *Dispatcher) pushFrame(topic string, n *database.Notification) bool {
	frame, err := json.Marshal(events.NotificationFrame{
		ID:        n.ID,
		RuleID:    n.RuleID,
		Severity:  n.Severity,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		slog.Error("Failed to marshal notification frame", "notification_id", n.ID, "error", err)
		return false
	}
	if d.live.Publish(topic, frame) > 0 {
		d.metrics.RecordLivePush()
		return true
	}
	return false
}

// publishTeamBroadcast tells team topic subscribers that a case landed on
// one of the team's rules.
func (d *Dispatcher) publishTeamBroadcast(teamID int64, event *events.AlertEvent, report *Report) {
	frame, err := json.Marshal(map[string]interface{}{
		"rule_id":           event.RuleID,
		"external_event_id": event.ExternalEventID,
		"severity":          event.Severity,
		"assignee_id":       report.AssigneeID,
	})
	if err != nil {
		slog.Error("Failed to marshal team broadcast", "team_id", teamID, "error", err)
		return
	}
	if d.live.Publish(transport.TeamTopic(teamID), frame) > 0 {
		d.metrics.RecordLivePush()
	}
}

func (d *Dispatcher) publishCase(ctx context.Context, event *events.AlertEvent, assigneeID *int64) error {
	assignment := &events.CaseAssignment{
		RuleID:          event.RuleID,
		ExternalEventID: event.ExternalEventID,
		AssigneeID:      assigneeID,
		Severity:        event.Severity,
		AssignedTS:      d.now().Unix(),
		SchemaVersion:   1,
	}
	if err := d.cases.Publish(ctx, assignment); err != nil {
		d.metrics.RecordError()
		return fmt.Errorf("failed to publish case assignment: %w", err)
	}
	d.metrics.RecordCaseAssigned()
	return nil
}

func notificationTitle(event *events.AlertEvent) string {
	if title, ok := event.Payload["title"]; ok && title != "" {
		return title
	}
	return fmt.Sprintf("%s alert on rule %s", event.Severity, event.RuleID)
}

func notificationMessage(event *events.AlertEvent) string {
	if msg, ok := event.Payload["message"]; ok && msg != "" {
		return msg
	}
	return fmt.Sprintf("Rule %s raised a %s %s event", event.RuleID, event.Severity, event.Type)
}
