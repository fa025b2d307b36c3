package channels

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elite-business/case-tools-new-sub004/internal/channels/provider"
	"github.com/elite-business/case-tools-new-sub004/internal/database"
)

type fakeSender struct {
	sent []*provider.Message
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg *provider.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testNotification() *database.Notification {
	return &database.Notification{
		ID:       1,
		RuleID:   "R1",
		Severity: "HIGH",
		Type:     "THRESHOLD_BREACH",
		Title:    "Threshold breached",
		Message:  "Rule R1 fired for subscriber 555",
	}
}

func TestEmail_Deliver(t *testing.T) {
	sender := &fakeSender{}
	adapter := NewEmail(sender, "alerts@portal.example")

	user := &database.User{UserID: 5, Email: "analyst@portal.example"}
	if err := adapter.Deliver(context.Background(), user, testNotification()); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("Deliver() sent %d messages, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To[0] != "analyst@portal.example" {
		t.Errorf("Deliver() to = %v, want the user's address", msg.To)
	}
	if !strings.Contains(msg.Subject, "HIGH") || !strings.Contains(msg.Subject, "Threshold breached") {
		t.Errorf("Deliver() subject = %q, want severity and title", msg.Subject)
	}
	if !strings.Contains(msg.Body, "R1") {
		t.Errorf("Deliver() body = %q, want the rule id", msg.Body)
	}
}

func TestEmail_Deliver_NoAddress(t *testing.T) {
	adapter := NewEmail(&fakeSender{}, "alerts@portal.example")

	err := adapter.Deliver(context.Background(), &database.User{UserID: 5}, testNotification())
	if err == nil {
		t.Fatal("Deliver() without an email address expected error")
	}
}

func TestEmail_Deliver_SenderError(t *testing.T) {
	sendErr := errors.New("provider down")
	adapter := NewEmail(&fakeSender{err: sendErr}, "alerts@portal.example")

	user := &database.User{UserID: 5, Email: "analyst@portal.example"}
	err := adapter.Deliver(context.Background(), user, testNotification())
	if !errors.Is(err, sendErr) {
		t.Errorf("Deliver() error = %v, want wrapped sender error", err)
	}
}

func TestEmail_Enabled(t *testing.T) {
	adapter := NewEmail(&fakeSender{}, "alerts@portal.example")
	if !adapter.Enabled(&database.Preference{Email: true}) {
		t.Error("Enabled() = false for opted-in preference")
	}
	if adapter.Enabled(&database.Preference{Email: false}) {
		t.Error("Enabled() = true for opted-out preference")
	}
}

func TestDesktop_Deliver(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	adapter := NewDesktop(server.URL)
	user := &database.User{UserID: 5}
	if err := adapter.Deliver(context.Background(), user, testNotification()); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if gotPath != "/notify" {
		t.Errorf("Deliver() posted to %q, want /notify", gotPath)
	}
}

func TestDesktop_Deliver_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := NewDesktop(server.URL)
	err := adapter.Deliver(context.Background(), &database.User{UserID: 5}, testNotification())
	if err == nil {
		t.Fatal("Deliver() expected error for gateway 500")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("Deliver() error = %v, want the gateway status", err)
	}
}
