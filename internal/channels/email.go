package channels

import (
	"context"
	"fmt"

	"github.com/elite-business/case-tools-new-sub004/internal/channels/provider"
	"github.com/elite-business/case-tools-new-sub004/internal/database"
)

// EmailSender sends a composed email message.
type EmailSender interface {
	Send(ctx context.Context, msg *provider.Message) error
}

// Email delivers notifications as email through the provider registry.
type Email struct {
	sender EmailSender
	from   string
}

// NewEmail creates the email adapter.
func NewEmail(sender EmailSender, from string) *Email {
	return &Email{sender: sender, from: from}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Enabled(p *database.Preference) bool { return p.Email }

// Deliver composes and sends the notification email to the recipient's
// portal address.
func (e *Email) Deliver(ctx context.Context, user *database.User, n *database.Notification) error {
	if user.Email == "" {
		return fmt.Errorf("user %d has no email address", user.UserID)
	}

	msg := &provider.Message{
		From:    e.from,
		To:      []string{user.Email},
		Subject: fmt.Sprintf("[%s] %s", n.Severity, n.Title),
		Body:    fmt.Sprintf("%s\n\nRule: %s\nSeverity: %s\nType: %s", n.Message, n.RuleID, n.Severity, n.Type),
	}
	if err := e.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}
	return nil
}
