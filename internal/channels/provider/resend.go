package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/resend/resend-go/v2"
)

// Resend sends email through the Resend API. The API key is read from the
// RESEND_API_KEY environment variable.
type Resend struct {
	client *resend.Client
}

// NewResend creates the Resend backend. Without an API key it registers as
// unconfigured and the registry skips it.
func NewResend() *Resend {
	apiKey := os.Getenv("RESEND_API_KEY")
	if apiKey == "" {
		slog.Warn("RESEND_API_KEY not set, Resend provider unavailable")
		return &Resend{}
	}
	return &Resend{client: resend.NewClient(apiKey)}
}

func (p *Resend) Name() string { return "resend" }

func (p *Resend) IsConfigured() bool { return p.client != nil }

// Send delivers one message via the Resend API.
func (p *Resend) Send(ctx context.Context, msg *Message) error {
	if p.client == nil {
		return fmt.Errorf("resend client not initialized")
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	result, err := p.client.Emails.Send(&resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Body,
	})
	if err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}

	slog.Debug("Email sent via Resend", "email_id", result.Id, "to", msg.To)
	return nil
}
