package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SES sends email through AWS SESv2 using the ambient AWS credential chain.
type SES struct {
	client *sesv2.Client
}

// NewSES creates the SES backend. When the AWS config cannot be loaded the
// backend registers as unconfigured and the registry skips it.
func NewSES() *SES {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		slog.Warn("Failed to load AWS config, SES provider unavailable", "error", err)
		return &SES{}
	}
	return &SES{client: sesv2.NewFromConfig(cfg)}
}

func (p *SES) Name() string { return "ses" }

func (p *SES) IsConfigured() bool { return p.client != nil }

// Send delivers one message via SES.
func (p *SES) Send(ctx context.Context, msg *Message) error {
	if p.client == nil {
		return fmt.Errorf("ses client not initialized")
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: &msg.From,
		Destination:      &types.Destination{ToAddresses: msg.To},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &msg.Subject},
				Body:    &types.Body{Text: &types.Content{Data: &msg.Body}},
			},
		},
	}

	result, err := p.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send failed: %w", err)
	}

	slog.Debug("Email sent via SES", "message_id", *result.MessageId, "to", msg.To)
	return nil
}
