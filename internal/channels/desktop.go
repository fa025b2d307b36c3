package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elite-business/case-tools-new-sub004/internal/database"
)

// Desktop delivers notifications to the desktop notification gateway that
// raises native toasts on analyst workstations.
type Desktop struct {
	gatewayURL string
	client     *http.Client
}

// NewDesktop creates the desktop adapter pointed at the gateway base URL.
func NewDesktop(gatewayURL string) *Desktop {
	return &Desktop{
		gatewayURL: gatewayURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *Desktop) Name() string { return "desktop" }

func (d *Desktop) Enabled(p *database.Preference) bool { return p.Desktop }

type desktopPayload struct {
	UserID   int64  `json:"user_id"`
	Severity string `json:"severity"`
	Title    string `json:"title"`
	Message  string `json:"message"`
}

// Deliver posts the notification to the gateway's notify endpoint.
func (d *Desktop) Deliver(ctx context.Context, user *database.User, n *database.Notification) error {
	body, err := json.Marshal(desktopPayload{
		UserID:   user.UserID,
		Severity: n.Severity,
		Title:    n.Title,
		Message:  n.Message,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal desktop payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.gatewayURL+"/notify", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach desktop gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("desktop gateway returned status %d", resp.StatusCode)
	}
	return nil
}
