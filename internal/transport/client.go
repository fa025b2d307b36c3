package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Client maintains a websocket connection to the routing service, redialing
// with exponential backoff when the connection drops. Frames received while
// disconnected are not replayed here; callers reconcile over HTTP using the
// last seen notification id.
type Client struct {
	url     string
	dialer  *websocket.Dialer
	onFrame func([]byte)
}

// NewClient creates a client that invokes onFrame for every received frame.
func NewClient(url string, onFrame func([]byte)) *Client {
	return &Client{
		url:     url,
		dialer:  websocket.DefaultDialer,
		onFrame: onFrame,
	}
}

// Run connects and reads frames until ctx is cancelled. Each connection
// failure doubles the redial delay from 1s up to a 30s ceiling; a successful
// connection resets it.
func (c *Client) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			slog.Warn("Connection failed, retrying", "url", c.url, "backoff", backoff, "error", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}

		slog.Info("Connected", "url", c.url)
		backoff = initialBackoff
		c.readLoop(ctx, conn)
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			slog.Debug("Connection lost", "url", c.url, "error", err)
			return
		}
		c.onFrame(frame)
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
