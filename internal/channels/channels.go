// Package channels provides the fire-and-forget delivery adapters that push
// notifications to secondary channels alongside the in-app feed.
package channels

import (
	"context"

	"github.com/elite-business/case-tools-new-sub004/internal/database"
)

// Adapter delivers a stored notification over one secondary channel.
// Delivery failures never affect the notification record; the dispatcher
// logs and counts them.
type Adapter interface {
	Name() string
	// Enabled reports whether the recipient opted into this channel.
	Enabled(p *database.Preference) bool
	Deliver(ctx context.Context, user *database.User, n *database.Notification) error
}
