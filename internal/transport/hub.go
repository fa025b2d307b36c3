// Package transport provides the in-process pub/sub hub and the websocket
// layer that pushes notification frames to connected portal sessions.
package transport

import (
	"fmt"
	"log/slog"
	"sync"
)

// UserTopic returns the topic carrying frames addressed to one user.
func UserTopic(userID int64) string {
	return fmt.Sprintf("user.%d", userID)
}

// TeamTopic returns the topic carrying broadcasts addressed to a team.
func TeamTopic(teamID int64) string {
	return fmt.Sprintf("team.%d", teamID)
}

// Subscription is a live feed over a set of topics. Receive from C; call
// Cancel exactly once when done. After Cancel returns, C is closed and no
// further frames are delivered.
type Subscription struct {
	C      <-chan []byte
	Cancel func()
}

// Hub is an in-process topic broker. Publishing never blocks: a subscriber
// whose buffer is full misses the frame and reconciles over HTTP later.
type Hub struct {
	mu         sync.RWMutex
	topics     map[string]map[*subscriber]struct{}
	bufferSize int
	closed     bool
}

type subscriber struct {
	ch     chan []byte
	topics []string
}

// NewHub creates a hub whose subscriptions buffer up to bufferSize frames.
func NewHub(bufferSize int) *Hub {
	return &Hub{
		topics:     make(map[string]map[*subscriber]struct{}),
		bufferSize: bufferSize,
	}
}

// SubscribeTopics registers a subscriber for every given topic and returns
// its subscription. Subscribing to a topic nobody publishes to is valid.
func (h *Hub) SubscribeTopics(topics ...string) *Subscription {
	sub := &subscriber{
		ch:     make(chan []byte, h.bufferSize),
		topics: topics,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return &Subscription{C: sub.ch, Cancel: func() {}}
	}
	for _, topic := range topics {
		if h.topics[topic] == nil {
			h.topics[topic] = make(map[*subscriber]struct{})
		}
		h.topics[topic][sub] = struct{}{}
	}
	h.mu.Unlock()

	var once sync.Once
	return &Subscription{
		C: sub.ch,
		Cancel: func() {
			once.Do(func() { h.remove(sub) })
		},
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range sub.topics {
		if subs := h.topics[topic]; subs != nil {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	// Channels close under the write lock so publishers, which send under
	// the read lock, never race a close.
	if !h.closed {
		close(sub.ch)
	}
}

// Publish delivers a frame to every current subscriber of the topic.
// Delivery is best-effort: slow subscribers are skipped, not waited on.
// Returns the number of subscribers the frame was handed to.
func (h *Hub) Publish(topic string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.topics[topic] {
		select {
		case sub.ch <- frame:
			delivered++
		default:
			slog.Warn("Dropping frame for slow subscriber", "topic", topic)
		}
	}
	return delivered
}

// Close shuts the hub down: all subscription channels are closed and later
// publishes deliver to nobody.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	seen := make(map[*subscriber]struct{})
	for _, subs := range h.topics {
		for sub := range subs {
			seen[sub] = struct{}{}
		}
	}
	h.topics = make(map[string]map[*subscriber]struct{})
	for sub := range seen {
		close(sub.ch)
	}
	h.mu.Unlock()
}
