// Package consumer reads alert events from the alerting engine's Kafka
// topic.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/elite-business/case-tools-new-sub004/internal/events"
	"github.com/segmentio/kafka-go"
)

const (
	readMaxWait    = 10 * time.Second
	commitInterval = time.Second
)

// Consumer wraps a Kafka reader over the alerts.events topic.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a consumer with at-least-once semantics. Offsets are
// committed on an interval; redelivery after a crash is handled by the
// dispatcher's idempotent insert.
func NewConsumer(brokers, topic, groupID string) (*Consumer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return nil, fmt.Errorf("group id cannot be empty")
	}

	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokerList,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		MaxWait:        readMaxWait,
		CommitInterval: commitInterval,
		StartOffset:    kafka.FirstOffset,
	})

	slog.Info("Alert event consumer configured",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	return &Consumer{reader: reader, topic: topic}, nil
}

// ReadEvent reads and decodes the next alert event. Blocks until a message
// arrives or ctx is cancelled.
func (c *Consumer) ReadEvent(ctx context.Context) (*events.AlertEvent, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}

	var event events.AlertEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal alert event: %w", err)
	}
	return &event, nil
}

// Close releases the Kafka reader.
func (c *Consumer) Close() error {
	slog.Info("Closing alert event consumer", "topic", c.topic)
	return c.reader.Close()
}
