// Package caseout publishes case assignment events to the case-management
// pipeline.
package caseout

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

const writeTimeout = 10 * time.Second

// Producer publishes case assignments to the cases.assign topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a producer configured for at-least-once delivery with
// synchronous writes. Messages are keyed by rule id so assignments for one
// rule stay ordered within a partition.
func NewProducer(brokers, topic string) (*Producer, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	slog.Info("Case assignment producer configured", "brokers", brokerList, "topic", topic)

	return &Producer{writer: writer, topic: topic}, nil
}

// Publish serializes a case assignment to JSON and writes it to Kafka.
func (p *Producer) Publish(ctx context.Context, assignment *events.CaseAssignment) error {
	payload, err := json.Marshal(assignment)
	if err != nil {
		return fmt.Errorf("failed to marshal case assignment: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(assignment.RuleID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "schema_version", Value: []byte(fmt.Sprintf("%d", assignment.SchemaVersion))},
			{Key: "external_event_id", Value: []byte(assignment.ExternalEventID)},
		},
		Time: time.Unix(assignment.AssignedTS, 0),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to publish case assignment",
			"rule_id", assignment.RuleID,
			"topic", p.topic,
			"error", err,
		)
		return fmt.Errorf("failed to write case assignment to Kafka: %w", err)
	}
	return nil
}

// Close releases the Kafka writer.
func (p *Producer) Close() error {
	slog.Info("Closing case assignment producer", "topic", p.topic)
	return p.writer.Close()
}
