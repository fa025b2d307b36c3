// Package config provides configuration parsing and validation for the
// alert routing service.
package config

import (
	"fmt"
	"time"
)

// Config holds all configuration parameters for the routing service.
type Config struct {
	HTTPPort          string
	PostgresDSN       string
	RedisAddr         string // optional; metrics reporting is disabled when empty
	KafkaBrokers      string
	AlertEventsTopic  string
	ConsumerGroupID   string
	CaseAssignTopic   string
	DispatchWorkers   int
	ChannelTimeout    time.Duration
	HubBufferSize     int
	DesktopGatewayURL string // optional; desktop channel is disabled when empty
	EmailFrom         string
}

// Validate checks that all required configuration fields are set and have
// valid values. Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.AlertEventsTopic == "" {
		return fmt.Errorf("alert-events-topic cannot be empty")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.CaseAssignTopic == "" {
		return fmt.Errorf("case-assign-topic cannot be empty")
	}
	if c.DispatchWorkers <= 0 {
		return fmt.Errorf("dispatch-workers must be > 0")
	}
	if c.ChannelTimeout <= 0 {
		return fmt.Errorf("channel-timeout must be > 0")
	}
	if c.HubBufferSize <= 0 {
		return fmt.Errorf("hub-buffer-size must be > 0")
	}
	return nil
}
