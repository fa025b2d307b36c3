// Package metrics tracks routing counters and periodically reports them to
// Redis for the operations dashboard.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	metricsKeyPrefix      = "metrics:"
	metricsTTL            = 2 * time.Minute
	defaultReportInterval = 30 * time.Second
)

// Recorder is the counter interface the pipeline reports into.
type Recorder interface {
	RecordEventReceived()
	RecordNotificationCreated()
	RecordDuplicate()
	RecordSuppressed()
	RecordLivePush()
	RecordChannelError()
	RecordCaseAssigned()
	RecordError()
}

// NoOp discards all metrics. Used when no Redis address is configured.
type NoOp struct{}

func (NoOp) RecordEventReceived()       {}
func (NoOp) RecordNotificationCreated() {}
func (NoOp) RecordDuplicate()           {}
func (NoOp) RecordSuppressed()          {}
func (NoOp) RecordLivePush()            {}
func (NoOp) RecordChannelError()        {}
func (NoOp) RecordCaseAssigned()        {}
func (NoOp) RecordError()               {}

// Snapshot is the JSON document written to Redis.
type Snapshot struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`

	EventsReceived       uint64 `json:"events_received"`
	NotificationsCreated uint64 `json:"notifications_created"`
	Duplicates           uint64 `json:"duplicates"`
	Suppressed           uint64 `json:"suppressed"`
	LivePushes           uint64 `json:"live_pushes"`
	ChannelErrors        uint64 `json:"channel_errors"`
	CasesAssigned        uint64 `json:"cases_assigned"`
	ProcessingErrors     uint64 `json:"processing_errors"`
}

// Collector accumulates counters and reports them to Redis on an interval.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	eventsReceived       atomic.Uint64
	notificationsCreated atomic.Uint64
	duplicates           atomic.Uint64
	suppressed           atomic.Uint64
	livePushes           atomic.Uint64
	channelErrors        atomic.Uint64
	casesAssigned        atomic.Uint64
	processingErrors     atomic.Uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewCollector creates a collector reporting under the given service name.
func NewCollector(serviceName string, redisClient *redis.Client) *Collector {
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      time.Now().UTC(),
		reportInterval: defaultReportInterval,
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval overrides the reporting interval.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start begins periodic reporting until ctx is cancelled or Stop is called.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.write(context.Background())
				return
			case <-c.stopCh:
				c.write(context.Background())
				return
			case <-ticker.C:
				c.write(ctx)
			}
		}
	}()
}

// Stop flushes a final snapshot and stops the reporter.
func (c *Collector) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

func (c *Collector) RecordEventReceived()       { c.eventsReceived.Add(1) }
func (c *Collector) RecordNotificationCreated() { c.notificationsCreated.Add(1) }
func (c *Collector) RecordDuplicate()           { c.duplicates.Add(1) }
func (c *Collector) RecordSuppressed()          { c.suppressed.Add(1) }
func (c *Collector) RecordLivePush()            { c.livePushes.Add(1) }
func (c *Collector) RecordChannelError()        { c.channelErrors.Add(1) }
func (c *Collector) RecordCaseAssigned()        { c.casesAssigned.Add(1) }
func (c *Collector) RecordError()               { c.processingErrors.Add(1) }

// snapshot materializes the current counter values.
func (c *Collector) snapshot() *Snapshot {
	return &Snapshot{
		ServiceName:          c.serviceName,
		StartedAt:            c.startedAt,
		LastUpdated:          time.Now().UTC(),
		EventsReceived:       c.eventsReceived.Load(),
		NotificationsCreated: c.notificationsCreated.Load(),
		Duplicates:           c.duplicates.Load(),
		Suppressed:           c.suppressed.Load(),
		LivePushes:           c.livePushes.Load(),
		ChannelErrors:        c.channelErrors.Load(),
		CasesAssigned:        c.casesAssigned.Load(),
		ProcessingErrors:     c.processingErrors.Load(),
	}
}

func (c *Collector) write(ctx context.Context) {
	if c.redis == nil {
		return
	}

	payload, err := json.Marshal(c.snapshot())
	if err != nil {
		slog.Error("Failed to marshal metrics snapshot", "error", err)
		return
	}

	key := metricsKeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, payload, metricsTTL).Err(); err != nil {
		slog.Warn("Failed to write metrics to Redis", "key", key, "error", err)
	}
}
