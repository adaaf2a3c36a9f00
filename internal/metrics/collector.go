package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventProbeCompleted EventType = "probe_completed"
	EventStatusChanged  EventType = "status_changed"
	EventTickCompleted  EventType = "tick_completed"
	EventTickFailed     EventType = "tick_failed"
	EventCacheFallback  EventType = "cache_fallback"
)

type MetricEvent struct {
	Type      EventType
	Timestamp time.Time
	Host      string
	Duration  time.Duration
	Online    bool
	Error     string
	Hosts     int
	Operation string
}

// Emit sends event without blocking. A nil channel or a full buffer drops it.
func Emit(ch chan<- MetricEvent, event MetricEvent) bool {
	if ch == nil {
		return false
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case ch <- event:
		return true
	default:
		return false
	}
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("metrics collector started")
	defer c.logger.Info("metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventProbeCompleted:
		c.metrics.RecordProbe(event.Host, event.Online, event.Duration, event.Error)

	case EventStatusChanged:
		c.metrics.RecordTransition(event.Host, event.Online)

	case EventTickCompleted:
		c.metrics.RecordTick(event.Duration, event.Hosts)

	case EventTickFailed:
		c.metrics.RecordTickFailure()

	case EventCacheFallback:
		c.metrics.RecordCacheFallback(event.Operation)

	default:
		c.logger.Debug("unknown metric event", slog.String("type", string(event.Type)))
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
