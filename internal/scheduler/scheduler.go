package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/wol-monitor/internal/cache"
	"github.com/angeloszaimis/wol-monitor/internal/metrics"
	"github.com/angeloszaimis/wol-monitor/internal/probe"
	"github.com/angeloszaimis/wol-monitor/internal/registry"
	"github.com/angeloszaimis/wol-monitor/pkg/logger"
)

const (
	DefaultInterval         = 30 * time.Second
	DefaultRecoveryInterval = 5 * time.Second

	probeFailed = "probe failed"
)

type Scheduler struct {
	registry registry.Registry
	prober   probe.Prober
	cache    cache.StatusCache

	interval         time.Duration
	recoveryInterval time.Duration
	maxConcurrency   int
	logger           *slog.Logger
	events           chan<- metrics.MetricEvent

	mutex sync.Mutex
	last  map[string]bool
}

type Option func(*Scheduler)

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithRecoveryInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.recoveryInterval = d
		}
	}
}

// WithMaxConcurrency bounds in-flight probes per tick. Zero means one
// goroutine per host.
func WithMaxConcurrency(n int) Option {
	return func(s *Scheduler) {
		s.maxConcurrency = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

func WithEvents(ch chan<- metrics.MetricEvent) Option {
	return func(s *Scheduler) {
		s.events = ch
	}
}

func New(reg registry.Registry, prober probe.Prober, statusCache cache.StatusCache, opts ...Option) *Scheduler {
	s := &Scheduler{
		registry:         reg,
		prober:           prober,
		cache:            statusCache,
		interval:         DefaultInterval,
		recoveryInterval: DefaultRecoveryInterval,
		logger:           logger.Discard(),
		last:             make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle controls a running loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the loop and waits for it to exit. Probes of the tick in
// progress see a cancelled context and their results are discarded.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Start runs the first tick immediately and then one tick per interval
// until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		s.run(ctx)
	}()
	return h
}

func (s *Scheduler) run(ctx context.Context) {
	s.logger.Info("scheduler started",
		slog.Duration("interval", s.interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)
	defer s.logger.Info("scheduler stopped")

	for {
		wait := s.interval
		if err := s.safeTick(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("monitor tick failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", s.recoveryInterval),
			)
			metrics.Emit(s.events, metrics.MetricEvent{Type: metrics.EventTickFailed})
			wait = s.recoveryInterval
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Scheduler) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()
	return s.Tick(ctx)
}

// Tick probes every registered host once and returns after all results
// are written. Hosts without an address are skipped.
func (s *Scheduler) Tick(ctx context.Context) error {
	start := time.Now()

	hosts, err := s.registry.Hosts(ctx)
	if err != nil {
		return fmt.Errorf("load hosts: %w", err)
	}

	var g errgroup.Group
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}

	probed := 0
	for _, host := range hosts {
		if strings.TrimSpace(host.Address) == "" {
			s.logger.Debug("skipping host without address", slog.String("host", host.ID))
			continue
		}
		probed++
		g.Go(func() error {
			s.checkHost(ctx, host)
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	s.logger.Debug("monitor tick completed",
		slog.Int("hosts", probed),
		slog.Duration("elapsed", elapsed),
	)
	metrics.Emit(s.events, metrics.MetricEvent{
		Type:     metrics.EventTickCompleted,
		Duration: elapsed,
		Hosts:    probed,
	})
	return ctx.Err()
}

func (s *Scheduler) checkHost(ctx context.Context, host registry.Host) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("probe panicked",
				slog.String("host", host.ID),
				slog.Any("panic", r),
			)
			msg := probeFailed
			s.safeRecord(ctx, host, probe.Result{Target: host.Address}, &msg)
		}
	}()

	res := s.prober.Probe(ctx, host.Address)
	if ctx.Err() != nil {
		return
	}
	s.safeRecord(ctx, host, res, res.ErrorMessage())
}

// safeRecord keeps a panicking store from taking the errgroup goroutine
// down with it.
func (s *Scheduler) safeRecord(ctx context.Context, host registry.Host, res probe.Result, errMsg *string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("failed to store host status",
				slog.String("host", host.ID),
				slog.Any("panic", r),
			)
		}
	}()
	s.record(ctx, host, res, errMsg)
}

func (s *Scheduler) record(ctx context.Context, host registry.Host, res probe.Result, errMsg *string) {
	if err := s.cache.Update(ctx, host.ID, res.Reachable, res.LatencyMillis(), errMsg); err != nil {
		s.logger.Warn("failed to store host status",
			slog.String("host", host.ID),
			slog.String("error", err.Error()),
		)
	}

	event := metrics.MetricEvent{
		Type:     metrics.EventProbeCompleted,
		Host:     host.ID,
		Duration: res.Latency,
		Online:   res.Reachable,
	}
	if errMsg != nil {
		event.Error = *errMsg
	}
	metrics.Emit(s.events, event)

	s.trackTransition(host, res.Reachable)
}

func (s *Scheduler) trackTransition(host registry.Host, online bool) {
	s.mutex.Lock()
	prev, seen := s.last[host.ID]
	s.last[host.ID] = online
	s.mutex.Unlock()

	if !seen || prev == online {
		return
	}

	if online {
		s.logger.Info("host is back up",
			slog.String("host", host.ID),
			slog.String("address", host.Address))
	} else {
		s.logger.Warn("host is down",
			slog.String("host", host.ID),
			slog.String("address", host.Address))
	}
	metrics.Emit(s.events, metrics.MetricEvent{
		Type:   metrics.EventStatusChanged,
		Host:   host.ID,
		Online: online,
	})
}
