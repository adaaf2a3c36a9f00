package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/angeloszaimis/wol-monitor/config"
	"github.com/angeloszaimis/wol-monitor/internal/cache"
	"github.com/angeloszaimis/wol-monitor/internal/handler"
	"github.com/angeloszaimis/wol-monitor/internal/hoststatus"
	"github.com/angeloszaimis/wol-monitor/internal/httpserver"
	"github.com/angeloszaimis/wol-monitor/internal/metrics"
	"github.com/angeloszaimis/wol-monitor/internal/probe"
	"github.com/angeloszaimis/wol-monitor/internal/registry"
	"github.com/angeloszaimis/wol-monitor/internal/scheduler"
	"github.com/angeloszaimis/wol-monitor/internal/wol"
	"github.com/angeloszaimis/wol-monitor/pkg/logger"
)

func main() {
	flags := pflag.NewFlagSet("wol-monitor", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to config file (default: ./config/config.yaml or ./config.yaml)")
	clearCache := flags.Bool("clear-cache", false, "delete every cached host status and exit")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log, *clearCache); err != nil {
		log.Error("wol-monitor exited with error", slog.Any("err", err))
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, clearOnly bool) error {
	collector := metrics.NewCollector(cfg.Metrics.BufferSize, logger.Component(log, "metrics"))
	collector.Start(ctx)

	statusCache, closeCache := initializeCache(ctx, cfg.Cache, logger.Component(log, "cache"), collector.EventChannel())
	defer closeCache()

	if clearOnly {
		if err := statusCache.Clear(ctx); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		log.Info("status cache cleared", slog.String("backend", statusCache.Backend()))
		return nil
	}

	reg, err := registry.Open(cfg.Registry.Driver, cfg.Registry.DSN, cfg.Registry.Query)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	if closer, ok := reg.(io.Closer); ok {
		defer closer.Close()
	}

	prober, err := createProber(cfg.Probe)
	if err != nil {
		return err
	}

	sched := scheduler.New(reg, prober, statusCache,
		scheduler.WithInterval(cfg.Monitor.Interval),
		scheduler.WithRecoveryInterval(cfg.Monitor.RecoveryInterval),
		scheduler.WithMaxConcurrency(cfg.Monitor.MaxConcurrency),
		scheduler.WithLogger(logger.Component(log, "scheduler")),
		scheduler.WithEvents(collector.EventChannel()),
	)
	monitor := sched.Start(ctx)
	defer monitor.Stop()

	go cache.Janitor(ctx, statusCache, cfg.Monitor.Interval, logger.Component(log, "cache"))

	statusHandler := handler.NewStatusHandler(
		logger.Component(log, "api"),
		hoststatus.New(statusCache, logger.Component(log, "hoststatus")),
		reg,
		statusCache,
		wol.NewSender(cfg.WOL.Broadcast, cfg.WOL.Port),
		handler.WithStreamInterval(cfg.Stream.Interval),
		handler.WithLimiter(wol.NewLimiter(cfg.WOL.MaxAttempts, cfg.WOL.Window)),
	)

	httpLog := logger.Component(log, "http")
	srv, err := httpserver.New(cfg.Server.Address, setupRouter(statusHandler, collector, httpLog), httpLog)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Start()
	}()

	log.Info("wol-monitor started",
		slog.String("addr", cfg.Server.Address),
		slog.String("probe", cfg.Probe.Method),
		slog.String("registry", cfg.Registry.Driver),
		slog.String("cache", statusCache.Backend()),
	)

	select {
	case <-ctx.Done():
		log.Info("shutting down gracefully")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("error during shutdown", slog.Any("err", err))
		}
		return nil
	case err := <-srvErrCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// initializeCache connects to the configured Redis. Any failure leaves the
// monitor on the in-process cache.
func initializeCache(ctx context.Context, cfg config.CacheConfig, log *slog.Logger, events chan<- metrics.MetricEvent) (cache.StatusCache, func()) {
	opts := cache.Options{
		Prefix:           cfg.Prefix,
		TTL:              cache.TTLPolicy{Online: cfg.OnlineTTL, Offline: cfg.OfflineTTL},
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout,
	}

	client, err := cache.NewClient(cfg.URL)
	if err != nil {
		log.Warn("invalid cache url", slog.String("error", err.Error()))
		return cache.New(ctx, nil, opts, log), func() {}
	}

	return cache.New(ctx, client, opts, log, cache.WithEvents(events)), func() {
		_ = client.Close()
	}
}

func createProber(cfg config.ProbeConfig) (probe.Prober, error) {
	prober, err := probe.New(cfg.Method, probe.Config{
		Timeout:         cfg.Timeout,
		Retries:         cfg.Retries,
		RetryInterval:   cfg.RetryInterval,
		MaxSocketErrors: cfg.MaxSocketErrors,
	}, cfg.Privileged, probe.WithSource(cfg.Source))
	if err != nil {
		return nil, fmt.Errorf("create prober: %w", err)
	}
	return prober, nil
}
