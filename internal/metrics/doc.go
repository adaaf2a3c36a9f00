// Package metrics collects monitor statistics through a channel-based event
// pipeline.
//
// The scheduler and the cache emit events without blocking; a single
// collector goroutine folds them into:
//   - probe counts, failures and latency percentiles (P50, P95, P99) per host
//   - online/offline transitions per host
//   - tick counts, failures and the duration of the last tick
//   - cache operations that fell back to the in-process store
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	metrics.Emit(collector.EventChannel(), metrics.MetricEvent{
//		Type:     metrics.EventProbeCompleted,
//		Host:     "nas",
//		Duration: 3 * time.Millisecond,
//		Online:   true,
//	})
//
//	snapshot := collector.Snapshot()
//
// Events still queued when the context is cancelled are drained before the
// collector exits.
package metrics
