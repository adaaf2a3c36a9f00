// Package scheduler runs the monitor loop: every interval it lists the
// registered hosts, probes them concurrently and writes each result to the
// status cache. Host transitions between online and offline are logged and
// reported to the metrics collector.
package scheduler
