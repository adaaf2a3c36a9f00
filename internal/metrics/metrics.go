package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxLatencySamples = 1000

type Metrics struct {
	mutex          sync.RWMutex
	probes         map[string]int64
	failures       map[string]int64
	latencies      map[string][]time.Duration
	online         map[string]bool
	transitions    map[string]int64
	lastErrors     map[string]string
	cacheFallbacks map[string]int64
	ticks          int64
	tickFailures   int64
	lastTick       time.Duration
	lastTickHosts  int
	startTime      time.Time
}

type Snapshot struct {
	Uptime         time.Duration          `json:"uptime"`
	TotalProbes    int64                  `json:"total_probes"`
	Ticks          int64                  `json:"ticks"`
	TickFailures   int64                  `json:"tick_failures"`
	LastTick       time.Duration          `json:"last_tick"`
	LastTickHosts  int                    `json:"last_tick_hosts"`
	CacheFallbacks map[string]int64       `json:"cache_fallbacks"`
	Hosts          map[string]HostMetrics `json:"hosts"`
}

type HostMetrics struct {
	Probes      int64         `json:"probes"`
	Failures    int64         `json:"failures"`
	Online      bool          `json:"online"`
	Transitions int64         `json:"transitions"`
	LastError   string        `json:"last_error,omitempty"`
	AvgLatency  time.Duration `json:"avg_latency"`
	P50Latency  time.Duration `json:"p50_latency"`
	P95Latency  time.Duration `json:"p95_latency"`
	P99Latency  time.Duration `json:"p99_latency"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		probes:         make(map[string]int64),
		failures:       make(map[string]int64),
		latencies:      make(map[string][]time.Duration),
		online:         make(map[string]bool),
		transitions:    make(map[string]int64),
		lastErrors:     make(map[string]string),
		cacheFallbacks: make(map[string]int64),
		startTime:      time.Now(),
	}
}

// RecordProbe counts one probe result. Latency samples are kept only for
// successful probes.
func (m *Metrics) RecordProbe(host string, online bool, latency time.Duration, errMsg string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.probes[host]++
	m.online[host] = online

	if !online {
		m.failures[host]++
		m.lastErrors[host] = errMsg
		return
	}

	delete(m.lastErrors, host)
	m.latencies[host] = append(m.latencies[host], latency)
	if len(m.latencies[host]) > maxLatencySamples {
		m.latencies[host] = m.latencies[host][1:]
	}
}

func (m *Metrics) RecordTransition(host string, online bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.transitions[host]++
	m.online[host] = online
}

func (m *Metrics) RecordTick(duration time.Duration, hosts int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ticks++
	m.lastTick = duration
	m.lastTickHosts = hosts
}

func (m *Metrics) RecordTickFailure() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.tickFailures++
}

func (m *Metrics) RecordCacheFallback(operation string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.cacheFallbacks[operation]++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:         time.Since(m.startTime),
		Ticks:          m.ticks,
		TickFailures:   m.tickFailures,
		LastTick:       m.lastTick,
		LastTickHosts:  m.lastTickHosts,
		CacheFallbacks: make(map[string]int64, len(m.cacheFallbacks)),
		Hosts:          make(map[string]HostMetrics),
	}

	for op, n := range m.cacheFallbacks {
		snap.CacheFallbacks[op] = n
	}

	allHosts := make(map[string]bool)
	for host := range m.probes {
		allHosts[host] = true
	}
	for host := range m.transitions {
		allHosts[host] = true
	}

	for host := range allHosts {
		snap.TotalProbes += m.probes[host]

		hm := HostMetrics{
			Probes:      m.probes[host],
			Failures:    m.failures[host],
			Online:      m.online[host],
			Transitions: m.transitions[host],
			LastError:   m.lastErrors[host],
		}

		durations := m.latencies[host]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			hm.AvgLatency = average(sorted)
			hm.P50Latency = percentile(sorted, 0.50)
			hm.P95Latency = percentile(sorted, 0.95)
			hm.P99Latency = percentile(sorted, 0.99)
		}

		snap.Hosts[host] = hm
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
