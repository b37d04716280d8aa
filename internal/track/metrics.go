package track

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Counter and latency names recorded by the pipeline. Keeping them here
// avoids drift between the packages that record and the ones that read.
const (
	CounterJobsEnqueued  = "jobs_enqueued"
	CounterJobsCompleted = "jobs_completed"
	CounterJobsFailed    = "jobs_failed"
	CounterJobsSwept     = "jobs_swept"
	CounterWorkerPanics  = "worker_panics"

	GaugeQueueDepth = "queue_depth"

	LatencyQueueWait     = "queue.wait"
	LatencyTranscription = "stage.transcription"
	LatencyExtraction    = "stage.extraction"
	LatencyEmbedding     = "stage.embedding"
	LatencyPipeline      = "pipeline.total"
)

// ProviderCallCounter returns the counter name for one provider call outcome,
// e.g. provider_calls.openai.success.
func ProviderCallCounter(provider, outcome string) string {
	return fmt.Sprintf("provider_calls.%s.%s", provider, outcome)
}

// ProviderLatency returns the latency series name for one provider,
// e.g. provider_latency.openai.
func ProviderLatency(provider string) string {
	return fmt.Sprintf("provider_latency.%s", provider)
}

// sampleWindow is how many recent observations each latency series keeps for
// percentile estimation.
const sampleWindow = 512

// latencySeries accumulates durations for one name. Totals are exact; the
// percentiles come from a ring of the most recent observations.
type latencySeries struct {
	count   int64
	sum     time.Duration
	min     time.Duration
	max     time.Duration
	samples []time.Duration
	next    int
}

func (s *latencySeries) observe(d time.Duration) {
	if s.count == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	s.count++
	s.sum += d

	if len(s.samples) < sampleWindow {
		s.samples = append(s.samples, d)
	} else {
		s.samples[s.next] = d
		s.next = (s.next + 1) % sampleWindow
	}
}

func (s *latencySeries) quantile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)-1))
	return sorted[idx]
}

// LatencySummary is the exported view of one latency series. Durations are
// reported in milliseconds.
type LatencySummary struct {
	Count int64   `json:"count"`
	MinMS float64 `json:"min_ms"`
	AvgMS float64 `json:"avg_ms"`
	P50MS float64 `json:"p50_ms"`
	P95MS float64 `json:"p95_ms"`
	P99MS float64 `json:"p99_ms"`
	MaxMS float64 `json:"max_ms"`
}

// Snapshot is a point-in-time view of every metric, serializable as the
// internal metrics endpoint response.
type Snapshot struct {
	Counters  map[string]int64          `json:"counters"`
	Gauges    map[string]float64        `json:"gauges"`
	Latencies map[string]LatencySummary `json:"latencies"`
}

// Metrics is an in-process metrics registry. All methods are safe for
// concurrent use.
type Metrics struct {
	mu        sync.Mutex
	counters  map[string]int64
	latencies map[string]*latencySeries
	gauges    map[string]func() float64
}

// NewMetrics creates an empty metrics registry.
func NewMetrics() *Metrics {
	return &Metrics{
		counters:  make(map[string]int64),
		latencies: make(map[string]*latencySeries),
		gauges:    make(map[string]func() float64),
	}
}

// Inc increments the named counter by one.
func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

// Add increments the named counter by n.
func (m *Metrics) Add(name string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += n
}

// Observe records one duration for the named latency series.
func (m *Metrics) Observe(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	series, ok := m.latencies[name]
	if !ok {
		series = &latencySeries{}
		m.latencies[name] = series
	}
	series.observe(d)
}

// Time starts a timer for the named latency series and returns the function
// that stops it, for use as: defer metrics.Time(name)().
func (m *Metrics) Time(name string) func() {
	start := time.Now()
	return func() {
		m.Observe(name, time.Since(start))
	}
}

// RegisterGauge registers a callback that is read on every Snapshot. The
// callback must be safe to call from any goroutine.
func (m *Metrics) RegisterGauge(name string, fn func() float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = fn
}

// Snapshot returns a point-in-time copy of every metric.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()

	snap := Snapshot{
		Counters:  make(map[string]int64, len(m.counters)),
		Gauges:    make(map[string]float64, len(m.gauges)),
		Latencies: make(map[string]LatencySummary, len(m.latencies)),
	}
	for name, v := range m.counters {
		snap.Counters[name] = v
	}
	for name, series := range m.latencies {
		sorted := make([]time.Duration, len(series.samples))
		copy(sorted, series.samples)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		avg := time.Duration(0)
		if series.count > 0 {
			avg = series.sum / time.Duration(series.count)
		}
		snap.Latencies[name] = LatencySummary{
			Count: series.count,
			MinMS: toMillis(series.min),
			AvgMS: toMillis(avg),
			P50MS: toMillis(series.quantile(sorted, 0.50)),
			P95MS: toMillis(series.quantile(sorted, 0.95)),
			P99MS: toMillis(series.quantile(sorted, 0.99)),
			MaxMS: toMillis(series.max),
		}
	}

	gauges := make(map[string]func() float64, len(m.gauges))
	for name, fn := range m.gauges {
		gauges[name] = fn
	}
	m.mu.Unlock()

	// Gauge callbacks run outside the lock; they may take locks of their own.
	for name, fn := range gauges {
		snap.Gauges[name] = fn()
	}

	return snap
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
