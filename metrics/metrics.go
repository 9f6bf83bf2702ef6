// Package metrics keeps the rolling counters and per-domain latency windows
// spec §4.13 describes, and mirrors them into real Prometheus series
// (github.com/prometheus/client_golang) as an additional observability
// sink — the in-process EMA/p95 figures computed here remain the source of
// truth for Snapshot and the tests; Prometheus is a sink, not a replacement.
package metrics

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	latencyWindowCap = 128
	latencyEMAAlpha  = 0.1
)

// Snapshot is a point-in-time read of the global counters plus one domain's
// rolling latency figures.
type Snapshot struct {
	TotalRequests           uint64
	TotalChallenges         uint64
	TotalSolved             uint64
	TotalFailed             uint64
	ByKind                  map[string]uint64
	DomainAvgLatencySeconds float64
	DomainP95Seconds        float64
}

type domainLatency struct {
	recent []float64 // seconds, cap latencyWindowCap
	avg    float64
}

// Collector aggregates global and per-domain counters behind one mutex (spec
// §5: "metrics have their own fine-grained locks... mutex for metrics").
type Collector struct {
	mu sync.Mutex

	totalRequests   uint64
	totalChallenges uint64
	totalSolved     uint64
	totalFailed     uint64
	byKind          map[string]uint64
	domains         map[string]*domainLatency
	pooledLatencies []float64 // all domains' recent samples, pooled for p95 (spec §9 open question)

	promRequests  *prometheus.CounterVec
	promChallenge *prometheus.CounterVec
	promLatency   *prometheus.HistogramVec
}

// New constructs a Collector. If reg is non-nil the Prometheus series are
// registered against it; a nil registry skips Prometheus entirely (tests,
// or callers who don't want a global registration).
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		byKind:  make(map[string]uint64),
		domains: make(map[string]*domainLatency),
		promRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wraith_requests_total",
			Help: "Total requests processed by the scraper, by outcome.",
		}, []string{"outcome"}),
		promChallenge: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wraith_challenges_total",
			Help: "Total Cloudflare challenges encountered, by kind.",
		}, []string{"kind"}),
		promLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wraith_request_latency_seconds",
			Help:    "Observed request latency by domain.",
			Buckets: prometheus.DefBuckets,
		}, []string{"domain"}),
	}
	if reg != nil {
		reg.MustRegister(c.promRequests, c.promChallenge, c.promLatency)
	}
	return c
}

// RecordRequest increments the total-request counter and tags the outcome
// (e.g. "success", "failed", "mitigation").
func (c *Collector) RecordRequest(outcome string) {
	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()
	if c.promRequests != nil {
		c.promRequests.WithLabelValues(outcome).Inc()
	}
}

// RecordChallenge increments the challenge-kind counter.
func (c *Collector) RecordChallenge(kind string, solved bool) {
	c.mu.Lock()
	c.totalChallenges++
	c.byKind[kind]++
	if solved {
		c.totalSolved++
	} else {
		c.totalFailed++
	}
	c.mu.Unlock()
	if c.promChallenge != nil {
		c.promChallenge.WithLabelValues(kind).Inc()
	}
}

// RecordLatency folds a domain's observed request latency into its rolling
// window (cap 128), its own EMA average, and the pooled cross-domain sample
// set p95 is computed from.
func (c *Collector) RecordLatency(domain string, seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.domains[domain]
	if !ok {
		d = &domainLatency{avg: seconds}
		c.domains[domain] = d
	}
	d.avg = latencyEMAAlpha*seconds + (1-latencyEMAAlpha)*d.avg
	d.recent = append(d.recent, seconds)
	if len(d.recent) > latencyWindowCap {
		d.recent = d.recent[len(d.recent)-latencyWindowCap:]
	}

	c.pooledLatencies = append(c.pooledLatencies, seconds)
	if len(c.pooledLatencies) > latencyWindowCap*8 {
		c.pooledLatencies = c.pooledLatencies[len(c.pooledLatencies)-latencyWindowCap*8:]
	}

	if c.promLatency != nil {
		c.promLatency.WithLabelValues(domain).Observe(seconds)
	}
}

// Snapshot returns the current global counters plus domain's rolling
// latency figures.
func (c *Collector) Snapshot(domain string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]uint64, len(c.byKind))
	for k, v := range c.byKind {
		byKind[k] = v
	}

	snap := Snapshot{
		TotalRequests:   c.totalRequests,
		TotalChallenges: c.totalChallenges,
		TotalSolved:     c.totalSolved,
		TotalFailed:     c.totalFailed,
		ByKind:          byKind,
	}

	if d, ok := c.domains[domain]; ok {
		snap.DomainAvgLatencySeconds = d.avg
	}
	snap.DomainP95Seconds = p95(c.pooledLatencies)
	return snap
}

func p95(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	idx := int(0.95 * float64(len(sorted)-1))
	return sorted[idx]
}
