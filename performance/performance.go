// Package performance watches per-domain and global latency/error trends
// and surfaces alert strings once a configured threshold is crossed (spec
// §4.5 "performance monitor (may surface alerts)"). It is grounded on the
// original implementation's performance module (original_source's
// src/modules/performance/mod.rs), carried over in the teacher's idiom:
// bounded deques guarded by a mutex, the same shape as antidetect.AntiDetect
// and timing.Timing use elsewhere in this module.
package performance

import (
	"sync"
	"time"
)

const defaultWindow = 100

// Config bounds one Monitor's sampling window and alert thresholds.
type Config struct {
	Window             int
	LatencyThreshold   time.Duration
	ErrorRateThreshold float64
	MinSamples         int
}

// DefaultConfig mirrors the original's defaults: a 100-sample window, a 4s
// latency alarm, a 25% error-rate alarm, and a 10-sample warm-up floor.
func DefaultConfig() Config {
	return Config{
		Window:             defaultWindow,
		LatencyThreshold:   4 * time.Second,
		ErrorRateThreshold: 0.25,
		MinSamples:         10,
	}
}

type domainPerf struct {
	latencies []time.Duration
	successes int
	failures  int
}

func (d *domainPerf) record(window int, latency time.Duration, success bool) {
	d.latencies = append(d.latencies, latency)
	if len(d.latencies) > window {
		d.latencies = d.latencies[len(d.latencies)-window:]
	}
	if success {
		d.successes++
	} else {
		d.failures++
	}
}

func (d *domainPerf) averageLatency() (time.Duration, bool) {
	if len(d.latencies) == 0 {
		return 0, false
	}
	var total time.Duration
	for _, l := range d.latencies {
		total += l
	}
	return total / time.Duration(len(d.latencies)), true
}

func (d *domainPerf) errorRate() (float64, bool) {
	total := d.successes + d.failures
	if total == 0 {
		return 0, false
	}
	return float64(d.failures) / float64(total), true
}

// Report is a point-in-time read of global/per-domain performance plus any
// threshold-crossing alerts.
type Report struct {
	GlobalLatency time.Duration
	HasGlobal     bool
	SlowDomains   []DomainLatency
	ErrorDomains  []DomainErrorRate
	Alerts        []string
}

// DomainLatency names a domain whose rolling average latency exceeded the
// configured threshold.
type DomainLatency struct {
	Domain  string
	Average time.Duration
}

// DomainErrorRate names a domain whose rolling error rate exceeded the
// configured threshold.
type DomainErrorRate struct {
	Domain string
	Rate   float64
}

// Monitor observes per-domain and global request performance with rolling
// statistics and reports alerts once enough samples have accumulated.
type Monitor struct {
	mu      sync.Mutex
	cfg     Config
	domains map[string]*domainPerf
	global  []time.Duration
}

// New constructs a Monitor. A zero Window/MinSamples falls back to
// DefaultConfig's values.
func New(cfg Config) *Monitor {
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultConfig().MinSamples
	}
	return &Monitor{cfg: cfg, domains: make(map[string]*domainPerf)}
}

// Record folds one request's latency/outcome into the domain's and the
// global rolling windows, returning an alert report once either window has
// warmed up past MinSamples. Returns (Report{}, false) before warm-up.
func (m *Monitor) Record(domain string, latency time.Duration, success bool) (Report, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.global = append(m.global, latency)
	if len(m.global) > m.cfg.Window {
		m.global = m.global[len(m.global)-m.cfg.Window:]
	}

	d, ok := m.domains[domain]
	if !ok {
		d = &domainPerf{}
		m.domains[domain] = d
	}
	d.record(m.cfg.Window, latency, success)

	if len(d.latencies) < m.cfg.MinSamples && len(m.global) < m.cfg.MinSamples {
		return Report{}, false
	}

	return m.buildReport(), true
}

// Snapshot returns the current report without requiring warm-up, useful for
// dashboards/health checks that want a read regardless of sample count.
func (m *Monitor) Snapshot() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buildReport()
}

func (m *Monitor) buildReport() Report {
	report := Report{}
	if avg, ok := globalAverage(m.global); ok {
		report.GlobalLatency, report.HasGlobal = avg, true
	}

	for name, perf := range m.domains {
		if avg, ok := perf.averageLatency(); ok && avg > m.cfg.LatencyThreshold {
			report.SlowDomains = append(report.SlowDomains, DomainLatency{Domain: name, Average: avg})
		}
		if rate, ok := perf.errorRate(); ok && rate >= m.cfg.ErrorRateThreshold {
			report.ErrorDomains = append(report.ErrorDomains, DomainErrorRate{Domain: name, Rate: rate})
		}
	}

	if report.HasGlobal && report.GlobalLatency > m.cfg.LatencyThreshold {
		report.Alerts = append(report.Alerts, "global latency exceeded threshold")
	}
	for _, sd := range report.SlowDomains {
		report.Alerts = append(report.Alerts, "domain "+sd.Domain+" average latency exceeds threshold")
	}
	for _, ed := range report.ErrorDomains {
		report.Alerts = append(report.Alerts, "domain "+ed.Domain+" error rate exceeds threshold")
	}

	return report
}

func globalAverage(samples []time.Duration) (time.Duration, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	return total / time.Duration(len(samples)), true
}
