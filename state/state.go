// Package state holds the process-wide, domain-keyed bundle of adaptive
// facts the rest of the scraper reads and writes on every request: success
// and failure streaks, a mirrored timing/burst snapshot, the active
// session, the domain's current fingerprint profile tag, a bounded error
// history, and the cookie/sticky-header bags a transport client can't carry
// on its own (spec §3, §4.11).
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	errorHistoryCap = 50
	recentDelaysCap = 32
	emaAlpha        = 0.05
)

// TimingState mirrors the rolling timing facts the adaptive timing engine
// computes, kept here as well so sticky-header and observability consumers
// don't need a handle to the timing package itself.
type TimingState struct {
	SuccessRate         float64
	AvgResponseTime     time.Duration
	ConsecutiveFailures int
	OptimalDelay        *time.Duration
	RecentDelays        []time.Duration
}

// BurstState is the per-domain request-timestamp window used to detect
// bursts independently of the antidetect package's own bookkeeping.
type BurstState struct {
	Timestamps    []time.Time
	CooldownUntil time.Time
}

// SessionState identifies the logical browsing session a domain's requests
// belong to.
type SessionState struct {
	SessionID  string
	MinSpacing time.Duration
}

// FingerprintProfile is a lightweight tag describing which synthetic
// identity is currently active for a domain, independent of the full
// fingerprint.Fingerprint value the fingerprint generator owns.
type FingerprintProfile struct {
	GPU           string
	OS            string
	Browser       string
	ContentHashes map[string]string
}

// DomainState is the full per-host bundle described in spec §3. Callers
// never mutate a returned DomainState directly — Manager hands back cloned
// snapshots; all writes go through Manager's methods so they stay
// serialized.
type DomainState struct {
	SuccessStreak int
	FailureStreak int
	Timing        TimingState
	Burst         BurstState
	Session       SessionState
	Fingerprint   FingerprintProfile
	ErrorHistory  []string
	Cookies       map[string]string
	StickyHeaders map[string]string
	Metadata      map[string]string
}

func newDomainState() *DomainState {
	return &DomainState{
		Timing:        TimingState{SuccessRate: 1.0},
		Cookies:       make(map[string]string),
		StickyHeaders: make(map[string]string),
		Metadata:      make(map[string]string),
	}
}

func (d *DomainState) clone() DomainState {
	out := *d
	out.Timing.RecentDelays = append([]time.Duration(nil), d.Timing.RecentDelays...)
	if d.Timing.OptimalDelay != nil {
		v := *d.Timing.OptimalDelay
		out.Timing.OptimalDelay = &v
	}
	out.Burst.Timestamps = append([]time.Time(nil), d.Burst.Timestamps...)
	out.ErrorHistory = append([]string(nil), d.ErrorHistory...)
	out.Cookies = cloneMap(d.Cookies)
	out.StickyHeaders = cloneMap(d.StickyHeaders)
	out.Metadata = cloneMap(d.Metadata)
	return out
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Manager is the concurrent, domain-keyed state store (spec §4.11). Writers
// serialize through a single RWMutex; readers get cloned snapshots so a
// caller never observes a torn in-progress write.
type Manager struct {
	mu      sync.RWMutex
	domains map[string]*DomainState
}

// New constructs an empty Manager.
func New() *Manager {
	return &Manager{domains: make(map[string]*DomainState)}
}

func (m *Manager) getOrCreateLocked(domain string) *DomainState {
	d, ok := m.domains[domain]
	if !ok {
		d = newDomainState()
		m.domains[domain] = d
	}
	return d
}

// Get returns a cloned snapshot of domain's state, or a fresh default
// snapshot (SuccessRate 1.0, everything else zero) if the domain has never
// been recorded.
func (m *Manager) Get(domain string) DomainState {
	m.mu.RLock()
	d, ok := m.domains[domain]
	m.mu.RUnlock()
	if !ok {
		return newDomainState().clone()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return d.clone()
}

// RecordSuccess folds a successful request into domain's streaks, EMAs, and
// clears its error history (spec invariant: "a successful outcome clears
// the error history").
func (m *Manager) RecordSuccess(domain string, responseTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.getOrCreateLocked(domain)

	d.SuccessStreak++
	d.FailureStreak = 0
	d.Timing.SuccessRate = ema(d.Timing.SuccessRate, 1.0, emaAlpha)
	d.Timing.AvgResponseTime = emaDuration(d.Timing.AvgResponseTime, responseTime, emaAlpha)
	d.Timing.ConsecutiveFailures = 0
	d.ErrorHistory = nil
}

// RecordFailure folds a failed request into domain's streaks, EMAs, and
// bounded error history. It alone satisfies the narrow FailureRecorder
// capability the rate-limit/access-denied/bot-management solvers use.
func (m *Manager) RecordFailure(domain, reason string) {
	m.RecordFailureWithLatency(domain, reason, 0)
}

// RecordFailureWithLatency is RecordFailure plus the observed response
// time, used by the orchestrator's feedback fan-out where a real latency
// is available.
func (m *Manager) RecordFailureWithLatency(domain, reason string, responseTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.getOrCreateLocked(domain)

	d.FailureStreak++
	d.SuccessStreak = 0
	d.Timing.SuccessRate = ema(d.Timing.SuccessRate, 0.0, emaAlpha)
	if responseTime > 0 {
		d.Timing.AvgResponseTime = emaDuration(d.Timing.AvgResponseTime, responseTime, emaAlpha)
	}
	if d.Timing.ConsecutiveFailures < 5 {
		d.Timing.ConsecutiveFailures++
	}

	d.ErrorHistory = append(d.ErrorHistory, reason)
	if len(d.ErrorHistory) > errorHistoryCap {
		d.ErrorHistory = d.ErrorHistory[len(d.ErrorHistory)-errorHistoryCap:]
	}
}

// RecordOutcome is the orchestrator's single feedback entrypoint (spec
// §4.5 step 5): success or failure, tagged with a reason (e.g.
// "status_503") and the observed response time.
func (m *Manager) RecordOutcome(domain string, success bool, reason string, responseTime time.Duration) {
	if success {
		m.RecordSuccess(domain, responseTime)
		return
	}
	m.RecordFailureWithLatency(domain, reason, responseTime)
}

// MarkRequest records an attempt timestamp into domain's burst window and
// applied-delay history, pruning timestamps outside burstWindow.
func (m *Manager) MarkRequest(domain string, now time.Time, burstWindow, appliedDelay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.getOrCreateLocked(domain)

	d.Burst.Timestamps = append(d.Burst.Timestamps, now)
	cutoff := now.Add(-burstWindow)
	pruned := d.Burst.Timestamps[:0]
	for _, ts := range d.Burst.Timestamps {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	d.Burst.Timestamps = pruned

	d.Timing.RecentDelays = append(d.Timing.RecentDelays, appliedDelay)
	if len(d.Timing.RecentDelays) > recentDelaysCap {
		d.Timing.RecentDelays = d.Timing.RecentDelays[len(d.Timing.RecentDelays)-recentDelaysCap:]
	}

	if d.Session.SessionID == "" {
		d.Session.SessionID = uuid.NewString()
	}
}

// SetCookies overlays cookies onto domain's cookie bag.
func (m *Manager) SetCookies(domain string, cookies map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.getOrCreateLocked(domain)
	for k, v := range cookies {
		d.Cookies[k] = v
	}
}

// SetStickyHeader records a header that should be overlaid onto every
// subsequent request to domain (e.g. a value the server expects echoed
// back).
func (m *Manager) SetStickyHeader(domain, name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.getOrCreateLocked(domain)
	d.StickyHeaders[name] = value
}

// StickyHeaders returns a copy of domain's sticky header bag.
func (m *Manager) StickyHeaders(domain string) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.domains[domain]
	if !ok {
		return map[string]string{}
	}
	return cloneMap(d.StickyHeaders)
}

// SetFingerprintProfile records the fingerprint tag currently active for
// domain.
func (m *Manager) SetFingerprintProfile(domain string, profile FingerprintProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.getOrCreateLocked(domain)
	d.Fingerprint = profile
}

func ema(prev, sample, alpha float64) float64 {
	return alpha*sample + (1-alpha)*prev
}

func emaDuration(prev, sample time.Duration, alpha float64) time.Duration {
	if sample == 0 {
		return prev
	}
	return time.Duration(alpha*float64(sample) + (1-alpha)*float64(prev))
}
