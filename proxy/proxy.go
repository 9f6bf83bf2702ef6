// Package proxy selects and rotates among a pool of upstream proxy
// endpoints, scoring each by its recent success rate and recency of use,
// and banning ones that fail repeatedly (spec §4.10).
package proxy

import (
	"math/rand"
	"sync"
	"time"
)

// Strategy selects how NextProxy picks among the non-banned pool.
type Strategy string

const (
	StrategySequential      Strategy = "sequential"
	StrategyRandom          Strategy = "random"
	StrategySmart           Strategy = "smart"
	StrategyWeighted        Strategy = "weighted"
	StrategyRoundRobinSmart Strategy = "round_robin_smart"
)

type proxyState struct {
	endpoint    string
	successes   int
	failures    int
	bannedUntil time.Time
	lastUsed    time.Time
}

func (p *proxyState) isBanned(now time.Time) bool {
	return p.bannedUntil.After(now)
}

func (p *proxyState) score(now time.Time) float64 {
	total := p.successes + p.failures
	successRate := 1.0
	if total > 0 {
		successRate = float64(p.successes) / float64(total)
	}
	recency := 1.0
	if !p.lastUsed.IsZero() {
		elapsed := now.Sub(p.lastUsed).Seconds()
		recency = elapsed / 300
		if recency > 1.0 {
			recency = 1.0
		}
	}
	return 0.7*successRate + 0.3*recency
}

// Manager rotates among a fixed pool of proxy endpoints.
type Manager struct {
	mu               sync.Mutex
	strategy         Strategy
	banTime          time.Duration
	failureThreshold int
	proxies          []*proxyState
	seqIndex         int
}

// New constructs a Manager over the given endpoints.
func New(strategy Strategy, endpoints []string, banTime time.Duration, failureThreshold int) *Manager {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	proxies := make([]*proxyState, len(endpoints))
	for i, ep := range endpoints {
		proxies[i] = &proxyState{endpoint: ep}
	}
	return &Manager{
		strategy:         strategy,
		banTime:          banTime,
		failureThreshold: failureThreshold,
		proxies:          proxies,
	}
}

// NextProxy selects the next endpoint per the configured strategy,
// auto-unbanning any whose ban has expired. If every endpoint is currently
// banned, it force-unbans the one with the earliest expiry.
func (m *Manager) NextProxy() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.proxies) == 0 {
		return "", false
	}

	now := time.Now()
	available := m.availableLocked(now)
	if len(available) == 0 {
		earliest := m.earliestBanExpiryLocked()
		earliest.bannedUntil = time.Time{}
		available = []*proxyState{earliest}
	}

	chosen := m.pickLocked(available, now)
	chosen.lastUsed = now
	return chosen.endpoint, true
}

func (m *Manager) availableLocked(now time.Time) []*proxyState {
	out := make([]*proxyState, 0, len(m.proxies))
	for _, p := range m.proxies {
		if !p.isBanned(now) {
			out = append(out, p)
		}
	}
	return out
}

func (m *Manager) earliestBanExpiryLocked() *proxyState {
	earliest := m.proxies[0]
	for _, p := range m.proxies[1:] {
		if p.bannedUntil.Before(earliest.bannedUntil) {
			earliest = p
		}
	}
	return earliest
}

func (m *Manager) pickLocked(candidates []*proxyState, now time.Time) *proxyState {
	switch m.strategy {
	case StrategyRandom:
		return candidates[rand.Intn(len(candidates))]
	case StrategySmart:
		return argmaxScore(candidates, now)
	case StrategyWeighted:
		return weightedPick(candidates, now)
	case StrategyRoundRobinSmart:
		m.seqIndex = (m.seqIndex + 1) % len(candidates)
		return candidates[m.seqIndex]
	default: // StrategySequential
		m.seqIndex = (m.seqIndex + 1) % len(m.proxies)
		// sequential walks the full pool, not just the available subset, so
		// skip forward to the next non-banned entry.
		for i := 0; i < len(m.proxies); i++ {
			idx := (m.seqIndex + i) % len(m.proxies)
			if !m.proxies[idx].isBanned(now) {
				m.seqIndex = idx
				return m.proxies[idx]
			}
		}
		return candidates[0]
	}
}

func argmaxScore(candidates []*proxyState, now time.Time) *proxyState {
	best := candidates[0]
	bestScore := best.score(now)
	for _, p := range candidates[1:] {
		if s := p.score(now); s > bestScore {
			bestScore = s
			best = p
		}
	}
	return best
}

func weightedPick(candidates []*proxyState, now time.Time) *proxyState {
	total := 0.0
	scores := make([]float64, len(candidates))
	for i, p := range candidates {
		scores[i] = p.score(now)
		total += scores[i]
	}
	if total <= 0 {
		return candidates[rand.Intn(len(candidates))]
	}
	r := rand.Float64() * total
	cumulative := 0.0
	for i, s := range scores {
		cumulative += s
		if r <= cumulative {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// ReportFailure records a failure against endpoint, banning it for banTime
// each time its failure count reaches a multiple of failureThreshold.
func (m *Manager) ReportFailure(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.findLocked(endpoint)
	if p == nil {
		return
	}
	p.failures++
	if p.failures%m.failureThreshold == 0 {
		p.bannedUntil = time.Now().Add(m.banTime)
	}
}

// ReportSuccess records a success against endpoint and lifts any ban.
func (m *Manager) ReportSuccess(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.findLocked(endpoint)
	if p == nil {
		return
	}
	p.successes++
	p.failures = 0
	p.bannedUntil = time.Time{}
}

// NextAlternative returns a non-banned endpoint other than exclude, used by
// the access-denied handler to pick a replacement after retiring the
// current proxy.
func (m *Manager) NextAlternative(exclude string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var candidates []*proxyState
	for _, p := range m.proxies {
		if p.endpoint != exclude && !p.isBanned(now) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	chosen := argmaxScore(candidates, now)
	chosen.lastUsed = now
	return chosen.endpoint, true
}

func (m *Manager) findLocked(endpoint string) *proxyState {
	for _, p := range m.proxies {
		if p.endpoint == endpoint {
			return p
		}
	}
	return nil
}
