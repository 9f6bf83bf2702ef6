// Package antidetect mutates outgoing request headers and tracks per-domain
// burst/failure signals to avoid presenting a detectably uniform request
// pattern (spec §4.7).
package antidetect

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	latencyCap        = 32
	headerJitterOdds  = 0.30
	minNoiseHeaders   = 1
	maxNoiseHeaders   = 3
)

var targetHeaders = []string{
	"accept-language",
	"sec-fetch-mode",
	"sec-fetch-site",
	"sec-fetch-dest",
}

// Config bounds one AntiDetect instance's burst/cooldown behavior.
type Config struct {
	BurstWindow     time.Duration
	MaxPerWindow    int
	FailureCooldown time.Duration
}

// DefaultConfig mirrors a conservative human browsing cadence: no more than
// 12 requests inside a 10-second window before backing off.
func DefaultConfig() Config {
	return Config{
		BurstWindow:     10 * time.Second,
		MaxPerWindow:    12,
		FailureCooldown: 30 * time.Second,
	}
}

type domainState struct {
	timestamps    []time.Time
	failureStreak int
	cooldownUntil time.Time
	latencies     []time.Duration
	salt          string
	limiter       *rate.Limiter
}

// PrepareResult is what PrepareRequest hands back: headers to overlay onto
// the outgoing request, an optional delay floor, and metadata for
// observability.
type PrepareResult struct {
	Headers   map[string]string
	DelayHint time.Duration
	Metadata  map[string]string
}

// AntiDetect tracks per-domain burst and failure state and jitters request
// headers to avoid a uniform fingerprint.
type AntiDetect struct {
	mu      sync.Mutex
	cfg     Config
	domains map[string]*domainState
}

// New constructs an AntiDetect with the given config.
func New(cfg Config) *AntiDetect {
	return &AntiDetect{cfg: cfg, domains: make(map[string]*domainState)}
}

// PrepareRequest records the attempt, applies cooldown/burst back-pressure,
// and jitters a subset of headers plus noise headers.
func (a *AntiDetect) PrepareRequest(domain string, bodySize int, now time.Time) PrepareResult {
	a.mu.Lock()
	state, ok := a.domains[domain]
	if !ok {
		state = &domainState{salt: randomHex(8), limiter: a.newLimiter()}
		a.domains[domain] = state
	}

	state.timestamps = append(state.timestamps, now)
	cutoff := now.Add(-a.cfg.BurstWindow)
	pruned := state.timestamps[:0]
	for _, ts := range state.timestamps {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	state.timestamps = pruned

	var delayHint time.Duration
	if len(state.timestamps) > a.cfg.MaxPerWindow {
		delayHint = a.cfg.FailureCooldown
	}
	// Secondary fast-path: a token-bucket check that catches tight bursts the
	// timestamp deque hasn't pruned into view yet. Its wait is capped at the
	// failure cooldown, so a burst never hints longer than the cooldown.
	if res := state.limiter.ReserveN(now, 1); res.OK() {
		wait := res.DelayFrom(now)
		if wait > a.cfg.FailureCooldown {
			wait = a.cfg.FailureCooldown
		}
		if wait > delayHint {
			delayHint = wait
		}
	}
	if now.Before(state.cooldownUntil) {
		if remaining := state.cooldownUntil.Sub(now); remaining > delayHint {
			delayHint = remaining
		}
	}
	salt := state.salt
	a.mu.Unlock()

	headers := map[string]string{}
	for _, h := range targetHeaders {
		if mrand.Float64() < headerJitterOdds {
			headers[h] = saltedValue(salt, h)
		}
	}

	noiseCount := minNoiseHeaders + mrand.Intn(maxNoiseHeaders-minNoiseHeaders+1)
	for i := 0; i < noiseCount; i++ {
		name := "x-cf-client-" + randomHex(3)
		headers[name] = fmt.Sprintf("%d-%d", mrand.Int63(), bodySize)
	}

	jitterToken := randomHex(8)

	return PrepareResult{
		Headers:   headers,
		DelayHint: delayHint,
		Metadata:  map[string]string{"jitter_token": jitterToken},
	}
}

// RecordResponse folds a completed request's outcome into the domain's
// failure streak and cooldown.
func (a *AntiDetect) RecordResponse(domain string, status int, latency time.Duration, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.domains[domain]
	if !ok {
		state = &domainState{salt: randomHex(8), limiter: a.newLimiter()}
		a.domains[domain] = state
	}

	state.latencies = append(state.latencies, latency)
	if len(state.latencies) > latencyCap {
		state.latencies = state.latencies[len(state.latencies)-latencyCap:]
	}

	if status >= 500 {
		state.failureStreak++
		state.cooldownUntil = now.Add(a.cfg.FailureCooldown)
	} else {
		state.failureStreak = 0
	}
}

// newLimiter builds a token bucket matching the domain's configured burst
// budget: MaxPerWindow tokens refilling over BurstWindow.
func (a *AntiDetect) newLimiter() *rate.Limiter {
	window := a.cfg.BurstWindow
	if window <= 0 {
		window = time.Second
	}
	limit := rate.Limit(float64(a.cfg.MaxPerWindow) / window.Seconds())
	burst := a.cfg.MaxPerWindow
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(limit, burst)
}

func saltedValue(salt, header string) string {
	return salt + "-" + randomHex(4) + "-" + header
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing is effectively unrecoverable on this host;
		// fall back to a fixed marker rather than panic on a cosmetic header.
		return "deadbeef"
	}
	return hex.EncodeToString(b)
}
