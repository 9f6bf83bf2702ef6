package timing

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	emaAlpha              = 0.1
	consecutiveFailureCap = 5
	recentDelaysCap       = 32
	globalHistoryCap      = 256
)

// Outcome is the feedback a completed request reports back to adaptive
// timing: whether it succeeded, how long the network round trip took, and
// what delay was actually applied ahead of it.
type Outcome struct {
	Success      bool
	ResponseTime time.Duration
	AppliedDelay time.Duration
}

type domainState struct {
	successRate     float64
	avgResponseTime float64 // seconds
	consecutiveFailures int
	optimalDelay        *float64 // seconds; nil until observed
	recentDelays        []float64
	lastRequestAt       time.Time
}

func newDomainState() *domainState {
	return &domainState{successRate: 1.0, avgResponseTime: 1.0}
}

// Timing computes adaptive per-request delays for one behavior profile,
// tracking rolling state per domain plus a bounded global outcome history.
type Timing struct {
	mu      sync.Mutex
	profile Profile
	domains map[string]*domainState
	history []Outcome
}

// New constructs a Timing engine bound to the named profile.
func New(profileName ProfileName) *Timing {
	return &Timing{
		profile: Lookup(profileName),
		domains: make(map[string]*domainState),
	}
}

// Delay computes the effective delay for the next request to domain, given
// the HTTP method and the prospective request body size (used for a
// reading-time floor on larger payload pages).
func (t *Timing) Delay(method, domain string, bodySize int, now time.Time) time.Duration {
	t.mu.Lock()
	state, ok := t.domains[domain]
	if !ok {
		state = newDomainState()
		t.domains[domain] = state
	}
	profile := t.profile
	successRate := state.successRate
	consecutiveFailures := state.consecutiveFailures
	var optimalDelay *float64
	if state.optimalDelay != nil {
		v := *state.optimalDelay
		optimalDelay = &v
	}
	avgResponseTime := state.avgResponseTime
	lastRequestAt := state.lastRequestAt
	t.mu.Unlock()

	delaySeconds := profile.Base.Seconds() * methodMultiplier(method)
	delaySeconds *= uniformFloat(1-profile.Variance, 1+profile.Variance)

	if successRate < profile.SuccessRateThreshold {
		delaySeconds *= 1 + (profile.SuccessRateThreshold - successRate)
	}
	if consecutiveFailures > 0 {
		delaySeconds *= 1 + 0.2*float64(consecutiveFailures)
	}
	if optimalDelay != nil {
		delaySeconds = 0.8*delaySeconds + 0.2*(*optimalDelay)
	}
	delaySeconds *= clampFloat(avgResponseTime, 0.6, 1.5)

	if bodySize > 500 {
		words := float64(bodySize) / 5
		wpm := uniformFloat(200, 300)
		readingTime := (words / wpm) * 60
		processing := uniformFloat(0.5, 2.0)
		if floor := readingTime + processing; delaySeconds < floor {
			delaySeconds = floor
		}
	}

	delaySeconds += uniformFloat(0.15, 0.4)
	if rand.Float64() < 0.05 {
		delaySeconds += uniformFloat(5, 60)
	}

	circadian := circadianMultiplier(now.Hour())
	delaySeconds /= math.Max(0.2, circadian)

	minSpacing := 0.6 * profile.Min.Seconds()
	if !lastRequestAt.IsZero() {
		sinceLast := now.Sub(lastRequestAt).Seconds()
		if sinceLast < minSpacing {
			delaySeconds = math.Max(delaySeconds, minSpacing-sinceLast)
		}
	}

	delaySeconds = clampFloat(delaySeconds, profile.Min.Seconds(), profile.Max.Seconds())

	t.mu.Lock()
	state.lastRequestAt = now
	t.mu.Unlock()

	return time.Duration(delaySeconds * float64(time.Second))
}

// RecordOutcome folds a completed request's result into the domain's
// rolling state and the bounded global history.
func (t *Timing) RecordOutcome(domain string, outcome Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.domains[domain]
	if !ok {
		state = newDomainState()
		t.domains[domain] = state
	}

	successValue := 0.0
	if outcome.Success {
		successValue = 1.0
	}
	state.successRate = ema(state.successRate, successValue, emaAlpha)
	state.avgResponseTime = ema(state.avgResponseTime, outcome.ResponseTime.Seconds(), emaAlpha)

	if outcome.Success {
		state.consecutiveFailures = 0
		delaySeconds := outcome.AppliedDelay.Seconds()
		if state.optimalDelay == nil {
			v := delaySeconds
			state.optimalDelay = &v
		} else {
			v := ema(*state.optimalDelay, delaySeconds, emaAlpha)
			state.optimalDelay = &v
		}
	} else if state.consecutiveFailures < consecutiveFailureCap {
		state.consecutiveFailures++
	}

	state.recentDelays = append(state.recentDelays, outcome.AppliedDelay.Seconds())
	if len(state.recentDelays) > recentDelaysCap {
		state.recentDelays = state.recentDelays[len(state.recentDelays)-recentDelaysCap:]
	}

	t.history = append(t.history, outcome)
	if len(t.history) > globalHistoryCap {
		t.history = t.history[len(t.history)-globalHistoryCap:]
	}
}

// History returns a copy of the bounded global outcome history.
func (t *Timing) History() []Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Outcome, len(t.history))
	copy(out, t.history)
	return out
}

func ema(prev, sample, alpha float64) float64 {
	return alpha*sample + (1-alpha)*prev
}

func uniformFloat(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + rand.Float64()*(max-min)
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
