// Package timing computes a human-plausible delay ahead of each request,
// adapting to a per-domain rolling success rate, response latency, and an
// observed optimal delay, then damping the result by a time-of-day curve
// (spec §4.6).
package timing

import "time"

// ProfileName selects one of the four baked behavior profiles.
type ProfileName string

const (
	ProfileCasual   ProfileName = "casual"
	ProfileFocused  ProfileName = "focused"
	ProfileResearch ProfileName = "research"
	ProfileMobile   ProfileName = "mobile"
)

// Profile bounds and shapes the delay computation for one behavior class.
type Profile struct {
	Name                  ProfileName
	Base                  time.Duration
	Min                   time.Duration
	Max                   time.Duration
	Variance              float64 // fractional jitter, e.g. 0.2 -> uniform(0.8, 1.2)
	BurstThreshold         int
	CooldownMultiplier    float64
	SuccessRateThreshold  float64
}

// profiles is the fixed catalog; callers select by name, never construct
// their own.
var profiles = map[ProfileName]Profile{
	ProfileCasual: {
		Name: ProfileCasual, Base: 3 * time.Second, Min: 1 * time.Second, Max: 20 * time.Second,
		Variance: 0.35, BurstThreshold: 8, CooldownMultiplier: 2.0, SuccessRateThreshold: 0.7,
	},
	ProfileFocused: {
		Name: ProfileFocused, Base: 1200 * time.Millisecond, Min: 400 * time.Millisecond, Max: 8 * time.Second,
		Variance: 0.2, BurstThreshold: 20, CooldownMultiplier: 1.5, SuccessRateThreshold: 0.75,
	},
	ProfileResearch: {
		Name: ProfileResearch, Base: 6 * time.Second, Min: 2 * time.Second, Max: 45 * time.Second,
		Variance: 0.4, BurstThreshold: 5, CooldownMultiplier: 2.5, SuccessRateThreshold: 0.65,
	},
	ProfileMobile: {
		Name: ProfileMobile, Base: 2 * time.Second, Min: 800 * time.Millisecond, Max: 15 * time.Second,
		Variance: 0.3, BurstThreshold: 10, CooldownMultiplier: 1.8, SuccessRateThreshold: 0.7,
	},
}

// Lookup returns a named profile, defaulting to ProfileFocused for an
// unrecognized name.
func Lookup(name ProfileName) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	return profiles[ProfileFocused]
}

// methodMultiplier scales the base delay by the HTTP method's typical
// interaction weight.
func methodMultiplier(method string) float64 {
	switch method {
	case "POST", "PUT", "PATCH":
		return 1.35
	case "DELETE":
		return 0.9
	case "HEAD", "OPTIONS":
		return 0.6
	default:
		return 1.0
	}
}

// circadianMultiplier is a baked hour-of-day curve: daytime hours carry
// more natural human traffic and get a higher multiplier (shorter delay);
// deep night hours get a lower one.
var circadianByHour = [24]float64{
	0.55, 0.5, 0.45, 0.45, 0.5, 0.6, // 00-05
	0.75, 0.9, 1.05, 1.15, 1.2, 1.25, // 06-11
	1.3, 1.25, 1.2, 1.15, 1.15, 1.2, // 12-17
	1.15, 1.05, 0.95, 0.85, 0.7, 0.6, // 18-23
}

func circadianMultiplier(hour int) float64 {
	if hour < 0 || hour > 23 {
		return 1.0
	}
	return circadianByHour[hour]
}
