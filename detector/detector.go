package detector

import (
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"wraith/challenge"
)

const (
	historyCap        = 1000
	confidenceMin     = 0.5
	learnedRateWeight = 0.1
)

var candidateStatuses = map[int]bool{403: true, 429: true, 503: true}

type patternStat struct {
	successes uint64
	attempts  uint64
}

func (s *patternStat) rate() float64 {
	if s.attempts == 0 {
		return 0
	}
	return float64(s.successes) / float64(s.attempts)
}

// saturatingIncrement bumps a counter by 1 unless it is already at its
// unsigned max, in which case it is left alone. Whether stats should decay
// over time is an open question the spec leaves unresolved (spec §9); this
// module does not decay them.
func saturatingIncrement(v *uint64) {
	if *v == math.MaxUint64 {
		return
	}
	*v++
}

// Detector pattern-matches responses against the static catalog plus any
// adaptive patterns registered for a specific domain, and records a bounded
// history of its own detections.
type Detector struct {
	mu       sync.Mutex
	patterns []Pattern
	adaptive map[string][]Pattern // domain -> patterns scoped to it
	stats    map[string]*patternStat
	history  []challenge.Detection
	log      *zap.Logger
}

// New constructs a Detector seeded with the static catalog. A nil logger is
// replaced with a no-op logger.
func New(log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{
		patterns: Catalog(),
		adaptive: make(map[string][]Pattern),
		stats:    make(map[string]*patternStat),
		log:      log,
	}
}

// AddAdaptivePattern registers a pattern that only participates in
// evaluation for the given domain.
func (d *Detector) AddAdaptivePattern(domain string, p Pattern) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adaptive[domain] = append(d.adaptive[domain], p)
}

// Detect evaluates a response, returning the highest-confidence detection
// among all candidate patterns, or (nil, nil) if the response isn't a
// Cloudflare challenge candidate or no pattern clears the confidence floor.
func (d *Detector) Detect(resp *challenge.Response, domain string) (*challenge.Detection, error) {
	if resp == nil {
		return nil, nil
	}
	if !isCandidate(resp) {
		return nil, nil
	}

	body := strings.ToLower(resp.Body)

	d.mu.Lock()
	candidates := make([]Pattern, 0, len(d.patterns)+len(d.adaptive[domain]))
	candidates = append(candidates, d.patterns...)
	candidates = append(candidates, d.adaptive[domain]...)
	stats := d.stats
	d.mu.Unlock()

	var best *challenge.Detection
	bestConfidence := -1.0

	for _, p := range candidates {
		matches := 0
		for _, re := range p.Regexes {
			if re.MatchString(body) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}

		total := len(p.Regexes)
		learnedRate := 0.0
		d.mu.Lock()
		if st, ok := stats[p.ID]; ok {
			learnedRate = st.rate()
		}
		d.mu.Unlock()

		confidence := (float64(matches)/float64(total))*p.BaseConfidence + learnedRateWeight*learnedRate
		if confidence > 1.0 {
			confidence = 1.0
		}
		if confidence < confidenceMin {
			continue
		}

		if confidence > bestConfidence {
			bestConfidence = confidence
			det := &challenge.Detection{
				PatternID:  p.ID,
				Name:       p.Name,
				Kind:       p.Kind,
				Strategy:   p.Strategy,
				Confidence: confidence,
				IsAdaptive: isAdaptivePattern(p, d.patterns),
				Indicators: matchedIndicators(p, body),
				SourceURL:  resp.URL,
				StatusCode: resp.StatusCode,
			}
			best = det
		}
	}

	if best == nil {
		d.log.Debug("no challenge detected", zap.String("domain", domain), zap.Int("status", resp.StatusCode))
		return nil, nil
	}

	d.mu.Lock()
	d.history = append(d.history, *best)
	if len(d.history) > historyCap {
		d.history = d.history[len(d.history)-historyCap:]
	}
	d.mu.Unlock()

	d.log.Info("challenge detected",
		zap.String("pattern_id", best.PatternID),
		zap.String("kind", string(best.Kind)),
		zap.Float64("confidence", best.Confidence),
		zap.String("domain", domain))

	return best, nil
}

func isAdaptivePattern(p Pattern, staticPatterns []Pattern) bool {
	for _, s := range staticPatterns {
		if s.ID == p.ID {
			return false
		}
	}
	return true
}

func matchedIndicators(p Pattern, body string) []string {
	var out []string
	for _, re := range p.Regexes {
		if re.MatchString(body) {
			out = append(out, re.String())
		}
	}
	return out
}

func isCandidate(resp *challenge.Response) bool {
	server := resp.HeaderGet("Server")
	if !strings.HasPrefix(strings.ToLower(server), "cloudflare") {
		return false
	}
	return candidateStatuses[resp.StatusCode]
}

// LearnFromOutcome updates a pattern's running success/attempt counters
// after the caller has resolved whether a detection led to a successful
// bypass. Counters saturate at their unsigned max rather than overflow.
func (d *Detector) LearnFromOutcome(patternID string, success bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.stats[patternID]
	if !ok {
		st = &patternStat{}
		d.stats[patternID] = st
	}
	saturatingIncrement(&st.attempts)
	if success {
		saturatingIncrement(&st.successes)
	}
}

// History returns a copy of the bounded detection history, most recent
// last.
func (d *Detector) History() []challenge.Detection {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]challenge.Detection, len(d.history))
	copy(out, d.history)
	return out
}
