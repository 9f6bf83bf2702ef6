// Package wraith wires the detector, solvers, and every adaptive
// subsystem (proxy rotation, timing, fingerprinting, TLS profiles,
// anti-detection, state, ML, metrics) into a single client-facing Do call
// that transparently negotiates Cloudflare's anti-automation defenses
// (spec §4.5).
package wraith

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"wraith/antidetect"
	"wraith/captcha"
	"wraith/challenge"
	"wraith/detector"
	"wraith/events"
	"wraith/fingerprint"
	"wraith/jsengine"
	"wraith/metrics"
	"wraith/ml"
	"wraith/performance"
	"wraith/pipeline"
	"wraith/proxy"
	"wraith/solver"
	"wraith/state"
	"wraith/timing"
	"wraith/tlsprofile"
	"wraith/transport"
	"wraith/useragent"
)

// Scraper is the client-facing entrypoint: construct one with New and call
// Do for every request. A Scraper is safe for concurrent use.
type Scraper struct {
	cfg Config
	log *zap.Logger

	detector *detector.Detector

	proxy       *proxy.Manager
	fingerprint *fingerprint.Generator
	tls         *tlsprofile.Manager
	antidetect  *antidetect.AntiDetect
	timing      *timing.Timing
	state       *state.Manager
	ml          *ml.Optimizer
	metrics     *metrics.Collector
	performance *performance.Monitor
	events      *events.Dispatcher
	catalog     *useragent.Catalog

	captcha     captcha.Provider
	interpreter jsengine.Interpreter

	clients *clientPool

	// prepMu is the coarse lock (spec §5): it guards only request
	// preparation (fingerprint pick, anti-detection mutation, proxy pick,
	// timing delay), never a sleep or an I/O call. Pipeline evaluation and
	// solver dispatch run outside it — solver.Solve can itself suspend on
	// captcha/interpreter I/O, so each adaptive component's own internal
	// mutex plus solver statelessness carries correctness there instead.
	prepMu sync.Mutex
}

// New constructs a Scraper from cfg. cfg is normalized in place (zero
// values get sane defaults).
func New(cfg Config) (*Scraper, error) {
	cfg.normalize()

	var catalog *useragent.Catalog
	if cfg.UserAgentCatalogPath != "" {
		c, err := useragent.Load(cfg.UserAgentCatalogPath)
		if err != nil {
			return nil, fmt.Errorf("wraith: loading user-agent catalog: %w", err)
		}
		catalog = c
	}

	s := &Scraper{
		cfg:         cfg,
		log:         cfg.Logger,
		detector:    detector.New(cfg.Logger),
		proxy:       proxy.New(cfg.ProxyConfig.Strategy, cfg.Proxies, cfg.ProxyConfig.BanTime, cfg.ProxyConfig.FailureThreshold),
		fingerprint: fingerprint.New(cfg.SpoofingConsistency),
		tls:         tlsprofile.New(),
		antidetect:  antidetect.New(antidetect.DefaultConfig()),
		timing:      timing.New(cfg.BehaviorProfile),
		state:       state.New(),
		ml:          ml.New(200, 10, 0.1),
		metrics:     metrics.New(nil),
		performance: performance.New(performance.DefaultConfig()),
		events:      events.NewDispatcher(),
		catalog:     catalog,
		captcha:     cfg.Captcha,
		interpreter: cfg.Interpreter,
		clients:     newClientPool(30 * time.Second, cfg.Transport),
	}

	return s, nil
}

// Events returns the Scraper's event dispatcher so callers can register
// observers before issuing requests.
func (s *Scraper) Events() *events.Dispatcher { return s.events }

// Metrics returns a snapshot of the Scraper's counters plus domain's
// rolling latency figures.
func (s *Scraper) Metrics(domain string) metrics.Snapshot { return s.metrics.Snapshot(domain) }

func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("wraith: parsing url %q: %w", rawURL, err)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("wraith: url %q has no host", rawURL)
	}
	return parsed.Hostname(), nil
}

// Do issues one logical request to rawURL, transparently solving any
// Cloudflare challenge encountered along the way, up to
// cfg.MaxChallengeAttempts tries.
func (s *Scraper) Do(ctx context.Context, method, rawURL string, body []byte) (*transport.HTTPResponse, error) {
	domain, err := hostOf(rawURL)
	if err != nil {
		return nil, err
	}

	headers := s.baseHeaders(domain)
	proxyEndpoint := ""

	var resp *transport.HTTPResponse
	var latency time.Duration
	var lastPlan *challenge.MitigationPlan
	needSend := true
	currentMethod, currentBody := method, body

	for attempt := 1; attempt <= s.cfg.MaxChallengeAttempts; attempt++ {
		if needSend {
			r, ep, lat, err := s.sendOnce(ctx, domain, currentMethod, rawURL, currentBody, headers, attempt)
			if err != nil {
				s.onFailure(domain, "transport_error", latency)
				return nil, err
			}
			resp, proxyEndpoint, latency = r, ep, lat
		}
		needSend = true

		cresp := &challenge.Response{
			URL:        firstNonEmpty(resp.FinalURL, rawURL),
			StatusCode: resp.StatusCode,
			Header:     resp.Headers,
			Body:       string(resp.Body),
			Method:     currentMethod,
		}

		registry := s.registryFor(proxyEndpoint)
		pl := pipeline.New(s.detector, registry)
		result := pl.Evaluate(ctx, cresp, domain)

		switch result.Outcome {
		case pipeline.OutcomeNoChallenge:
			s.onSuccess(domain, latency)
			return resp, nil

		case pipeline.OutcomeSubmission:
			client, cerr := s.clients.Get(proxyEndpoint)
			if cerr != nil {
				return nil, cerr
			}
			execResp, execErr := pipeline.NewExecutor(client).Execute(ctx, result.Submission, pipeline.RequestDescriptor{
				Method:  currentMethod,
				URL:     rawURL,
				Headers: headers,
				Body:    currentBody,
			})
			solved := execErr == nil
			if result.Detection != nil {
				s.detector.LearnFromOutcome(result.Detection.PatternID, solved)
				s.metrics.RecordChallenge(string(result.Detection.Kind), solved)
			}
			if execErr != nil {
				s.onFailure(domain, submissionFailureReason(execErr), latency)
				return nil, execErr
			}
			// spec §4.5 step 4: a submission terminates the request loop —
			// return the executed response directly, success iff its status
			// is below 500, rather than feeding it back through another
			// pipeline evaluation.
			if execResp.StatusCode < 500 {
				s.onSuccess(domain, latency)
			} else {
				s.onFailure(domain, fmt.Sprintf("status_%d", execResp.StatusCode), latency)
			}
			return execResp, nil

		case pipeline.OutcomeMitigation:
			plan := result.Mitigation
			lastPlan = plan
			if result.Detection != nil {
				s.metrics.RecordChallenge(string(result.Detection.Kind), false)
			}
			s.onFailure(domain, fmt.Sprintf("status_%d", resp.StatusCode), latency)
			if !plan.ShouldRetry {
				return nil, &MitigationExhaustedError{
					Domain: domain, Attempts: attempt,
					Plan: &MitigationInfo{Reason: plan.Reason, Wait: plan.Wait.String()},
				}
			}
			if plan.NewProxy != "" {
				proxyEndpoint = plan.NewProxy
			}
			for k, v := range plan.Headers {
				headers[k] = v
			}
			if plan.Wait > 0 {
				select {
				case <-time.After(plan.Wait):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			continue

		default: // OutcomeUnsupported, OutcomeFailed
			s.onFailure(domain, fmt.Sprintf("status_%d", resp.StatusCode), latency)
			return nil, result.Err
		}
	}

	exhausted := &MitigationExhaustedError{Domain: domain, Attempts: s.cfg.MaxChallengeAttempts}
	if lastPlan != nil {
		exhausted.Plan = &MitigationInfo{Reason: lastPlan.Reason, Wait: lastPlan.Wait.String()}
	}
	return nil, exhausted
}

// submissionFailureReason tags a submission-execution failure with the
// spec §4.5 step-5 "status_<code>" form when the error carries a concrete
// HTTP status (e.g. the 400 invalid-answer case), falling back to a plain
// label for transport-level failures that have no status at all.
func submissionFailureReason(err error) string {
	var invalidAnswer *challenge.InvalidAnswerError
	if errors.As(err, &invalidAnswer) {
		return fmt.Sprintf("status_%d", invalidAnswer.StatusCode)
	}
	return "submission_failed"
}

// sendOnce performs the prepare → delay → send → feedback-bookkeeping
// cycle for one physical HTTP request.
func (s *Scraper) sendOnce(ctx context.Context, domain, method, rawURL string, body []byte, headers map[string]string, attempt int) (*transport.HTTPResponse, string, time.Duration, error) {
	merged, proxyEndpoint, delay := s.prepare(domain, method, len(body), headers)

	s.events.Emit(events.Event{Type: events.TypePreRequest, Domain: domain, Method: method, URL: rawURL, Attempt: attempt})

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, proxyEndpoint, 0, ctx.Err()
		}
	}

	client, err := s.clients.Get(proxyEndpoint)
	if err != nil {
		return nil, proxyEndpoint, 0, err
	}

	start := time.Now()
	resp, err := client.SendBody(ctx, method, rawURL, merged, body, false)
	latency := time.Since(start)

	if err != nil {
		if proxyEndpoint != "" {
			s.proxy.ReportFailure(proxyEndpoint)
		}
		s.log.Warn("request failed", zap.String("domain", domain), zap.Error(err))
		return nil, proxyEndpoint, latency, err
	}

	if proxyEndpoint != "" {
		s.proxy.ReportSuccess(proxyEndpoint)
	}

	s.state.MarkRequest(domain, start, 10*time.Second, delay)
	s.antidetect.RecordResponse(domain, resp.StatusCode, latency, time.Now())
	s.metrics.RecordLatency(domain, latency.Seconds())
	s.events.Emit(events.Event{Type: events.TypePostResponse, Domain: domain, Method: method, URL: rawURL, StatusCode: resp.StatusCode, Attempt: attempt})

	return resp, proxyEndpoint, latency, nil
}

// prepare composes the headers, proxy endpoint, and delay for the next
// physical request, guarded by the coarse prep lock.
func (s *Scraper) prepare(domain, method string, bodySize int, base map[string]string) (map[string]string, string, time.Duration) {
	s.prepMu.Lock()
	defer s.prepMu.Unlock()

	merged := make(map[string]string, len(base)+4)
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range s.state.StickyHeaders(domain) {
		merged[k] = v
	}

	if s.cfg.Features.Spoofing {
		fp := s.fingerprint.Get(domain)
		merged["User-Agent"] = fp.UserAgent
		merged["Accept-Language"] = fp.AcceptLanguage
	}

	if s.cfg.Features.TLS {
		profile := s.tls.CurrentProfile(domain)
		merged["X-Wraith-TLS-Profile"] = profile.Name
	}

	proxyEndpoint := ""
	if len(s.cfg.Proxies) > 0 {
		if ep, ok := s.proxy.NextProxy(); ok {
			proxyEndpoint = ep
		}
	}

	var delay time.Duration
	now := time.Now()
	if s.cfg.Features.AntiDetection {
		ad := s.antidetect.PrepareRequest(domain, bodySize, now)
		for k, v := range ad.Headers {
			merged[k] = v
		}
		delay = ad.DelayHint
	}

	if s.cfg.Features.AdaptiveTiming {
		timingDelay := s.timing.Delay(method, domain, bodySize, now)
		if timingDelay > delay {
			delay = timingDelay
		}
	}

	if s.cfg.Features.ML {
		rec := s.ml.Recommend(domain)
		if rec.Ok && rec.Delay != nil {
			mlDelay := time.Duration(*rec.Delay * float64(time.Second))
			delay = time.Duration(0.7*float64(delay) + 0.3*float64(mlDelay))
		}
	}

	return merged, proxyEndpoint, delay
}

func (s *Scraper) baseHeaders(domain string) map[string]string {
	headers := make(map[string]string, len(s.cfg.BaseHeaders)+4)
	for k, v := range s.cfg.BaseHeaders {
		headers[k] = v
	}
	if s.catalog != nil && s.cfg.UserAgent.Platform != "" {
		if h, err := s.catalog.Select(s.cfg.UserAgent); err == nil {
			headers["User-Agent"] = h.UserAgent
			headers["Accept"] = h.Accept
			headers["Accept-Language"] = h.AcceptLanguage
			headers["Accept-Encoding"] = h.AcceptEncoding
		}
	}
	return headers
}

// registryFor builds a fresh solver registry bound to the proxy endpoint in
// play for this attempt. Solvers stay stateless value structs (spec §9 "no
// solver owns state") — building one per attempt, instead of mutating a
// shared AccessDenied.CurrentProxy field, keeps that invariant intact under
// concurrent Do calls against different proxies.
func (s *Scraper) registryFor(proxyEndpoint string) *solver.Registry {
	r := solver.NewRegistry()
	r.Register(challenge.KindJavaScriptV1, &solver.JavaScriptV1{Interpreter: s.interpreter})
	r.Register(challenge.KindJavaScriptV2, &solver.JavaScriptV2{MinWait: 4 * time.Second, MaxWait: 6 * time.Second})
	r.Register(challenge.KindManagedV3, &solver.ManagedV3{Interpreter: s.interpreter, Captcha: s.captcha})
	r.Register(challenge.KindTurnstile, &solver.Turnstile{Captcha: s.captcha})
	r.Register(challenge.KindRateLimit, &solver.RateLimit{Recorder: s.state})
	r.Register(challenge.KindAccessDenied, &solver.AccessDenied{Proxy: s.proxy, Recorder: s.state, CurrentProxy: proxyEndpoint})
	r.Register(challenge.KindBotManagement, &solver.BotManagement{Recorder: s.state, Fingerprint: s.fingerprint, TLS: s.tls})
	return r
}

func (s *Scraper) onSuccess(domain string, latency time.Duration) {
	s.state.RecordOutcome(domain, true, "", latency)
	s.timing.RecordOutcome(domain, timing.Outcome{Success: true, ResponseTime: latency})
	s.ml.Record(domain, mlFeatures(latency), true, &latency)
	s.metrics.RecordRequest("success")
	s.reportPerformance(domain, latency, true)
}

func (s *Scraper) onFailure(domain, reason string, latency time.Duration) {
	s.state.RecordOutcome(domain, false, reason, latency)
	s.timing.RecordOutcome(domain, timing.Outcome{Success: false, ResponseTime: latency})
	s.ml.Record(domain, mlFeatures(latency), false, &latency)
	s.metrics.RecordRequest("failed")
	s.events.Emit(events.Event{Type: events.TypeError, Domain: domain, Metadata: map[string]string{"reason": reason}})
	s.reportPerformance(domain, latency, false)
}

// reportPerformance folds the outcome into the rolling performance monitor
// and, once it has warmed up past its minimum sample count, logs and emits
// an event for every alert it surfaces (spec §4.5 "performance monitor may
// surface alerts").
func (s *Scraper) reportPerformance(domain string, latency time.Duration, success bool) {
	if !s.cfg.Features.Performance {
		return
	}
	report, ok := s.performance.Record(domain, latency, success)
	if !ok {
		return
	}
	for _, alert := range report.Alerts {
		s.log.Warn("performance alert", zap.String("domain", domain), zap.String("alert", alert))
		s.events.Emit(events.Event{Type: events.TypeError, Domain: domain, Metadata: map[string]string{"performance_alert": alert}})
	}
}

func mlFeatures(latency time.Duration) map[string]float64 {
	return map[string]float64{"latency_seconds": latency.Seconds()}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
