package solver

import (
	"context"
	"time"

	"wraith/challenge"
)

// BotManagement handles the 1010 error page: it requires a host, records
// the domain failure, and rotates whichever of the fingerprint/TLS
// adaptive components are wired, reporting in its plan metadata whether
// each rotation actually happened (spec §4.2.7).
type BotManagement struct {
	Recorder    FailureRecorder
	Fingerprint FingerprintInvalidator
	TLS         TLSRotator
}

func (s *BotManagement) Name() string { return "bot_management" }

func (s *BotManagement) Solve(ctx context.Context, resp *challenge.Response, det *challenge.Detection) (*Result, error) {
	host, err := hostOf(resp.URL)
	if err != nil {
		return nil, &challenge.MissingHostError{}
	}

	if s.Recorder != nil {
		s.Recorder.RecordFailure(host, "cf_bot_management")
	}

	fingerprintRotated := false
	if s.Fingerprint != nil {
		fingerprintRotated = s.Fingerprint.Invalidate(host)
	}
	tlsRotated := false
	if s.TLS != nil {
		tlsRotated = s.TLS.RotateProfile(host)
	}

	return &Result{Mitigation: &challenge.MitigationPlan{
		ShouldRetry: true,
		Wait:        uniformDuration(30*time.Second, 60*time.Second),
		Reason:      "cf_bot_management",
		Metadata: map[string]string{
			"fingerprint_rotated": boolString(fingerprintRotated),
			"tls_rotated":         boolString(tlsRotated),
		},
	}}, nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
