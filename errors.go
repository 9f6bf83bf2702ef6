package wraith

import "fmt"

// MitigationExhaustedError is returned when a request still needs
// mitigation after MaxChallengeAttempts tries (spec §5 "mitigation
// required but retries exhausted", §7), and also as soon as a mitigation
// plan says not to retry, with Attempts set to the attempt that produced
// that plan. Plan carries the last mitigation
// plan the orchestrator saw before its attempt budget ran out, so the
// caller can inspect why (spec §7 "final error carrying the plan for the
// caller's own handling"); it is nil only if the budget ran out without the
// loop ever reaching an OutcomeMitigation result.
type MitigationExhaustedError struct {
	Domain   string
	Attempts int
	Plan     *MitigationInfo
}

// MitigationInfo is a trimmed, dependency-free echo of the last
// challenge.MitigationPlan seen, so callers don't need to import the
// challenge package just to read a retry reason.
type MitigationInfo struct {
	Reason string
	Wait   string
}

func (e *MitigationExhaustedError) Error() string {
	if e.Plan != nil {
		return fmt.Sprintf("wraith: %s: mitigation required after %d attempts, last reason %q", e.Domain, e.Attempts, e.Plan.Reason)
	}
	return fmt.Sprintf("wraith: %s: challenge retries exhausted after %d attempts", e.Domain, e.Attempts)
}
