package session

import (
	"time"

	"github.com/hackwave/hackwave/pkg/types"
)

// Outcome is the fixed vocabulary session operations resolve to. Suspension
// and rate limiting are states to render, not errors to throw, so callers
// inspect the outcome instead of branching on error values.
type Outcome int

const (
	// OutcomeOK means the operation succeeded and the session is authenticated.
	OutcomeOK Outcome = iota
	// OutcomeMFARequired means credentials were accepted and a second factor
	// is pending.
	OutcomeMFARequired
	// OutcomeRejected means the server refused the credentials or code.
	OutcomeRejected
	// OutcomeSuspended means the account is banned; Result.Reason carries the
	// server-declared reason.
	OutcomeSuspended
	// OutcomeRateLimited means the server asked for a cool-down;
	// Result.RetryAfter says how long.
	OutcomeRateLimited
	// OutcomeSessionExpired means the pending MFA session lapsed and the user
	// must re-authenticate from the start.
	OutcomeSessionExpired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeMFARequired:
		return "mfa_required"
	case OutcomeRejected:
		return "rejected"
	case OutcomeSuspended:
		return "suspended"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeSessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// Result is the resolution of a login, registration or MFA verification.
type Result struct {
	Outcome    Outcome
	User       *types.User
	Message    string
	Reason     string
	RetryAfter time.Duration
}
