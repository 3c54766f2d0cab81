package arb

import "errors"

// Sentinel errors forming the closed taxonomy from the error-handling
// design: each stage produces one of these as a typed result rather than
// panicking or returning an opaque error.
var (
	// ErrProviderUnavailable is a transient provider error (timeout, 5xx).
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrRateLimited indicates the provider rejected the request with a
	// rate-limit signal (HTTP 429 or equivalent).
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidPair indicates the provider does not quote this pair.
	ErrInvalidPair = errors.New("invalid pair")
	// ErrStale indicates the provider returned a quote already past TTL.
	ErrStale = errors.New("stale quote")
	// ErrDataError indicates an unparseable response or an implausible price.
	ErrDataError = errors.New("data error")
	// ErrStaleOpportunity is C6's just-in-time abort.
	ErrStaleOpportunity = errors.New("stale opportunity")
	// ErrSubmissionRejected indicates a bundle/tx submission was rejected.
	ErrSubmissionRejected = errors.New("submission rejected")
	// ErrTimeout indicates a deadline elapsed before a terminal result.
	ErrTimeout = errors.New("timeout")
	// ErrConfiguration is fatal at startup, or rejects a reload.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvariantViolation marks an internal invariant violation that must
	// not terminate the process but must be logged with full context.
	ErrInvariantViolation = errors.New("internal invariant violation")
	// ErrInFlight indicates a second execution attempt for a candidate that
	// already has an in-flight plan.
	ErrInFlight = errors.New("candidate already has an in-flight execution")
)
