package domain

import "github.com/pkg/errors"

// Sentinel errors surfaced by the planner and rebalance engine. Callers are
// expected to test with errors.Is; wrapping adds request context only.
var (
	// ErrInvalidRequest malformed input: zero asset, zero amount, zero period
	// count or a health-factor target below the configured minimum. Never
	// coerced into a null plan.
	ErrInvalidRequest = errors.New("invalid conversion request")

	// ErrHealthFactorViolation a rebalance action would degrade the health
	// factor of an already-healthy position beyond the configured tolerance.
	ErrHealthFactorViolation = errors.New("wrong health factor")

	// ErrMarketNotFound the requested asset has no registered market. The
	// planner maps this to a null plan; providers surface it as-is.
	ErrMarketNotFound = errors.New("market not found")
)
