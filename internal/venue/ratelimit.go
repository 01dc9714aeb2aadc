package venue

import (
	"golang.org/x/time/rate"
)

// Limits groups per-category rate limiters, the same three categories the
// teacher throttles (order placement, cancellation, book reads), now backed
// by golang.org/x/time/rate instead of a hand-rolled token bucket.
type Limits struct {
	Order  *rate.Limiter
	Cancel *rate.Limiter
	Book   *rate.Limiter
}

// NewLimits builds one limiter per category, each a steady per-second rate
// plus a burst: orders 50/s (burst 350), cancels 30/s (burst 300), book
// reads 15/s (burst 150).
func NewLimits() *Limits {
	return &Limits{
		Order:  rate.NewLimiter(rate.Limit(50), 350),
		Cancel: rate.NewLimiter(rate.Limit(30), 300),
		Book:   rate.NewLimiter(rate.Limit(15), 150),
	}
}
