// Package risk implements the RiskGate: the veto interposed before every
// quote cycle, and the position-ratio arithmetic the inventory shaper and
// dashboard both read.
package risk

import (
	"perpmm/internal/config"
	"perpmm/pkg/types"
)

// Denial is the structured reason a quote cycle was vetoed.
type Denial struct {
	Reason string
	Detail string
}

// Decision is the result of canQuote: either allow, or deny with a reason.
type Decision struct {
	Allow bool
	Denial
}

// Gate evaluates quoting eligibility against a fixed, validated Config.
type Gate struct {
	cfg config.RiskConfig
}

// NewGate builds a Gate over the risk section of Config.
func NewGate(cfg config.RiskConfig) *Gate {
	return &Gate{cfg: cfg}
}

// Account is the minimal account state canQuote needs: leverage (used as
// margin fraction), balance, and the aggregate position book.
type Account struct {
	Leverage         float64
	Balance          types.Balance
	Position         types.Position
	TotalNotional     float64 // sum |size*entry| across all markets
}

// CanQuote runs the four ordered checks from spec §4.2. The first failing
// check short-circuits the rest.
func (g *Gate) CanQuote(acct Account) Decision {
	if !(acct.Leverage >= g.cfg.MinMarginFraction) {
		return Decision{Allow: false, Denial: Denial{
			Reason: "margin fraction too low",
			Detail: "leverage below risk.min_margin_fraction",
		}}
	}
	if !(acct.Balance.Available >= g.cfg.MinFreeCollateral) {
		return Decision{Allow: false, Denial: Denial{
			Reason: "insufficient free collateral",
			Detail: "available balance below risk.min_free_collateral",
		}}
	}
	marketNotional := abs(acct.Position.Size * acct.Position.EntryPrice)
	if !(marketNotional <= acct.Balance.Available*g.cfg.MaxExposurePerMarket) {
		return Decision{Allow: false, Denial: Denial{
			Reason: "per-market exposure exceeded",
			Detail: "position notional exceeds available*max_exposure_per_market",
		}}
	}
	if acct.TotalNotional > 0 {
		totalCollateral := acct.Balance.Total
		if totalCollateral == 0 {
			return Decision{Allow: false, Denial: Denial{
				Reason: "total exposure exceeded",
				Detail: "zero total collateral with non-zero exposure",
			}}
		}
		if !(acct.TotalNotional/totalCollateral <= g.cfg.MaxTotalExposure) {
			return Decision{Allow: false, Denial: Denial{
				Reason: "total exposure exceeded",
				Detail: "aggregate exposure ratio exceeds risk.max_total_exposure",
			}}
		}
	}
	return Decision{Allow: true}
}

// PositionRatio returns a signed, dimensionless measure of how full the
// per-market exposure budget is: (size*referencePrice) / (available*maxExposurePerMarket).
// Zero if there is no position or zero available collateral (denominator
// guarded rather than returning infinity, per spec §4.2).
func (g *Gate) PositionRatio(pos types.Position, available, referencePrice float64) float64 {
	denom := available * g.cfg.MaxExposurePerMarket
	if denom == 0 {
		return 0
	}
	return (pos.Size * referencePrice) / denom
}

// CancelAllFunc cancels every resting order at the venue for a market, or
// for every market when marketID is nil.
type CancelAllFunc func(marketID *int64) error

// EmergencyCancelAll instructs the venue to cancel every resting order.
// Used on shutdown and catastrophic failure.
func EmergencyCancelAll(cancel CancelAllFunc) error {
	return cancel(nil)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
