// Package inventory implements the InventoryShaper (C5): combining
// position-derived skew and per-market bias into a symmetric price
// adjustment, and the hedge-trigger check.
//
// Grounded on the teacher's strategy.Inventory — specifically its
// NetDelta/weighted-average-entry bookkeeping pattern — generalized from a
// YES/NO token pair to a single signed position.
package inventory

import (
	"perpmm/internal/config"
	"perpmm/internal/risk"
	"perpmm/pkg/types"
)

// Shape is the output of Shaper.Shape.
type Shape struct {
	BidPrice      float64
	AskPrice      float64
	SkewFactor    float64
	Bias          float64
	PositionRatio float64
}

// Shaper combines RiskGate.positionRatio with the configured skew/bias
// rules. The skew-disabled and skew-enabled branches intentionally use
// different compositions (additive vs multiplicative) per spec §9's
// "bias sign convention" design note — this asymmetry is preserved exactly,
// not "fixed."
type Shaper struct {
	cfg  *config.Config
	gate *risk.Gate
}

// New builds an InventoryShaper over the full config (it needs both the
// skew toggle/factor and the per-asset bias map) and the RiskGate it
// delegates positionRatio to.
func New(cfg *config.Config, gate *risk.Gate) *Shaper {
	return &Shaper{cfg: cfg, gate: gate}
}

// Shape computes bid/ask prices around basePrice at the given spread, per
// spec §4.5.
func (s *Shaper) Shape(marketID int64, basePrice, spreadFrac float64, pos types.Position, available float64) Shape {
	bias := s.cfg.Bias(marketID)

	if !s.cfg.InventorySkewEnabled {
		bidPrice := basePrice * (1 - spreadFrac/2 + bias)
		askPrice := basePrice * (1 + spreadFrac/2 + bias)
		return Shape{BidPrice: bidPrice, AskPrice: askPrice, SkewFactor: 0, Bias: bias}
	}

	r := s.gate.PositionRatio(pos, available, basePrice)
	var skewFactor float64
	if abs(r) > 0.05 {
		skewFactor = r * s.cfg.InventorySkewFactor
	}
	adjustment := skewFactor + bias
	adjustedBase := basePrice * (1 + adjustment)
	bidPrice := adjustedBase * (1 - spreadFrac/2)
	askPrice := adjustedBase * (1 + spreadFrac/2)

	return Shape{
		BidPrice:      bidPrice,
		AskPrice:      askPrice,
		SkewFactor:    skewFactor,
		Bias:          bias,
		PositionRatio: r,
	}
}

// NeedsHedge reports whether the HedgeExecutor should fire: auto-hedge is
// enabled and the absolute position ratio exceeds the configured threshold.
func (s *Shaper) NeedsHedge(pos types.Position, available, referencePrice float64) bool {
	if !s.cfg.AutoHedge.Enabled {
		return false
	}
	r := s.gate.PositionRatio(pos, available, referencePrice)
	return abs(r) > s.cfg.AutoHedge.ImbalanceThreshold
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
