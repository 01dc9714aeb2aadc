// Package sizer implements the Sizer (C4): per-level size ladders under
// fixed, percentage, or tiered modes, step-size rounding, and the notional
// validation gate.
package sizer

import (
	"github.com/shopspring/decimal"

	"perpmm/internal/config"
)

// Sizer produces the per-level size ladder for a market.
type Sizer struct {
	sizing config.SizingConfig
	risk   config.RiskConfig
}

// New builds a Sizer over the sizing and risk config sections.
func New(sizing config.SizingConfig, risk config.RiskConfig) *Sizer {
	return &Sizer{sizing: sizing, risk: risk}
}

// CalculateLevelSizes returns an ordered list of up to maxLevels sizes. An
// empty list (available == 0) means quoting is suppressed for this event.
func (s *Sizer) CalculateLevelSizes(available float64, maxLevels int) []float64 {
	if available == 0 {
		return nil
	}

	sizes := make([]float64, maxLevels)
	switch s.sizing.QuantityMode {
	case config.QuantityFixed:
		for i := range sizes {
			sizes[i] = s.sizing.FixedSize
		}
	case config.QuantityPercentage:
		for i := range sizes {
			sizes[i] = available * s.sizing.PercentPerLevel
		}
	case config.QuantityTiered:
		for i := range sizes {
			var mult float64
			if i < len(s.sizing.TieredMultipliers) {
				mult = s.sizing.TieredMultipliers[i]
			}
			sizes[i] = available * s.risk.MaxExposurePerMarket * mult
		}
	}
	return sizes
}

// RoundSize floors to the step size using exact decimal arithmetic (the
// teacher's go.mod lists shopspring/decimal but never imports it; float
// math.Floor(size/step)*step can misround because 0.01-style steps aren't
// exact in binary floating point). Sizes below minSize round up to minSize.
func RoundSize(size, minSize, stepSize float64) float64 {
	if stepSize <= 0 {
		stepSize = 0.01
	}
	if size < minSize {
		return minSize
	}
	d := decimal.NewFromFloat(size)
	step := decimal.NewFromFloat(stepSize)
	quotient := d.Div(step).Floor()
	result, _ := quotient.Mul(step).Float64()
	return result
}

// ValidateSizes checks total notional against the per-side exposure cap.
// Returns false (quoting suppressed for this event) when exceeded.
func ValidateSizes(levels []float64, available, mid float64, risk config.RiskConfig) bool {
	if len(levels) == 0 {
		return false
	}
	var notional float64
	for _, sz := range levels {
		notional += sz * mid
	}
	return notional <= available*risk.MaxExposurePerSide
}
