package sizer

import (
	"testing"

	"perpmm/internal/config"
)

func TestCalculateLevelSizesFixed(t *testing.T) {
	t.Parallel()
	s := New(config.SizingConfig{QuantityMode: config.QuantityFixed, FixedSize: 0.1}, config.RiskConfig{})
	sizes := s.CalculateLevelSizes(1000, 3)
	for _, sz := range sizes {
		if sz != 0.1 {
			t.Fatalf("expected fixed size 0.1, got %f", sz)
		}
	}
}

func TestCalculateLevelSizesTieredBeyondListIsZero(t *testing.T) {
	t.Parallel()
	s := New(config.SizingConfig{
		QuantityMode:      config.QuantityTiered,
		TieredMultipliers: []float64{0.5, 0.5},
	}, config.RiskConfig{MaxExposurePerMarket: 0.2})
	sizes := s.CalculateLevelSizes(1000, 3)
	if sizes[2] != 0 {
		t.Fatalf("expected zero multiplier beyond list, got %f", sizes[2])
	}
	if sizes[0] != 1000*0.2*0.5 {
		t.Fatalf("unexpected tiered size: %f", sizes[0])
	}
}

func TestCalculateLevelSizesZeroAvailable(t *testing.T) {
	t.Parallel()
	s := New(config.SizingConfig{QuantityMode: config.QuantityFixed, FixedSize: 1}, config.RiskConfig{})
	sizes := s.CalculateLevelSizes(0, 3)
	if sizes != nil {
		t.Fatalf("expected nil sizes when available is zero")
	}
}

func TestRoundSizeBelowMinimum(t *testing.T) {
	t.Parallel()
	if got := RoundSize(0.001, 0.01, 0.01); got != 0.01 {
		t.Fatalf("expected minSize floor, got %f", got)
	}
}

func TestRoundSizeFloorsToStep(t *testing.T) {
	t.Parallel()
	if got := RoundSize(0.127, 0.01, 0.01); got != 0.12 {
		t.Fatalf("expected 0.12, got %f", got)
	}
}

func TestValidateSizesRejectsOverExposure(t *testing.T) {
	t.Parallel()
	risk := config.RiskConfig{MaxExposurePerSide: 0.1}
	ok := ValidateSizes([]float64{10}, 100, 100, risk)
	if ok {
		t.Fatalf("expected validation failure: notional 1000 > available*max 10")
	}
}

func TestValidateSizesEmptyFails(t *testing.T) {
	t.Parallel()
	if ValidateSizes(nil, 100, 100, config.RiskConfig{MaxExposurePerSide: 1}) {
		t.Fatalf("expected empty levels to fail validation")
	}
}
