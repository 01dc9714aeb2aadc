package risk

import (
	"testing"

	"perpmm/internal/config"
	"perpmm/pkg/types"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MinMarginFraction:    0.18,
		MaxExposurePerSide:   0.5,
		MaxExposurePerMarket: 0.3,
		MaxTotalExposure:     0.8,
		MinFreeCollateral:    100,
	}
}

func TestCanQuoteMarginDenial(t *testing.T) {
	t.Parallel()
	g := NewGate(testRiskConfig())

	acct := Account{
		Leverage: 0.1,
		Balance:  types.Balance{Total: 10000, Available: 5000},
		Position: types.Position{},
	}

	d := g.CanQuote(acct)
	if d.Allow {
		t.Fatalf("expected deny on margin fraction")
	}
	if d.Reason != "margin fraction too low" {
		t.Fatalf("unexpected reason: %s", d.Reason)
	}
}

func TestCanQuoteAllowsWithinLimits(t *testing.T) {
	t.Parallel()
	g := NewGate(testRiskConfig())

	acct := Account{
		Leverage: 0.5,
		Balance:  types.Balance{Total: 10000, Available: 5000},
		Position: types.Position{Size: 10, EntryPrice: 50},
		TotalNotional: 500,
	}

	d := g.CanQuote(acct)
	if !d.Allow {
		t.Fatalf("expected allow, got deny: %s", d.Reason)
	}
}

func TestCanQuoteDenialsImplyFailedCheck(t *testing.T) {
	t.Parallel()
	g := NewGate(testRiskConfig())

	cases := []Account{
		{Leverage: 0, Balance: types.Balance{Total: 1000, Available: 1000}},
		{Leverage: 0.5, Balance: types.Balance{Total: 1000, Available: 10}},
		{Leverage: 0.5, Balance: types.Balance{Total: 100000, Available: 1000}, Position: types.Position{Size: 1000, EntryPrice: 50}},
	}
	for i, acct := range cases {
		d := g.CanQuote(acct)
		if d.Allow {
			t.Fatalf("case %d: expected a denial", i)
		}
	}
}

func TestPositionRatioSignAndBound(t *testing.T) {
	t.Parallel()
	g := NewGate(testRiskConfig())

	pos := types.Position{Size: 10, EntryPrice: 0}
	r := g.PositionRatio(pos, 1000, 50)
	if r <= 0 {
		t.Fatalf("expected positive ratio for long position, got %f", r)
	}

	pos.Size = -10
	r = g.PositionRatio(pos, 1000, 50)
	if r >= 0 {
		t.Fatalf("expected negative ratio for short position, got %f", r)
	}
}

func TestPositionRatioZeroAvailable(t *testing.T) {
	t.Parallel()
	g := NewGate(testRiskConfig())
	pos := types.Position{Size: 10}
	if r := g.PositionRatio(pos, 0, 50); r != 0 {
		t.Fatalf("expected zero ratio with zero available collateral, got %f", r)
	}
}
