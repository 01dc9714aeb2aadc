package hedge

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"perpmm/pkg/types"
)

func TestHedgeLongPositionSellsThirtyPercent(t *testing.T) {
	t.Parallel()
	var got types.OrderIntent
	e := New(func(ctx context.Context, intent types.OrderIntent) error {
		got = intent
		return nil
	}, slog.Default())

	e.Hedge(context.Background(), 7, types.Position{Size: 10, EntryPrice: 100})

	if got.Side != types.Ask {
		t.Fatalf("expected ask side to hedge a long, got %s", got.Side)
	}
	if got.Size != 3 {
		t.Fatalf("expected hedge size 3 (30%% of 10), got %f", got.Size)
	}
	if !got.ReduceOnly {
		t.Fatalf("expected reduce-only hedge order")
	}
	if got.FillMode != types.FillMarket {
		t.Fatalf("expected market fill mode, got %s", got.FillMode)
	}
}

func TestHedgeShortPositionBuysThirtyPercent(t *testing.T) {
	t.Parallel()
	var got types.OrderIntent
	e := New(func(ctx context.Context, intent types.OrderIntent) error {
		got = intent
		return nil
	}, slog.Default())

	e.Hedge(context.Background(), 7, types.Position{Size: -20, EntryPrice: 100})

	if got.Side != types.Bid {
		t.Fatalf("expected bid side to hedge a short, got %s", got.Side)
	}
	if got.Size != 6 {
		t.Fatalf("expected hedge size 6 (30%% of 20), got %f", got.Size)
	}
}

func TestHedgeFlatPositionNoOrder(t *testing.T) {
	t.Parallel()
	called := false
	e := New(func(ctx context.Context, intent types.OrderIntent) error {
		called = true
		return nil
	}, slog.Default())

	e.Hedge(context.Background(), 7, types.Position{Size: 0})

	if called {
		t.Fatalf("expected no hedge order for a flat position")
	}
}

func TestHedgeFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	e := New(func(ctx context.Context, intent types.OrderIntent) error {
		return errors.New("venue rejected order")
	}, slog.Default())

	e.Hedge(context.Background(), 7, types.Position{Size: 10, EntryPrice: 100})
}
