// Package hedge implements the HedgeExecutor (C7): the single reduce-only
// market order fired when InventoryShaper.NeedsHedge trips.
//
// Grounded on the teacher's strategy.Inventory fill-application path — here
// reduced to a one-shot intent builder rather than a full fill processor,
// since the hedge order's own fill is handled by the same venue order path
// as any other order.
package hedge

import (
	"context"
	"log/slog"

	"perpmm/pkg/types"
)

// hedgeFraction is the fixed share of the open position size a hedge order
// closes. Not configurable (spec §4.7/§9).
const hedgeFraction = 0.3

// PlaceOrderFunc submits a single order intent to the venue.
type PlaceOrderFunc func(ctx context.Context, intent types.OrderIntent) error

// Executor builds and submits the hedge order intent.
type Executor struct {
	place  PlaceOrderFunc
	logger *slog.Logger
}

// New builds a HedgeExecutor over the venue's order-placement function.
func New(place PlaceOrderFunc, logger *slog.Logger) *Executor {
	return &Executor{place: place, logger: logger.With("component", "hedge")}
}

// Hedge submits a reduce-only market order on the side opposite pos, sized
// to hedgeFraction of the open position. A submission failure is logged and
// swallowed (spec §4.7) — a hedge is opportunistic, not a transaction the
// rest of the quote cycle depends on.
func (e *Executor) Hedge(ctx context.Context, marketID int64, pos types.Position) {
	if pos.Size == 0 {
		return
	}

	side := types.Bid
	if pos.Size > 0 {
		side = types.Ask
	}
	size := abs(pos.Size) * hedgeFraction

	intent := types.OrderIntent{
		MarketID:   marketID,
		Side:       side,
		Size:       size,
		FillMode:   types.FillMarket,
		ReduceOnly: true,
	}

	if err := e.place(ctx, intent); err != nil {
		e.logger.Error("hedge order failed",
			"market_id", marketID, "side", side, "size", size, "error", err)
		return
	}
	e.logger.Info("hedge order placed",
		"market_id", marketID, "side", side, "size", size)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
