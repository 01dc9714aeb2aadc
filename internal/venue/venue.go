// Package venue is the thin boundary around the perpetuals venue: market
// discovery, order book subscription, account info, and order
// placement/cancellation (spec §6). Everything downstream of this package
// talks to the Venue interface, never to the REST/WS wire format directly.
//
// Grounded on the teacher's internal/exchange package — client.go's
// resty-with-retry REST shape, ws.go's reconnecting book feed, ratelimit.go's
// per-category throttling, and auth.go's wallet-loading responsibility — all
// generalized from Polymarket's CTF order-book API to a generic perp venue.
package venue

import (
	"context"

	"perpmm/pkg/types"
)

// AccountInfo is the account-level state the risk gate and quote engine
// read every cycle.
type AccountInfo struct {
	Leverage  float64
	Balance   types.Balance
	Positions map[int64]types.Position
}

// OrderbookHandler is invoked once per order book update for a subscribed
// market. Dispatch is single-shot per event, serialized per market (spec
// §9's "single-shot event handler dispatch by marketId").
type OrderbookHandler func(update types.OrderbookSnapshot)

// Venue is the full external-collaborator contract from spec §6.
type Venue interface {
	// GetAllMarkets lists every tradeable market.
	GetAllMarkets(ctx context.Context) ([]types.Market, error)

	// SubscribeOrderbook opens (or joins) the book feed for marketID.
	SubscribeOrderbook(ctx context.Context, marketID int64) error
	// UnsubscribeOrderbook stops the book feed for marketID.
	UnsubscribeOrderbook(ctx context.Context, marketID int64) error
	// OnOrderbookUpdate registers the single handler invoked for every
	// subscribed market's book updates. MarketID is read off each update to
	// route it.
	OnOrderbookUpdate(handler OrderbookHandler)

	// UpdateAccountID refreshes which on-venue account this session trades
	// under (derived from the wallet).
	UpdateAccountID(ctx context.Context) error
	// FetchAccountInfo returns current balance and open positions.
	FetchAccountInfo(ctx context.Context) (AccountInfo, error)
	// GetLeverage returns the account's current margin fraction.
	GetLeverage(ctx context.Context) (float64, error)

	// PlaceOrder submits a single order intent, returning the venue-assigned
	// order ID.
	PlaceOrder(ctx context.Context, intent types.OrderIntent) (string, error)
	// CancelOrder cancels a single resting order.
	CancelOrder(ctx context.Context, orderID string) error
	// CancelAllOrders cancels every resting order for marketID, or for every
	// market when marketID is nil.
	CancelAllOrders(ctx context.Context, marketID *int64) error

	// Close releases the underlying connections.
	Close() error
}
