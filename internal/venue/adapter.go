package venue

import (
	"context"
	"log/slog"

	"perpmm/internal/config"
	"perpmm/pkg/types"
)

// Adapter implements Venue by combining the REST client and the order book
// websocket feed behind the single interface the rest of the engine talks
// to.
type Adapter struct {
	client *Client
	feed   *BookFeed
	wallet *Wallet
	logger *slog.Logger
}

// New builds the full venue adapter from config, loading the wallet and
// wiring the REST client and book feed together.
func New(cfg config.Config, logger *slog.Logger) (*Adapter, error) {
	wallet, err := NewWallet(cfg.Wallet)
	if err != nil {
		return nil, err
	}

	client := NewClient(cfg, wallet, logger)
	feed := NewBookFeed(cfg.Venue.WebServerURL, logger)

	return &Adapter{
		client: client,
		feed:   feed,
		wallet: wallet,
		logger: logger.With("component", "venue"),
	}, nil
}

// Run starts the book feed's connection loop. Blocks until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context) error {
	return a.feed.Run(ctx)
}

func (a *Adapter) GetAllMarkets(ctx context.Context) ([]types.Market, error) {
	return a.client.GetAllMarkets(ctx)
}

func (a *Adapter) SubscribeOrderbook(ctx context.Context, marketID int64) error {
	return a.feed.Subscribe(marketID)
}

func (a *Adapter) UnsubscribeOrderbook(ctx context.Context, marketID int64) error {
	return a.feed.Unsubscribe(marketID)
}

func (a *Adapter) OnOrderbookUpdate(handler OrderbookHandler) {
	a.feed.SetHandler(handler)
}

func (a *Adapter) UpdateAccountID(ctx context.Context) error {
	return a.client.UpdateAccountID(ctx)
}

func (a *Adapter) FetchAccountInfo(ctx context.Context) (AccountInfo, error) {
	return a.client.FetchAccountInfo(ctx)
}

func (a *Adapter) GetLeverage(ctx context.Context) (float64, error) {
	return a.client.GetLeverage(ctx)
}

func (a *Adapter) PlaceOrder(ctx context.Context, intent types.OrderIntent) (string, error) {
	return a.client.PlaceOrder(ctx, intent)
}

func (a *Adapter) CancelOrder(ctx context.Context, orderID string) error {
	return a.client.CancelOrder(ctx, orderID)
}

func (a *Adapter) CancelAllOrders(ctx context.Context, marketID *int64) error {
	return a.client.CancelAllOrders(ctx, marketID)
}

func (a *Adapter) Close() error {
	return a.feed.Close()
}

var _ Venue = (*Adapter)(nil)
