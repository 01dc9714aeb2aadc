package venue

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"perpmm/internal/config"
	"perpmm/pkg/types"
)

// restMarket is the venue's wire shape for a market listing.
type restMarket struct {
	ID          int64   `json:"id"`
	Symbol      string  `json:"symbol"`
	TickSize    float64 `json:"tickSize"`
	MinSize     float64 `json:"minSize"`
	MaxLeverage float64 `json:"maxLeverage"`
}

// restAccountInfo is the venue's wire shape for account state.
type restAccountInfo struct {
	Leverage  float64 `json:"leverage"`
	Balance   struct {
		Total     float64 `json:"total"`
		Available float64 `json:"available"`
	} `json:"balance"`
	Positions []struct {
		MarketID   int64   `json:"marketId"`
		Size       float64 `json:"size"`
		EntryPrice float64 `json:"entryPrice"`
	} `json:"positions"`
}

// restOrderResponse is the venue's wire shape for a successful order placement.
type restOrderResponse struct {
	OrderID string `json:"orderId"`
}

// Client is the REST half of the venue adapter: market listing, account
// info, and order placement/cancellation. Rate-limited and retried the same
// way the teacher's exchange.Client is, with the request body built and
// signed by a Wallet instead of an Auth (EIP-712/HMAC) provider.
type Client struct {
	http    *resty.Client
	wallet  *Wallet
	limits  *Limits
	dryRun  bool
	logger  *slog.Logger
	account string // cached on-venue account ID, set by UpdateAccountID
}

// NewClient builds a REST client against cfg.Venue.WebServerURL's REST
// counterpart.
func NewClient(cfg config.Config, wallet *Wallet, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(restBaseURL(cfg.Venue.WebServerURL)).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		wallet: wallet,
		limits: NewLimits(),
		dryRun: cfg.DryRun,
		logger: logger.With("component", "venue_client"),
	}
}

// restBaseURL derives the REST base from a wss:// websocket URL.
func restBaseURL(wsURL string) string {
	switch {
	case len(wsURL) > 3 && wsURL[:3] == "wss":
		return "https" + wsURL[3:]
	case len(wsURL) > 2 && wsURL[:2] == "ws":
		return "http" + wsURL[2:]
	default:
		return wsURL
	}
}

func (c *Client) GetAllMarkets(ctx context.Context) ([]types.Market, error) {
	if err := c.limits.Book.Wait(ctx); err != nil {
		return nil, err
	}

	var results []restMarket
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&results).
		Get("/markets")
	if err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get markets: status %d: %s", resp.StatusCode(), resp.String())
	}

	markets := make([]types.Market, len(results))
	for i, m := range results {
		markets[i] = types.Market{
			ID:          m.ID,
			Symbol:      m.Symbol,
			TickSize:    m.TickSize,
			MinSize:     m.MinSize,
			MaxLeverage: m.MaxLeverage,
		}
	}
	return markets, nil
}

func (c *Client) UpdateAccountID(ctx context.Context) error {
	headers, err := c.authHeaders("GET", "/account/id", "")
	if err != nil {
		return err
	}
	var result struct {
		AccountID string `json:"accountId"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/account/id")
	if err != nil {
		return fmt.Errorf("update account id: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("update account id: status %d: %s", resp.StatusCode(), resp.String())
	}
	c.account = result.AccountID
	return nil
}

func (c *Client) FetchAccountInfo(ctx context.Context) (AccountInfo, error) {
	headers, err := c.authHeaders("GET", "/account/info", "")
	if err != nil {
		return AccountInfo{}, err
	}

	var result restAccountInfo
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetResult(&result).
		Get("/account/info")
	if err != nil {
		return AccountInfo{}, fmt.Errorf("fetch account info: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return AccountInfo{}, fmt.Errorf("fetch account info: status %d: %s", resp.StatusCode(), resp.String())
	}

	positions := make(map[int64]types.Position, len(result.Positions))
	for _, p := range result.Positions {
		positions[p.MarketID] = types.Position{
			MarketID:   p.MarketID,
			Size:       p.Size,
			EntryPrice: p.EntryPrice,
		}
	}

	return AccountInfo{
		Leverage: result.Leverage,
		Balance: types.Balance{
			Total:     result.Balance.Total,
			Available: result.Balance.Available,
		},
		Positions: positions,
	}, nil
}

func (c *Client) GetLeverage(ctx context.Context) (float64, error) {
	info, err := c.FetchAccountInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.Leverage, nil
}

func (c *Client) PlaceOrder(ctx context.Context, intent types.OrderIntent) (string, error) {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would place order",
			"market_id", intent.MarketID, "side", intent.Side, "size", intent.Size)
		return "dry-run-order", nil
	}
	if err := c.limits.Order.Wait(ctx); err != nil {
		return "", err
	}

	headers, err := c.authHeaders("POST", "/orders", "")
	if err != nil {
		return "", err
	}

	var result restOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(intent).
		SetResult(&result).
		Post("/orders")
	if err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("place order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.OrderID, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel order", "order_id", orderID)
		return nil
	}
	if err := c.limits.Cancel.Wait(ctx); err != nil {
		return err
	}

	headers, err := c.authHeaders("DELETE", "/orders/"+orderID, "")
	if err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		Delete("/orders/" + orderID)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func (c *Client) CancelAllOrders(ctx context.Context, marketID *int64) error {
	if c.dryRun {
		c.logger.Info("DRY-RUN: would cancel all orders", "market_id", marketID)
		return nil
	}
	if err := c.limits.Cancel.Wait(ctx); err != nil {
		return err
	}

	path := "/orders/cancel-all"
	req := c.http.R().SetContext(ctx)
	if marketID != nil {
		req = req.SetQueryParam("marketId", fmt.Sprintf("%d", *marketID))
	}
	headers, err := c.authHeaders("DELETE", path, "")
	if err != nil {
		return err
	}
	resp, err := req.SetHeaders(headers).Delete(path)
	if err != nil {
		return fmt.Errorf("cancel all orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("cancel all orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// authHeaders signs method+path+body with the wallet key and returns the
// header set the venue expects. The exact header names are venue-internal
// (spec §1 scopes the venue SDK's wire format out); this follows the
// teacher's "sign a canonical string, put the signature + pubkey in
// headers" shape from its L2 HMAC auth.
func (c *Client) authHeaders(method, path, body string) (map[string]string, error) {
	canonical := method + path + body
	sig, err := c.wallet.Sign([]byte(canonical))
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"X-Account-Address": c.wallet.Address(),
		"X-Signature":       fmt.Sprintf("%x", sig),
	}, nil
}
