package oracle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"perpmm/pkg/types"
)

// coinbaseTicker is the JSON shape of a single-product ticker response.
type coinbaseTicker struct {
	Bid    string `json:"bid"`
	Ask    string `json:"ask"`
	Volume string `json:"volume"`
}

// CoinbaseSource reads the <symbol>-USD product ticker directly over REST;
// there is no ecosystem client for this endpoint in the retrieved pack, so
// this uses resty the same way the teacher's market scanner does.
type CoinbaseSource struct {
	client *resty.Client
}

// NewCoinbaseSource builds a resty client against the public ticker API.
func NewCoinbaseSource() *CoinbaseSource {
	client := resty.New().
		SetBaseURL("https://api.exchange.coinbase.com").
		SetTimeout(5 * time.Second)
	return &CoinbaseSource{client: client}
}

func (c *CoinbaseSource) Name() string { return "coinbase" }

func (c *CoinbaseSource) Fetch(ctx context.Context, symbol string) (types.ExchangePrice, error) {
	pair := symbol + "-USD"
	var ticker coinbaseTicker
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&ticker).
		Get(fmt.Sprintf("/products/%s/ticker", pair))
	if err != nil {
		return types.ExchangePrice{}, fmt.Errorf("coinbase ticker %s: %w", pair, err)
	}
	if resp.StatusCode() != 200 {
		return types.ExchangePrice{}, fmt.Errorf("coinbase ticker %s: status %d", pair, resp.StatusCode())
	}

	bid, err := strconv.ParseFloat(ticker.Bid, 64)
	if err != nil {
		return types.ExchangePrice{}, fmt.Errorf("coinbase parse bid: %w", err)
	}
	ask, err := strconv.ParseFloat(ticker.Ask, 64)
	if err != nil {
		return types.ExchangePrice{}, fmt.Errorf("coinbase parse ask: %w", err)
	}
	volume, err := strconv.ParseFloat(ticker.Volume, 64)
	if err != nil {
		volume = 0
	}

	mid := (bid + ask) / 2
	var spread float64
	if mid != 0 {
		spread = (ask - bid) / mid
	}

	return types.ExchangePrice{
		Bid:       bid,
		Ask:       ask,
		Mid:       mid,
		Spread:    spread,
		Volume24h: volume,
		Timestamp: time.Now(),
		Source:    "coinbase",
	}, nil
}
