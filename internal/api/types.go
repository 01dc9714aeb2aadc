package api

import (
	"time"

	"perpmm/internal/config"
)

// DashboardSnapshot represents the complete dashboard state
type DashboardSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	Markets []MarketStatus `json:"markets"`

	TotalRealized   float64 `json:"total_realized"`
	TotalUnrealized float64 `json:"total_unrealized"`
	TotalPnL        float64 `json:"total_pnl"`

	Risk RiskSnapshot `json:"risk"`

	Config ConfigSummary `json:"config"`
}

// MarketStatus represents per-market quoting state
type MarketStatus struct {
	MarketID int64  `json:"market_id"`
	Symbol   string `json:"symbol"`
	State    string `json:"state"`

	MidPrice    float64   `json:"mid_price"`
	BestBid     float64   `json:"best_bid"`
	BestAsk     float64   `json:"best_ask"`
	Spread      float64   `json:"spread"`
	LastUpdated time.Time `json:"last_updated"`
	IsStale     bool      `json:"is_stale"`

	Position PositionSnapshot `json:"position"`

	ActiveBid *QuoteInfo `json:"active_bid,omitempty"`
	ActiveAsk *QuoteInfo `json:"active_ask,omitempty"`

	TickSize float64 `json:"tick_size"`
}

// PositionSnapshot represents the signed position and P&L for a market
type PositionSnapshot struct {
	Size          float64   `json:"size"`
	EntryPrice    float64   `json:"entry_price"`
	RealizedPnL   float64   `json:"realized_pnl"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	ExposureUSD   float64   `json:"exposure_usd"`
	LastUpdated   time.Time `json:"last_updated"`
}

// QuoteInfo represents one side of the engine's last quoted bid/ask (the
// shaped target price, before level spacing and tick rounding)
type QuoteInfo struct {
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// RiskSnapshot represents the aggregate risk-gate state
type RiskSnapshot struct {
	Leverage          float64 `json:"leverage"`
	MinMarginFraction float64 `json:"min_margin_fraction"`

	AvailableBalance  float64 `json:"available_balance"`
	TotalBalance      float64 `json:"total_balance"`
	MinFreeCollateral float64 `json:"min_free_collateral"`

	TotalNotional    float64 `json:"total_notional"`
	MaxTotalExposure float64 `json:"max_total_exposure"`
	ExposurePct      float64 `json:"exposure_pct"`

	MaxExposurePerMarket float64 `json:"max_exposure_per_market"`
}

// ConfigSummary represents the operationally relevant configuration
type ConfigSummary struct {
	MaxLevels            int     `json:"max_levels"`
	RequoteIntervalMs    int     `json:"requote_interval_ms"`
	RequoteThreshold     float64 `json:"requote_threshold"`
	InventorySkewEnabled bool    `json:"inventory_skew_enabled"`

	SpreadMin    float64 `json:"spread_min"`
	SpreadMax    float64 `json:"spread_max"`
	QuantityMode string  `json:"quantity_mode"`
	FixedSize    float64 `json:"fixed_size"`

	MinMarginFraction    float64 `json:"min_margin_fraction"`
	MaxExposurePerMarket float64 `json:"max_exposure_per_market"`
	MaxTotalExposure     float64 `json:"max_total_exposure"`

	OracleEnabled bool `json:"oracle_enabled"`
	DryRun        bool `json:"dry_run"`
}

// NewConfigSummary creates a config summary from the running Config
func NewConfigSummary(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		MaxLevels:            cfg.MaxLevels,
		RequoteIntervalMs:    cfg.RequoteIntervalMs,
		RequoteThreshold:     cfg.RequoteThreshold,
		InventorySkewEnabled: cfg.InventorySkewEnabled,

		SpreadMin:    cfg.Spread.Min,
		SpreadMax:    cfg.Spread.Max,
		QuantityMode: string(cfg.Sizing.QuantityMode),
		FixedSize:    cfg.Sizing.FixedSize,

		MinMarginFraction:    cfg.Risk.MinMarginFraction,
		MaxExposurePerMarket: cfg.Risk.MaxExposurePerMarket,
		MaxTotalExposure:     cfg.Risk.MaxTotalExposure,

		OracleEnabled: cfg.Oracle.Enabled,
		DryRun:        cfg.DryRun,
	}
}
