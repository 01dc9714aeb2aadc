package api

import (
	"time"

	"perpmm/pkg/types"
)

// DashboardEvent is the wrapper for all events sent to the dashboard
type DashboardEvent struct {
	Type      string      `json:"type"` // "snapshot", "fill", "order", "position", "risk_denial", "quote"
	Timestamp time.Time   `json:"timestamp"`
	MarketID  int64       `json:"market_id,omitempty"` // 0 for global events
	Data      interface{} `json:"data"`
}

// FillEvent represents a fill notification for a resting order
type FillEvent struct {
	OrderID string  `json:"order_id"`
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
	Symbol  string  `json:"symbol"`

	PositionSize  float64 `json:"position_size"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// OrderEvent represents order placement/cancellation
type OrderEvent struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"` // "placed", "cancelled", "filled"
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	Size    float64 `json:"size"`
}

// PositionEvent describes a market's position; Hub.BroadcastPosition sends it
type PositionEvent struct {
	Symbol        string  `json:"symbol"`
	Size          float64 `json:"size"`
	EntryPrice    float64 `json:"entry_price"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	ExposureUSD   float64 `json:"exposure_usd"`
	MidPrice      float64 `json:"mid_price"`
}

// RiskDenialEvent describes one risk-gate veto (reason and detail);
// Hub.BroadcastRiskDenial sends it.
type RiskDenialEvent struct {
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// QuoteEvent represents the ladder's current best bid/ask
type QuoteEvent struct {
	Symbol   string  `json:"symbol"`
	BidPrice float64 `json:"bid_price"`
	BidSize  float64 `json:"bid_size"`
	AskPrice float64 `json:"ask_price"`
	AskSize  float64 `json:"ask_size"`
	MidPrice float64 `json:"mid_price"`
	Spread   float64 `json:"spread"`
}

// BookUpdateEvent represents order book changes
type BookUpdateEvent struct {
	Symbol     string    `json:"symbol"`
	BestBid    float64   `json:"best_bid"`
	BestAsk    float64   `json:"best_ask"`
	MidPrice   float64   `json:"mid_price"`
	Spread     float64   `json:"spread"`
	UpdateTime time.Time `json:"update_time"`
}

// NewFillEvent builds a fill event from a filled resting order and the
// position it left behind.
func NewFillEvent(order types.RestingOrder, pos PositionSnapshot, symbol string) FillEvent {
	return FillEvent{
		OrderID:       order.ID,
		Side:          string(order.Side),
		Price:         order.FillPrice,
		Size:          order.Size,
		Symbol:        symbol,
		PositionSize:  pos.Size,
		RealizedPnL:   pos.RealizedPnL,
		UnrealizedPnL: pos.UnrealizedPnL,
	}
}

// NewOrderEvent builds an order lifecycle event.
func NewOrderEvent(orderID, status string, side types.Side, price, size float64) OrderEvent {
	return OrderEvent{
		OrderID: orderID,
		Status:  status,
		Side:    string(side),
		Price:   price,
		Size:    size,
	}
}

// NewPositionEvent builds a position-change event.
func NewPositionEvent(pos PositionSnapshot, symbol string, midPrice float64) PositionEvent {
	return PositionEvent{
		Symbol:        symbol,
		Size:          pos.Size,
		EntryPrice:    pos.EntryPrice,
		RealizedPnL:   pos.RealizedPnL,
		UnrealizedPnL: pos.UnrealizedPnL,
		ExposureUSD:   pos.ExposureUSD,
		MidPrice:      midPrice,
	}
}

// NewRiskDenialEvent builds a risk-denial event from a gate decision.
func NewRiskDenialEvent(reason, detail string) RiskDenialEvent {
	return RiskDenialEvent{Reason: reason, Detail: detail}
}
