package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"perpmm/pkg/types"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func decodeBroadcast(t *testing.T, h *Hub) DashboardEvent {
	t.Helper()
	select {
	case raw := <-h.broadcast:
		var evt DashboardEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		return evt
	default:
		t.Fatal("expected a queued broadcast, found none")
		return DashboardEvent{}
	}
}

func TestHubBroadcastFillEnvelopesMarketIDAndType(t *testing.T) {
	t.Parallel()
	h := newTestHub()

	order := types.RestingOrder{
		OrderIntent: types.OrderIntent{Side: types.Bid, Size: 1.5},
		ID:          "ord-1",
		FillPrice:   100,
	}
	evt := NewFillEvent(order, PositionSnapshot{Size: 2, RealizedPnL: 10, UnrealizedPnL: 5}, "BTC-PERP")
	h.BroadcastFill(7, evt)

	got := decodeBroadcast(t, h)
	if got.Type != "fill" {
		t.Errorf("Type = %q, want fill", got.Type)
	}
	if got.MarketID != 7 {
		t.Errorf("MarketID = %d, want 7", got.MarketID)
	}
}

func TestHubBroadcastRiskDenialEnvelopesReason(t *testing.T) {
	t.Parallel()
	h := newTestHub()

	h.BroadcastRiskDenial(3, NewRiskDenialEvent("min_margin_fraction", "available below floor"))

	got := decodeBroadcast(t, h)
	if got.Type != "risk_denial" {
		t.Errorf("Type = %q, want risk_denial", got.Type)
	}
	data, ok := got.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Data is %T, want map", got.Data)
	}
	if data["reason"] != "min_margin_fraction" {
		t.Errorf("reason = %v, want min_margin_fraction", data["reason"])
	}
}

func TestHubBroadcastQuoteEnvelopesSymbol(t *testing.T) {
	t.Parallel()
	h := newTestHub()

	h.BroadcastQuote(1, QuoteEvent{Symbol: "ETH-PERP", BidPrice: 99, AskPrice: 101, MidPrice: 100})

	got := decodeBroadcast(t, h)
	if got.Type != "quote" {
		t.Errorf("Type = %q, want quote", got.Type)
	}
	data := got.Data.(map[string]interface{})
	if data["symbol"] != "ETH-PERP" {
		t.Errorf("symbol = %v, want ETH-PERP", data["symbol"])
	}
}
