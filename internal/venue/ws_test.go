package venue

import (
	"log/slog"
	"testing"

	"perpmm/pkg/types"
)

func TestDispatchMessageInvokesHandler(t *testing.T) {
	t.Parallel()
	feed := NewBookFeed("wss://example.invalid/ws", slog.Default())

	var got types.OrderbookSnapshot
	feed.SetHandler(func(update types.OrderbookSnapshot) {
		got = update
	})

	msg := []byte(`{"marketId":7,"timestamp":1700000000000,"bids":[[99.9,10],[99.8,5]],"asks":[[100.1,8]]}`)
	feed.dispatchMessage(msg)

	if got.MarketID != 7 {
		t.Fatalf("expected market id 7, got %d", got.MarketID)
	}
	if len(got.Bids) != 2 || got.Bids[0].Price != 99.9 || got.Bids[0].Size != 10 {
		t.Fatalf("unexpected bids: %+v", got.Bids)
	}
	if len(got.Asks) != 1 || got.Asks[0].Price != 100.1 {
		t.Fatalf("unexpected asks: %+v", got.Asks)
	}
}

func TestDispatchMessageIgnoresGarbage(t *testing.T) {
	t.Parallel()
	feed := NewBookFeed("wss://example.invalid/ws", slog.Default())

	called := false
	feed.SetHandler(func(update types.OrderbookSnapshot) {
		called = true
	})

	feed.dispatchMessage([]byte("PONG"))
	if called {
		t.Fatalf("expected non-json message to be ignored")
	}
}

func TestSubscribeTracksMarketWithoutConnection(t *testing.T) {
	t.Parallel()
	feed := NewBookFeed("wss://example.invalid/ws", slog.Default())

	if err := feed.Subscribe(42); err != nil {
		t.Fatalf("Subscribe before connect should not error, got: %v", err)
	}

	feed.subscribedMu.RLock()
	tracked := feed.subscribed[42]
	feed.subscribedMu.RUnlock()
	if !tracked {
		t.Fatalf("expected market 42 to be tracked after Subscribe")
	}

	if err := feed.Unsubscribe(42); err != nil {
		t.Fatalf("Unsubscribe should not error, got: %v", err)
	}
	feed.subscribedMu.RLock()
	tracked = feed.subscribed[42]
	feed.subscribedMu.RUnlock()
	if tracked {
		t.Fatalf("expected market 42 to be untracked after Unsubscribe")
	}
}
