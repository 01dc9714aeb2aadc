package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"perpmm/pkg/types"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// wireBookUpdate is the venue's wire shape for an order book push.
type wireBookUpdate struct {
	MarketID  int64              `json:"marketId"`
	Timestamp int64              `json:"timestamp"`
	Bids      [][2]float64       `json:"bids"`
	Asks      [][2]float64       `json:"asks"`
}

// BookFeed manages the single order-book WebSocket connection, auto
// reconnecting with exponential backoff and re-subscribing to every
// tracked market on reconnect. Grounded on the teacher's WSFeed.
type BookFeed struct {
	url    string
	conn   *websocket.Conn
	connMu sync.Mutex

	subscribedMu sync.RWMutex
	subscribed   map[int64]bool

	handler   OrderbookHandler
	handlerMu sync.RWMutex

	logger *slog.Logger
}

// NewBookFeed builds a feed against the venue's websocket URL.
func NewBookFeed(wsURL string, logger *slog.Logger) *BookFeed {
	return &BookFeed{
		url:        wsURL,
		subscribed: make(map[int64]bool),
		logger:     logger.With("component", "venue_ws"),
	}
}

// SetHandler registers the single callback invoked per book update.
func (f *BookFeed) SetHandler(h OrderbookHandler) {
	f.handlerMu.Lock()
	f.handler = h
	f.handlerMu.Unlock()
}

// Run connects and maintains the connection until ctx is cancelled.
func (f *BookFeed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("orderbook feed disconnected, reconnecting",
			"error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Subscribe marks marketID as tracked and, if connected, sends the
// subscription message immediately.
func (f *BookFeed) Subscribe(marketID int64) error {
	f.subscribedMu.Lock()
	f.subscribed[marketID] = true
	f.subscribedMu.Unlock()
	return f.writeJSON(map[string]interface{}{
		"operation": "subscribe",
		"marketId":  marketID,
	})
}

// Unsubscribe stops tracking marketID.
func (f *BookFeed) Unsubscribe(marketID int64) error {
	f.subscribedMu.Lock()
	delete(f.subscribed, marketID)
	f.subscribedMu.Unlock()
	return f.writeJSON(map[string]interface{}{
		"operation": "unsubscribe",
		"marketId":  marketID,
	})
}

// Close closes the underlying connection.
func (f *BookFeed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *BookFeed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.resubscribeAll(); err != nil {
		return fmt.Errorf("resubscribe: %w", err)
	}

	f.logger.Info("orderbook feed connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.dispatchMessage(msg)
	}
}

func (f *BookFeed) resubscribeAll() error {
	f.subscribedMu.RLock()
	ids := make([]int64, 0, len(f.subscribed))
	for id := range f.subscribed {
		ids = append(ids, id)
	}
	f.subscribedMu.RUnlock()

	if len(ids) == 0 {
		return nil
	}
	return f.writeJSON(map[string]interface{}{
		"operation": "subscribe",
		"marketIds": ids,
	})
}

func (f *BookFeed) dispatchMessage(data []byte) {
	var update wireBookUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		f.logger.Debug("ignoring non-json book message", "data", string(data))
		return
	}

	snapshot := types.OrderbookSnapshot{
		MarketID:  update.MarketID,
		Timestamp: time.UnixMilli(update.Timestamp),
		Bids:      levelsFromPairs(update.Bids),
		Asks:      levelsFromPairs(update.Asks),
	}

	f.handlerMu.RLock()
	h := f.handler
	f.handlerMu.RUnlock()
	if h != nil {
		h(snapshot)
	}
}

func levelsFromPairs(pairs [][2]float64) []types.PriceLevel {
	levels := make([]types.PriceLevel, len(pairs))
	for i, p := range pairs {
		levels[i] = types.PriceLevel{Price: p[0], Size: p[1]}
	}
	return levels
}

func (f *BookFeed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.TextMessage, []byte("PING")); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *BookFeed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return nil
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *BookFeed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
