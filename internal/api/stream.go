package api

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub fans the market-making engine's quote/fill/risk/position state out to
// every connected dashboard client over its own WebSocket connection.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mu         sync.RWMutex
	logger     *slog.Logger
}

// Client is one dashboard viewer's WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty dashboard hub; call Run in a goroutine to start it.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		logger:     logger.With("component", "ws-hub"),
	}
}

// Run drives client (dis)connects and broadcast fan-out until the process
// exits; it never returns.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("dashboard client connected", "count", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("dashboard client disconnected", "count", len(h.clients))

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// client's send buffer is full; drop it rather than block
					// the whole engine's broadcast loop on a slow viewer.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastEvent pushes an arbitrary dashboard event to every connected
// client, dropping it if the broadcast buffer is saturated.
func (h *Hub) BroadcastEvent(evt DashboardEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error("failed to marshal dashboard event", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast channel full, dropping dashboard event")
	}
}

// BroadcastSnapshot pushes the full market/position/risk snapshot, the
// payload the poll loop in Server.pollAndBroadcast sends every tick.
func (h *Hub) BroadcastSnapshot(snapshot DashboardSnapshot) {
	h.BroadcastEvent(DashboardEvent{Type: "snapshot", Timestamp: time.Now(), Data: snapshot})
}

// BroadcastFill pushes a single resting-order fill.
func (h *Hub) BroadcastFill(marketID int64, evt FillEvent) {
	h.BroadcastEvent(DashboardEvent{Type: "fill", Timestamp: time.Now(), MarketID: marketID, Data: evt})
}

// BroadcastOrder pushes an order placement/cancellation lifecycle change.
func (h *Hub) BroadcastOrder(marketID int64, evt OrderEvent) {
	h.BroadcastEvent(DashboardEvent{Type: "order", Timestamp: time.Now(), MarketID: marketID, Data: evt})
}

// BroadcastPosition pushes a market's updated position/PnL figures.
func (h *Hub) BroadcastPosition(marketID int64, evt PositionEvent) {
	h.BroadcastEvent(DashboardEvent{Type: "position", Timestamp: time.Now(), MarketID: marketID, Data: evt})
}

// BroadcastRiskDenial pushes a risk gate veto so the dashboard can surface
// why a cycle was suppressed instead of only showing its absence.
func (h *Hub) BroadcastRiskDenial(marketID int64, evt RiskDenialEvent) {
	h.BroadcastEvent(DashboardEvent{Type: "risk_denial", Timestamp: time.Now(), MarketID: marketID, Data: evt})
}

// BroadcastQuote pushes a market's newly placed bid/ask ladder prices.
func (h *Hub) BroadcastQuote(marketID int64, evt QuoteEvent) {
	h.BroadcastEvent(DashboardEvent{Type: "quote", Timestamp: time.Now(), MarketID: marketID, Data: evt})
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// writePump relays hub broadcasts and periodic pings to the dashboard's
// WebSocket connection; run one per client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed this client's channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the dashboard connection so pong frames and close frames
// are processed; the dashboard is read-only and never acts on inbound data.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket error", "error", err)
			}
			break
		}
	}
}

// NewClient registers conn with hub and starts its read/write pumps.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return client
}
