package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"whale-copy-lab/internal/exchange"
)

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for venue-level ping messages. The venue
	// drops connections idle for 60s.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns the default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// FillBatch is one userFills push for a subscribed address. The first push
// after subscribing carries a snapshot of recent fills.
type FillBatch struct {
	Address    string
	IsSnapshot bool
	Fills      []exchange.Fill
}

// wsRequest is an outbound control message.
type wsRequest struct {
	Method       string          `json:"method"`
	Subscription *wsSubscription `json:"subscription,omitempty"`
}

type wsSubscription struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

// wsMessage is an inbound message envelope.
type wsMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// wsUserFills is the payload of a userFills channel message.
type wsUserFills struct {
	IsSnapshot bool       `json:"isSnapshot"`
	User       string     `json:"user"`
	Fills      []wireFill `json:"fills"`
}

// WSClient streams userFills events over the venue's WebSocket endpoint,
// reconnecting and resubscribing on connection loss.
type WSClient struct {
	endpoint string
	config   WSConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// subs maps lowercase address to its delivery channel
	subs   map[string]chan FillBatch
	subsMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewWSClient creates a WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSConfig) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClient{
		endpoint: endpoint,
		config:   cfg,
		subs:     make(map[string]chan FillBatch),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes the WebSocket connection.
func (c *WSClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeUserFills subscribes to fill events for an address. The returned
// channel is closed when the client closes. A lagging consumer loses batches
// rather than blocking the read loop; the polling path re-syncs from its
// cursor.
func (c *WSClient) SubscribeUserFills(ctx context.Context, address string) (<-chan FillBatch, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}

	key := strings.ToLower(address)

	c.subsMu.Lock()
	if _, exists := c.subs[key]; exists {
		c.subsMu.Unlock()
		return nil, fmt.Errorf("already subscribed to %s", address)
	}
	ch := make(chan FillBatch, 1024)
	c.subs[key] = ch
	c.subsMu.Unlock()

	if err := c.writeSubscribe(address); err != nil {
		c.subsMu.Lock()
		delete(c.subs, key)
		c.subsMu.Unlock()
		return nil, err
	}

	return ch, nil
}

func (c *WSClient) writeSubscribe(address string) error {
	req := wsRequest{
		Method:       "subscribe",
		Subscription: &wsSubscription{Type: "userFills", User: address},
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Close closes the WebSocket connection and all subscription channels.
func (c *WSClient) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.subsMu.Lock()
	for key, ch := range c.subs {
		close(ch)
		delete(c.subs, key)
	}
	c.subsMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages and dispatches them to subscribers, reconnecting
// with exponential backoff on connection errors.
func (c *WSClient) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// handleMessage routes one inbound message to its subscriber channel.
func (c *WSClient) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	if msg.Channel != "userFills" {
		// pong, subscriptionResponse and unknown channels are ignored
		return
	}

	var payload wsUserFills
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return
	}

	c.subsMu.RLock()
	ch := c.subs[strings.ToLower(payload.User)]
	c.subsMu.RUnlock()
	if ch == nil {
		return
	}

	fills := make([]exchange.Fill, 0, len(payload.Fills))
	for _, w := range payload.Fills {
		fills = append(fills, fillFromWire(w))
	}

	select {
	case ch <- FillBatch{Address: payload.User, IsSnapshot: payload.IsSnapshot, Fills: fills}:
	default:
		// Consumer lagging; drop the batch and let polling catch up
	}
}

// reconnect attempts to reconnect and resubscribe.
func (c *WSClient) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}

	c.resubscribeAll()
}

// resubscribeAll re-sends subscribe requests for every active address after
// a reconnect. Channels stay as they are; routing is by address.
func (c *WSClient) resubscribeAll() {
	c.subsMu.RLock()
	addresses := make([]string, 0, len(c.subs))
	for key := range c.subs {
		addresses = append(addresses, key)
	}
	c.subsMu.RUnlock()

	for _, address := range addresses {
		if err := c.writeSubscribe(address); err != nil {
			// Failed resubscription surfaces as a silent stream; the next
			// read error triggers another reconnect cycle
			continue
		}
	}
}

// pingLoop sends venue-level ping messages to keep the connection alive.
func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				c.conn.WriteJSON(wsRequest{Method: "ping"})
			}
			c.connMu.Unlock()
		}
	}
}
