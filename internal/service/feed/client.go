package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"SpikeWatch/internal/domain/models"
	drepo "SpikeWatch/internal/domain/repository"
	"SpikeWatch/pkg/logger"

	"github.com/gorilla/websocket"
)

// Options configures the websocket market stream.
type Options struct {
	APIKey       string
	URL          string
	PingInterval time.Duration
	BackoffMin   time.Duration
	BackoffMax   time.Duration
	ReadBuffer   int
}

// Client implements a MarketStream over a token-authenticated websocket feed.
// The subscription set is tracked locally so a reconnect can replay it.
type Client struct {
	opts Options
	log  *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	symbols   map[string]struct{}
	backoff   time.Duration
}

// New creates a websocket MarketStream.
func New(opts Options, log *logger.Logger) drepo.MarketStream {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 20 * time.Second
	}
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = time.Minute
	}
	if opts.ReadBuffer <= 0 {
		opts.ReadBuffer = 4096
	}
	return &Client{
		opts:    opts,
		log:     log,
		symbols: make(map[string]struct{}),
		backoff: opts.BackoffMin,
	}
}

// Connect establishes the websocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.opts.URL, c.opts.APIKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.backoff = c.opts.BackoffMin
	c.mu.Unlock()

	c.log.Info("feed connected", logger.String("url", c.opts.URL))
	return nil
}

// Subscribe adds symbols to the tracked set and announces them upstream.
func (c *Client) Subscribe(_ context.Context, symbols []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range symbols {
		c.symbols[s] = struct{}{}
	}
	if c.conn == nil || !c.connected {
		// Tracked only; replayed on the next connect.
		return nil
	}
	return c.writeControlLocked("subscribe", symbols)
}

// Unsubscribe removes symbols from the tracked set.
func (c *Client) Unsubscribe(_ context.Context, symbols []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range symbols {
		delete(c.symbols, s)
	}
	if c.conn == nil || !c.connected {
		return nil
	}
	return c.writeControlLocked("unsubscribe", symbols)
}

func (c *Client) writeControlLocked(kind string, symbols []string) error {
	for _, s := range symbols {
		msg := map[string]string{"type": kind, "symbol": s}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("%s %s: %w", kind, s, err)
		}
	}
	return nil
}

// Tracked returns the current subscription set.
func (c *Client) Tracked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.symbols))
	for s := range c.symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

type wireTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type wireQuote struct {
	S  string  `json:"s"`
	B  float64 `json:"b"`
	A  float64 `json:"a"`
	BV float64 `json:"bv"`
	AV float64 `json:"av"`
	T  int64   `json:"t"`
}

type wireBar struct {
	S string  `json:"s"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
	T int64   `json:"t"`
}

type wireMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Read streams typed market events and errors. The read loop exits on the
// first connection error; the consumer decides whether to Reconnect.
func (c *Client) Read(ctx context.Context) (<-chan models.MarketEvent, <-chan error) {
	events := make(chan models.MarketEvent, c.opts.ReadBuffer)
	errs := make(chan error, 1)

	go c.pingLoop(ctx)

	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				errs <- fmt.Errorf("feed connection lost")
				return
			}

			_, b, err := conn.ReadMessage()
			if err != nil {
				errs <- fmt.Errorf("feed read: %w", err)
				return
			}
			c.decodeFrame(b, events)
		}
	}()

	return events, errs
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.conn != nil {
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.mu.Unlock()
		}
	}
}

func (c *Client) decodeFrame(b []byte, events chan<- models.MarketEvent) {
	var m wireMessage
	if err := json.Unmarshal(b, &m); err != nil {
		// non-JSON keepalive frames
		return
	}

	switch m.Type {
	case "trade":
		var data []wireTrade
		if err := json.Unmarshal(m.Data, &data); err != nil {
			return
		}
		for _, d := range data {
			t := models.Trade{Symbol: d.S, Price: d.P, Size: d.V, Timestamp: msTime(d.T)}
			c.send(events, models.MarketEvent{Trade: &t})
		}
	case "quote":
		var data []wireQuote
		if err := json.Unmarshal(m.Data, &data); err != nil {
			return
		}
		for _, d := range data {
			q := models.Quote{
				Symbol:    d.S,
				BidPrice:  d.B,
				AskPrice:  d.A,
				BidSize:   d.BV,
				AskSize:   d.AV,
				Timestamp: msTime(d.T),
			}
			c.send(events, models.MarketEvent{Quote: &q})
		}
	case "bar":
		var data []wireBar
		if err := json.Unmarshal(m.Data, &data); err != nil {
			return
		}
		for _, d := range data {
			bar := models.Bar{
				Symbol:    d.S,
				Open:      d.O,
				High:      d.H,
				Low:       d.L,
				Close:     d.C,
				Volume:    d.V,
				Timestamp: msTime(d.T),
			}
			c.send(events, models.MarketEvent{Bar: &bar})
		}
	}
}

func (c *Client) send(events chan<- models.MarketEvent, ev models.MarketEvent) {
	select {
	case events <- ev:
	default:
		// drop on backpressure
	}
}

func msTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Reconnect closes the connection, waits with bounded exponential backoff,
// redials, and replays the tracked subscription set.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()

	c.mu.Lock()
	delay := c.backoff
	c.backoff *= 2
	if c.backoff > c.opts.BackoffMax {
		c.backoff = c.opts.BackoffMax
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
	}

	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx, c.Tracked())
}

// Close closes the connection, keeping the tracked subscription set.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
