// Package syncclient keeps a local copy of hub inventory over a websocket
// connection, reconnecting with exponential backoff and resubscribing on
// every connection.
package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"inventory-sync-api/internal/realtime"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Status is the connection state surfaced to the UI layer.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusDisconnected Status = "disconnected"
)

// ErrGaveUp is returned by Run once the retry budget is spent.
var ErrGaveUp = errors.New("syncclient: gave up reconnecting")

// Config describes the hub endpoint and the retry policy.
type Config struct {
	URL    string
	UserID int64
	// BaseDelay is the wait before the first retry; each further retry doubles it.
	BaseDelay time.Duration
	// MaxAttempts caps consecutive failed reconnects.
	MaxAttempts int
}

// Event is one decoded server event, handed to OnEvent after local state is updated.
type Event struct {
	Type      string
	Timestamp string
	// Snapshot is set for inventory_snapshot.
	Snapshot []realtime.SnapshotEntry
	// Updates holds one entry for inventory_update and every entry of a batch.
	Updates []realtime.UpdatePayload
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// OnEvent registers a callback invoked for every applied event.
func OnEvent(fn func(Event)) Option {
	return func(c *Client) { c.onEvent = fn }
}

// OnStatus registers a callback invoked on every status transition.
func OnStatus(fn func(Status)) Option {
	return func(c *Client) { c.onStatus = fn }
}

// Client maintains one outbound connection to the hub.
type Client struct {
	cfg      Config
	dialer   *websocket.Dialer
	logger   *zerolog.Logger
	onEvent  func(Event)
	onStatus func(Status)

	mu     sync.RWMutex
	state  map[int64]int64
	status Status
}

// New creates a Client. Run starts it.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		state:  make(map[int64]int64),
		status: StatusDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		nop := zerolog.Nop()
		c.logger = &nop
	}
	return c
}

// newBackOff returns the retry schedule: BaseDelay doubling per attempt,
// no jitter, at most MaxAttempts retries between successful connections.
func newBackOff(cfg Config) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.BaseDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = time.Duration(math.MaxInt64)
	exp.MaxElapsedTime = 0
	exp.Reset()

	attempts := cfg.MaxAttempts
	if attempts < 0 {
		attempts = 0
	}
	return backoff.WithMaxRetries(exp, uint64(attempts))
}

// Run connects and keeps the client in sync until ctx is done or the retry
// budget is exhausted. It returns ctx.Err() on cancellation and wraps
// ErrGaveUp otherwise.
func (c *Client) Run(ctx context.Context) error {
	b := newBackOff(c.cfg)
	c.setStatus(StatusConnecting)

	for attempt := 1; ; attempt++ {
		connected, err := c.session(ctx)
		if ctx.Err() != nil {
			c.setStatus(StatusDisconnected)
			return ctx.Err()
		}
		if connected {
			b.Reset()
			attempt = 1
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			c.setStatus(StatusDisconnected)
			c.logger.Error().Err(err).Int("attempts", attempt).Msg("Giving up on inventory hub")
			return fmt.Errorf("%w after %d attempts: %v", ErrGaveUp, attempt, err)
		}

		c.setStatus(StatusReconnecting)
		c.logger.Warn().Err(err).Dur("retry_in", wait).Int("attempt", attempt).Msg("Inventory hub connection lost")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.setStatus(StatusDisconnected)
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session dials, subscribes and applies events until the connection ends.
// connected reports whether the dial and subscribe succeeded.
func (c *Client) session(ctx context.Context) (connected bool, err error) {
	ws, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	defer ws.Close()

	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	userID := c.cfg.UserID
	if err := ws.WriteJSON(realtime.SubscribeMessage{Type: realtime.MessageSubscribe, UserID: &userID}); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	c.setStatus(StatusConnected)
	c.logger.Info().Str("url", c.cfg.URL).Int64("user_id", userID).Msg("Subscribed to inventory hub")

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		evt, err := decode(data)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Ignoring malformed hub event")
			continue
		}
		if !c.apply(evt) {
			c.logger.Debug().Str("type", evt.Type).Msg("Ignoring unknown hub event")
			continue
		}
		if c.onEvent != nil {
			c.onEvent(evt)
		}
	}
}

type wireEvent struct {
	Type      string                   `json:"type"`
	Timestamp string                   `json:"timestamp"`
	Data      []realtime.SnapshotEntry `json:"data"`
	Updates   []realtime.UpdatePayload `json:"updates"`
	realtime.UpdatePayload
}

func decode(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, err
	}
	evt := Event{Type: w.Type, Timestamp: w.Timestamp}
	switch w.Type {
	case realtime.EventSnapshot:
		evt.Snapshot = w.Data
	case realtime.EventUpdate:
		evt.Updates = []realtime.UpdatePayload{w.UpdatePayload}
	case realtime.EventBatchUpdate:
		evt.Updates = w.Updates
	}
	return evt, nil
}

// apply folds evt into local state. A snapshot replaces everything; updates
// overwrite one product each, in order.
func (c *Client) apply(evt Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch evt.Type {
	case realtime.EventSnapshot:
		c.state = make(map[int64]int64, len(evt.Snapshot))
		for _, e := range evt.Snapshot {
			c.state[e.ProductID] = e.AvailableQuantity
		}
	case realtime.EventUpdate, realtime.EventBatchUpdate:
		for _, u := range evt.Updates {
			c.state[u.ProductID] = u.AvailableQuantity
		}
	default:
		return false
	}
	return true
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	changed := c.status != s
	c.status = s
	c.mu.Unlock()

	if changed && c.onStatus != nil {
		c.onStatus(s)
	}
}

// Status returns the current connection state.
func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Quantity returns the last known available quantity for productID.
func (c *Client) Quantity(productID int64) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.state[productID]
	return q, ok
}

// State returns a copy of the local inventory.
func (c *Client) State() map[int64]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int64]int64, len(c.state))
	for k, v := range c.state {
		out[k] = v
	}
	return out
}
