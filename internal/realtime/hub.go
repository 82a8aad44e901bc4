package realtime

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"inventory-sync-api/internal/cache"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Conn represents a single subscriber connection.
// The network side is managed by the websocket adapter; tests supply fakes.
type Conn interface {
	ID() string
	// Open reports whether the connection can still be written to.
	Open() bool
	// Send enqueues a message without blocking; false means it was not accepted.
	Send(message []byte) bool
}

// Options tunes the websocket side of the hub.
type Options struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

// DefaultOptions returns the values used when an option is left zero.
func DefaultOptions() Options {
	return Options{
		SendBuffer:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 1024,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	return o
}

// Hub maintains subscriber connections and the last-known available quantity
// per product, and fans inventory changes out to every open connection.
//
// mu guards the registry and the cache together: a cache write, the event it
// produces and the enqueue to each connection happen atomically, so every
// connection sees events in call order and a snapshot is never followed by an
// update it already contains.
type Hub struct {
	mu          sync.Mutex
	subscribers map[int64]map[Conn]struct{}
	owners      map[Conn]int64
	inventory   cache.Store[int64, int64]
	accepted    map[*wsConn]struct{}

	opts     Options
	upgrader websocket.Upgrader
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewHub creates an empty hub.
func NewHub(logger *zerolog.Logger, opts Options) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		subscribers: make(map[int64]map[Conn]struct{}),
		owners:      make(map[Conn]int64),
		inventory:   cache.NewMapStore[int64, int64](cache.Options{ConcurrencySafe: false}),
		accepted:    make(map[*wsConn]struct{}),
		opts:        opts.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Subscribers are not authenticated; any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		now:    time.Now,
	}
}

func (h *Hub) timestamp() string {
	return h.now().UTC().Format(timestampLayout)
}

// HandleMessage processes one inbound frame. Malformed frames and unknown
// types are logged and dropped; the connection stays open.
func (h *Hub) HandleMessage(conn Conn, raw []byte) {
	var msg SubscribeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Warn().Err(err).Str("conn_id", conn.ID()).Msg("Ignoring malformed WebSocket message")
		return
	}

	switch msg.Type {
	case MessageSubscribe:
		if msg.UserID == nil {
			h.logger.Warn().Str("conn_id", conn.ID()).Msg("Ignoring subscribe without userId")
			return
		}
		h.Subscribe(conn, *msg.UserID)
	default:
		h.logger.Debug().Str("conn_id", conn.ID()).Str("type", msg.Type).Msg("Ignoring unknown message type")
	}
}

// Subscribe registers conn under userID and sends it a snapshot of the cache.
// A connection that subscribes again moves to the new identity.
func (h *Hub) Subscribe(conn Conn, userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.owners[conn]; ok && prev != userID {
		h.removeLocked(conn)
	}
	if _, ok := h.subscribers[userID]; !ok {
		h.subscribers[userID] = make(map[Conn]struct{})
	}
	h.subscribers[userID][conn] = struct{}{}
	h.owners[conn] = userID

	h.logger.Info().
		Str("conn_id", conn.ID()).
		Int64("user_id", userID).
		Int("total_clients", len(h.owners)).
		Msg("WebSocket client subscribed")

	h.sendSnapshotLocked(conn)
}

// Remove drops conn from the registry. Removing an unknown connection is a no-op.
func (h *Hub) Remove(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.removeLocked(conn) {
		h.logger.Info().
			Str("conn_id", conn.ID()).
			Int("total_clients", len(h.owners)).
			Msg("WebSocket client unsubscribed")
	}
}

func (h *Hub) removeLocked(conn Conn) bool {
	userID, ok := h.owners[conn]
	if !ok {
		return false
	}
	delete(h.owners, conn)
	if conns, ok := h.subscribers[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.subscribers, userID)
		}
	}
	return true
}

// SendSnapshot sends the current cache to conn if it is open.
func (h *Hub) SendSnapshot(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendSnapshotLocked(conn)
}

func (h *Hub) sendSnapshotLocked(conn Conn) {
	if !conn.Open() {
		return
	}
	evt := SnapshotEvent{
		Type:      EventSnapshot,
		Timestamp: h.timestamp(),
		Data:      h.snapshotLocked(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal inventory snapshot")
		return
	}
	if !conn.Send(data) {
		h.logger.Warn().Str("conn_id", conn.ID()).Msg("Failed to send inventory snapshot")
	}
}

// snapshotLocked returns the cache contents ordered by product id.
func (h *Hub) snapshotLocked() []SnapshotEntry {
	entries := make([]SnapshotEntry, 0, h.inventory.Len())
	h.inventory.Range(func(productID, qty int64) bool {
		entries = append(entries, SnapshotEntry{ProductID: productID, AvailableQuantity: qty})
		return true
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].ProductID < entries[j].ProductID })
	return entries
}

// Snapshot returns a copy of the cache ordered by product id.
func (h *Hub) Snapshot() []SnapshotEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// BroadcastUpdate overwrites the cached quantity for productID and sends one
// inventory_update event to every open connection. Delivery is best-effort;
// the cache write always applies.
func (h *Hub) BroadcastUpdate(productID, newQuantity int64, action Action, metadata Metadata) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.inventory.Set(productID, newQuantity)
	evt := UpdateEvent{
		Type:      EventUpdate,
		Timestamp: h.timestamp(),
		UpdatePayload: UpdatePayload{
			ProductID:         productID,
			AvailableQuantity: newQuantity,
			Action:            action,
			Metadata:          metadata.orEmpty(),
		},
	}
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error().Err(err).Int64("product_id", productID).Msg("Failed to marshal inventory update")
		return
	}
	h.fanoutLocked(EventUpdate, data)
}

// BroadcastBatchUpdate applies updates to the cache in order (later entries
// for the same product win) and sends them as a single
// inventory_batch_update event to every open connection.
func (h *Hub) BroadcastBatchUpdate(updates []Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	payloads := make([]UpdatePayload, 0, len(updates))
	for _, u := range updates {
		h.inventory.Set(u.ProductID, u.NewQuantity)
		payloads = append(payloads, UpdatePayload{
			ProductID:         u.ProductID,
			AvailableQuantity: u.NewQuantity,
			Action:            u.Action,
			Metadata:          u.Metadata.orEmpty(),
		})
	}
	evt := BatchUpdateEvent{
		Type:      EventBatchUpdate,
		Timestamp: h.timestamp(),
		Updates:   payloads,
	}
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error().Err(err).Int("updates", len(updates)).Msg("Failed to marshal inventory batch update")
		return
	}
	h.fanoutLocked(EventBatchUpdate, data)
}

func (h *Hub) fanoutLocked(eventType string, data []byte) {
	sent, skipped, failed := 0, 0, 0
	for _, conns := range h.subscribers {
		for c := range conns {
			if !c.Open() {
				skipped++
				continue
			}
			if c.Send(data) {
				sent++
			} else {
				failed++
			}
		}
	}
	h.logger.Debug().
		Str("event_type", eventType).
		Int("sent", sent).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("Event broadcasted")
}

// LoadCacheFromSource overwrites cache entries from an authoritative source.
// It does not broadcast; callers follow up with BroadcastBatchUpdate if
// connected clients should see the values.
func (h *Hub) LoadCacheFromSource(levels []StockLevel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, l := range levels {
		h.inventory.Set(l.ProductID, l.TotalQuantity)
	}
	h.logger.Info().Int("products", len(levels)).Msg("Inventory cache loaded")
}

// AvailableQuantity returns the cached quantity, or 0 for an unseen product.
func (h *Hub) AvailableQuantity(productID int64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inventory.GetOr(productID, 0)
}

// ClientCount returns the number of subscribed connections across all identities.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.owners)
}

// SubscriberCount returns the number of distinct subscribed identities.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
