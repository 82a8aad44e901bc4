package realtime

// Message types on the wire.
const (
	MessageSubscribe = "subscribe"

	EventSnapshot    = "inventory_snapshot"
	EventUpdate      = "inventory_update"
	EventBatchUpdate = "inventory_batch_update"
)

// timestampLayout renders ISO-8601 UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Action describes why an available quantity changed. The hub carries it
// through to clients without interpreting it.
type Action string

const (
	ActionReceive    Action = "receive"
	ActionPick       Action = "pick"
	ActionCycleCount Action = "cycle_count"
	ActionReserve    Action = "reserve"
	ActionRelease    Action = "release"
)

// Valid reports whether a is one of the known action tags.
func (a Action) Valid() bool {
	switch a {
	case ActionReceive, ActionPick, ActionCycleCount, ActionReserve, ActionRelease:
		return true
	}
	return false
}

// Metadata is free-form context attached to an update (order id, bin, operator...).
type Metadata map[string]any

// orEmpty keeps nil metadata encoding as {} instead of null.
func (m Metadata) orEmpty() Metadata {
	if m == nil {
		return Metadata{}
	}
	return m
}

// Update is one entry of a batch broadcast.
type Update struct {
	ProductID   int64
	NewQuantity int64
	Action      Action
	Metadata    Metadata
}

// StockLevel is one row of an authoritative source snapshot used to seed the cache.
type StockLevel struct {
	ProductID     int64 `json:"product_id"`
	TotalQuantity int64 `json:"total_quantity"`
}

// SubscribeMessage is the only message a client sends.
type SubscribeMessage struct {
	Type   string `json:"type"`
	UserID *int64 `json:"userId"`
}

// SnapshotEntry is one product in a snapshot event.
type SnapshotEntry struct {
	ProductID         int64 `json:"product_id"`
	AvailableQuantity int64 `json:"available_quantity"`
}

// SnapshotEvent carries the full cache, sent once per subscription.
type SnapshotEvent struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Data      []SnapshotEntry `json:"data"`
}

// UpdatePayload is the wire form of a single product change.
type UpdatePayload struct {
	ProductID         int64    `json:"product_id"`
	AvailableQuantity int64    `json:"available_quantity"`
	Action            Action   `json:"action"`
	Metadata          Metadata `json:"metadata"`
}

// UpdateEvent carries one product change.
type UpdateEvent struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	UpdatePayload
}

// BatchUpdateEvent carries several product changes applied together.
type BatchUpdateEvent struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Updates   []UpdatePayload `json:"updates"`
}
