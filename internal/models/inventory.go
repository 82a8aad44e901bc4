package models

import "time"

// Product is a sellable item stocked by the warehouse
type Product struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	SKU        string    `json:"sku" gorm:"uniqueIndex;not null"`
	Name       string    `json:"name" gorm:"not null"`
	SupplierID *int64    `json:"supplier_id,omitempty" gorm:"column:supplier_id;index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for Product Model
func (Product) TableName() string {
	return "products"
}

// InventoryLevel is the warehouse's authoritative stock for one product
type InventoryLevel struct {
	ProductID int64     `json:"product_id" gorm:"primaryKey;autoIncrement:false"`
	OnHand    int64     `json:"on_hand" gorm:"not null;default:0"`
	Reserved  int64     `json:"reserved" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for InventoryLevel Model
func (InventoryLevel) TableName() string {
	return "warehouse_inventory"
}

// Available is on-hand stock not held by a reservation.
func (l InventoryLevel) Available() int64 {
	return l.OnHand - l.Reserved
}

// InventoryMovement is an append-only audit row written for every stock mutation
type InventoryMovement struct {
	ID            int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID     int64          `json:"product_id" gorm:"index;not null"`
	Action        string         `json:"action" gorm:"not null"`
	Delta         int64          `json:"delta"`
	OnHandAfter   int64          `json:"on_hand_after"`
	ReservedAfter int64          `json:"reserved_after"`
	UserID        int64          `json:"user_id" gorm:"index"`
	Metadata      map[string]any `json:"metadata" gorm:"serializer:json;type:text"`
	CreatedAt     time.Time      `json:"created_at"`
}

// TableName specifies the table name for InventoryMovement Model
func (InventoryMovement) TableName() string {
	return "inventory_movements"
}

// All lists every model for auto-migration.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&InventoryLevel{},
		&InventoryMovement{},
	}
}
