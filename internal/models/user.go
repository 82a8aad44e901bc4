package models

import "time"

// Role identifies which side of the platform a user acts for.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleWarehouse Role = "warehouse"
	RoleSupplier  Role = "supplier"
	RoleRetailer  Role = "retailer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleWarehouse, RoleSupplier, RoleRetailer:
		return true
	}
	return false
}

// User represents a platform user
type User struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Username     string    `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;not null"`
	Role         Role      `json:"role" gorm:"not null;default:'retailer'"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for User Model
func (User) TableName() string {
	return "users"
}
