package warehouse

import "errors"

var (
	// ErrNotFound indicates the product does not exist.
	ErrNotFound = errors.New("product not found")

	// ErrInvalidQuantity indicates a quantity outside the range an operation accepts.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInsufficientStock indicates the operation would take available stock below zero.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrDuplicateSKU indicates a product with the same SKU already exists.
	ErrDuplicateSKU = errors.New("sku already exists")
)
