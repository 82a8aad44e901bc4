// Package warehouse implements the stock operations that drive inventory sync:
// every committed mutation is pushed to the realtime hub.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"inventory-sync-api/internal/models"
	"inventory-sync-api/internal/realtime"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Notifier is the part of the realtime hub the warehouse service drives.
type Notifier interface {
	BroadcastUpdate(productID, newQuantity int64, action realtime.Action, metadata realtime.Metadata)
	BroadcastBatchUpdate(updates []realtime.Update)
	LoadCacheFromSource(levels []realtime.StockLevel)
	Snapshot() []realtime.SnapshotEntry
}

// Options controls stock policy.
type Options struct {
	// AllowBackorder lets picks and reservations drive available stock negative.
	AllowBackorder bool
}

// Service applies warehouse operations to the store and notifies the hub
// after each commit.
type Service struct {
	db       *gorm.DB
	notifier Notifier
	opts     Options
	logger   *zerolog.Logger

	// mu orders commits and their notifications so the hub cache never holds
	// a value older than the store.
	mu sync.Mutex
}

// NewService creates a Service.
func NewService(db *gorm.DB, notifier Notifier, logger *zerolog.Logger, opts Options) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{db: db, notifier: notifier, opts: opts, logger: logger}
}

// Count is one line of a cycle count.
type Count struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// CreateProduct adds a product with an empty inventory level.
func (s *Service) CreateProduct(ctx context.Context, sku, name string, supplierID *int64) (*models.Product, error) {
	sku = strings.TrimSpace(sku)
	name = strings.TrimSpace(name)
	if sku == "" || name == "" {
		return nil, fmt.Errorf("create product: sku and name are required")
	}

	product := models.Product{SKU: sku, Name: name, SupplierID: supplierID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Product{}).Where("sku = ?", sku).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateSKU
		}
		if err := tx.Create(&product).Error; err != nil {
			return err
		}
		return tx.Create(&models.InventoryLevel{ProductID: product.ID}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create product %q: %w", sku, err)
	}
	return &product, nil
}

// ListProducts returns products ordered by id.
func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Order("id asc").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Receive adds qty units to on-hand stock.
func (s *Service) Receive(ctx context.Context, productID, qty, userID int64, meta realtime.Metadata) (*models.InventoryLevel, error) {
	return s.adjust(ctx, productID, realtime.ActionReceive, userID, meta, func(l *models.InventoryLevel) (int64, error) {
		if qty <= 0 {
			return 0, ErrInvalidQuantity
		}
		l.OnHand += qty
		return qty, nil
	})
}

// Pick removes qty units from on-hand stock.
func (s *Service) Pick(ctx context.Context, productID, qty, userID int64, meta realtime.Metadata) (*models.InventoryLevel, error) {
	return s.adjust(ctx, productID, realtime.ActionPick, userID, meta, func(l *models.InventoryLevel) (int64, error) {
		if qty <= 0 {
			return 0, ErrInvalidQuantity
		}
		if !s.opts.AllowBackorder && l.Available() < qty {
			return 0, ErrInsufficientStock
		}
		l.OnHand -= qty
		return -qty, nil
	})
}

// Reserve holds qty units of available stock for an order.
func (s *Service) Reserve(ctx context.Context, productID, qty, userID int64, meta realtime.Metadata) (*models.InventoryLevel, error) {
	return s.adjust(ctx, productID, realtime.ActionReserve, userID, meta, func(l *models.InventoryLevel) (int64, error) {
		if qty <= 0 {
			return 0, ErrInvalidQuantity
		}
		if !s.opts.AllowBackorder && l.Available() < qty {
			return 0, ErrInsufficientStock
		}
		l.Reserved += qty
		return qty, nil
	})
}

// Release returns qty reserved units to available stock.
func (s *Service) Release(ctx context.Context, productID, qty, userID int64, meta realtime.Metadata) (*models.InventoryLevel, error) {
	return s.adjust(ctx, productID, realtime.ActionRelease, userID, meta, func(l *models.InventoryLevel) (int64, error) {
		if qty <= 0 || qty > l.Reserved {
			return 0, ErrInvalidQuantity
		}
		l.Reserved -= qty
		return -qty, nil
	})
}

func (s *Service) adjust(
	ctx context.Context,
	productID int64,
	action realtime.Action,
	userID int64,
	meta realtime.Metadata,
	apply func(l *models.InventoryLevel) (int64, error),
) (*models.InventoryLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var level models.InventoryLevel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lvl, isNew, err := loadLevel(tx, productID)
		if err != nil {
			return err
		}
		delta, err := apply(&lvl)
		if err != nil {
			return err
		}
		if err := saveLevel(tx, &lvl, isNew); err != nil {
			return err
		}
		if err := recordMovement(tx, lvl, action, delta, userID, meta); err != nil {
			return err
		}
		level = lvl
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s product %d: %w", action, productID, err)
	}

	s.notifier.BroadcastUpdate(productID, level.Available(), action, meta)
	s.logger.Info().
		Int64("product_id", productID).
		Str("action", string(action)).
		Int64("available", level.Available()).
		Int64("user_id", userID).
		Msg("Inventory updated")
	return &level, nil
}

// CycleCount sets on-hand stock for every counted product in one transaction
// and publishes the result as a single batch. A product counted twice keeps
// the later count.
func (s *Service) CycleCount(ctx context.Context, counts []Count, userID int64, meta realtime.Metadata) ([]models.InventoryLevel, error) {
	if len(counts) == 0 {
		return nil, fmt.Errorf("cycle count: %w: no counts", ErrInvalidQuantity)
	}
	for _, c := range counts {
		if c.Quantity < 0 {
			return nil, fmt.Errorf("cycle count product %d: %w", c.ProductID, ErrInvalidQuantity)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	levels := make([]models.InventoryLevel, 0, len(counts))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range counts {
			lvl, isNew, err := loadLevel(tx, c.ProductID)
			if err != nil {
				return fmt.Errorf("product %d: %w", c.ProductID, err)
			}
			delta := c.Quantity - lvl.OnHand
			lvl.OnHand = c.Quantity
			if err := saveLevel(tx, &lvl, isNew); err != nil {
				return err
			}
			if err := recordMovement(tx, lvl, realtime.ActionCycleCount, delta, userID, meta); err != nil {
				return err
			}
			levels = append(levels, lvl)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cycle count: %w", err)
	}

	updates := make([]realtime.Update, 0, len(levels))
	for _, l := range levels {
		updates = append(updates, realtime.Update{
			ProductID:   l.ProductID,
			NewQuantity: l.Available(),
			Action:      realtime.ActionCycleCount,
			Metadata:    meta,
		})
	}
	s.notifier.BroadcastBatchUpdate(updates)
	s.logger.Info().Int("products", len(levels)).Int64("user_id", userID).Msg("Cycle count applied")
	return levels, nil
}

// GetLevel returns the stock level for productID.
func (s *Service) GetLevel(ctx context.Context, productID int64) (*models.InventoryLevel, error) {
	lvl, _, err := loadLevel(s.db.WithContext(ctx), productID)
	if err != nil {
		return nil, fmt.Errorf("get level %d: %w", productID, err)
	}
	return &lvl, nil
}

// ListLevels returns every stored level ordered by product id.
func (s *Service) ListLevels(ctx context.Context) ([]models.InventoryLevel, error) {
	var levels []models.InventoryLevel
	if err := s.db.WithContext(ctx).Order("product_id asc").Find(&levels).Error; err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	return levels, nil
}

// Levels returns the store as a cache source: total_quantity is the available quantity.
func (s *Service) Levels(ctx context.Context) ([]realtime.StockLevel, error) {
	levels, err := s.ListLevels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]realtime.StockLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, realtime.StockLevel{ProductID: l.ProductID, TotalQuantity: l.Available()})
	}
	return out, nil
}

// Movements returns the newest movements for productID, newest first.
func (s *Service) Movements(ctx context.Context, productID int64, limit int) ([]models.InventoryMovement, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var movements []models.InventoryMovement
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id desc").
		Limit(limit).
		Find(&movements).Error
	if err != nil {
		return nil, fmt.Errorf("list movements %d: %w", productID, err)
	}
	return movements, nil
}

// Reconcile reloads the hub cache from the store. With broadcast set, the
// products whose value changed are published as one cycle_count batch.
// It returns how many cached values changed.
func (s *Service) Reconcile(ctx context.Context, broadcast bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	levels, err := s.Levels(ctx)
	if err != nil {
		return 0, fmt.Errorf("reconcile: %w", err)
	}

	cached := make(map[int64]int64)
	for _, e := range s.notifier.Snapshot() {
		cached[e.ProductID] = e.AvailableQuantity
	}
	var changed []realtime.Update
	for _, l := range levels {
		if q, ok := cached[l.ProductID]; !ok || q != l.TotalQuantity {
			changed = append(changed, realtime.Update{
				ProductID:   l.ProductID,
				NewQuantity: l.TotalQuantity,
				Action:      realtime.ActionCycleCount,
				Metadata:    realtime.Metadata{"source": "reconcile"},
			})
		}
	}

	s.notifier.LoadCacheFromSource(levels)
	if broadcast && len(changed) > 0 {
		s.notifier.BroadcastBatchUpdate(changed)
	}
	s.logger.Info().
		Int("products", len(levels)).
		Int("changed", len(changed)).
		Bool("broadcast", broadcast).
		Msg("Inventory reconciled")
	return len(changed), nil
}

func loadLevel(tx *gorm.DB, productID int64) (models.InventoryLevel, bool, error) {
	var product models.Product
	if err := tx.Select("id").First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.InventoryLevel{}, false, ErrNotFound
		}
		return models.InventoryLevel{}, false, err
	}

	var lvl models.InventoryLevel
	err := tx.Where("product_id = ?", productID).First(&lvl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.InventoryLevel{ProductID: productID}, true, nil
	}
	if err != nil {
		return models.InventoryLevel{}, false, err
	}
	return lvl, false, nil
}

func saveLevel(tx *gorm.DB, lvl *models.InventoryLevel, isNew bool) error {
	if isNew {
		return tx.Create(lvl).Error
	}
	return tx.Save(lvl).Error
}

func recordMovement(tx *gorm.DB, lvl models.InventoryLevel, action realtime.Action, delta, userID int64, meta realtime.Metadata) error {
	return tx.Create(&models.InventoryMovement{
		ProductID:     lvl.ProductID,
		Action:        string(action),
		Delta:         delta,
		OnHandAfter:   lvl.OnHand,
		ReservedAfter: lvl.Reserved,
		UserID:        userID,
		Metadata:      meta,
	}).Error
}
