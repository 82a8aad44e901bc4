package warehouse

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Reconciler periodically reloads the hub cache from the store and publishes
// any drift to connected clients.
type Reconciler struct {
	service  *Service
	interval time.Duration
	logger   *zerolog.Logger
}

// NewReconciler creates a Reconciler. A non-positive interval disables it.
func NewReconciler(service *Service, interval time.Duration, logger *zerolog.Logger) *Reconciler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Reconciler{service: service, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info().Msg("Inventory reconciler disabled")
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.service.Reconcile(ctx, true); err != nil {
				r.logger.Error().Err(err).Msg("Inventory reconcile failed")
			}
		}
	}
}
