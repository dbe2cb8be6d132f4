// Package holds runs the background sweep that releases unpaid holds once
// their TTL passes. Reads and inserts already ignore lapsed holds; the sweep
// makes the release visible (status and outbox event) without waiting for
// the next booking on that provider.
package holds

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
)

// Expirer flips up to limit lapsed holds to expired and returns them.
type Expirer interface {
	ExpireDue(ctx context.Context, limit int) ([]model.Reservation, error)
}

// CheckoutCloser is optional; when set, released holds also get their
// checkout session closed.
type CheckoutCloser interface {
	ExpireCheckout(ctx context.Context, sessionID string) error
}

type Reaper struct {
	store     Expirer
	checkouts CheckoutCloser
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type ReaperConfig struct {
	Interval  time.Duration
	BatchSize int
}

func NewReaper(store Expirer, checkouts CheckoutCloser, logger *slog.Logger, cfg ReaperConfig) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Reaper{
		store:     store,
		checkouts: checkouts,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error("hold sweep failed", "err", err)
			}
		}
	}
}

// Sweep drains every lapsed hold in batches and returns how many were released.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	total := 0
	for {
		expired, err := r.store.ExpireDue(ctx, r.batchSize)
		if err != nil {
			return total, err
		}
		for _, res := range expired {
			r.logger.Info("hold expired",
				"reservation_id", res.ID,
				"provider_id", res.ProviderID,
				"date", res.Date.Format(model.DateLayout),
				"time", res.StartTime,
			)
			if r.checkouts != nil && res.PaymentSession != "" {
				if err := r.checkouts.ExpireCheckout(ctx, res.PaymentSession); err != nil {
					r.logger.Warn("checkout expire failed", "reservation_id", res.ID, "payment_session", res.PaymentSession, "err", err)
				}
			}
		}
		total += len(expired)
		if len(expired) < r.batchSize || ctx.Err() != nil {
			return total, nil
		}
	}
}
