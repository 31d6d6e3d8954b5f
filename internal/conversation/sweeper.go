package conversation

import (
	"context"
	"time"

	"github.com/wolfman30/bookline/pkg/logging"
)

// ExpiredDeleter removes conversations past their expiry.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically purges expired conversations so stale context never
// bleeds into a customer's next exchange.
type Sweeper struct {
	store    ExpiredDeleter
	interval time.Duration
	logger   *logging.Logger
}

// NewSweeper creates a sweeper. A non-positive interval defaults to five
// minutes.
func NewSweeper(store ExpiredDeleter, interval time.Duration, logger *logging.Logger) *Sweeper {
	if store == nil {
		panic("conversation: sweeper store cannot be nil")
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.store.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("conversation sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("swept expired conversations", "count", n)
	}
}
