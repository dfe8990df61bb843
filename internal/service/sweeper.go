package service

import (
	"context"
	"log/slog"
	"time"
)

// AggregateSweeper is the slice of the L3 store the sweep job needs.
type AggregateSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Sweeper periodically deletes expired rows from the L3 aggregate
// store. L1 and L2 expire entries on their own; only the relational
// tier accumulates dead rows without help.
type Sweeper struct {
	store AggregateSweeper
	log   *slog.Logger
}

// NewSweeper creates a Sweeper over the given store.
func NewSweeper(store AggregateSweeper, log *slog.Logger) *Sweeper {
	return &Sweeper{store: store, log: log}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.log.Warn("aggregate sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce performs a single sweep pass.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	n, err := s.store.SweepExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Info("swept expired aggregates", "rows", n)
	}
	return nil
}
