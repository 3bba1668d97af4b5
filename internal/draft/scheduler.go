package draft

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Watched is a draft source that can say whether it currently holds anything.
type Watched interface {
	Source
	IsEmpty() bool
}

// Scheduler saves drafts on a fixed interval while the watched cart is
// non-empty. The ticker is armed and disarmed from cart transitions; Nudge
// is meant to be registered as the cart's transition hook.
type Scheduler struct {
	keeper   *Keeper
	cart     Watched
	interval time.Duration
	logger   *zap.Logger
	wake     chan struct{}
	armed    atomic.Bool
}

func NewScheduler(keeper *Keeper, cart Watched, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		keeper:   keeper,
		cart:     cart,
		interval: interval,
		logger:   logger.Named("draft-scheduler"),
		wake:     make(chan struct{}, 1),
	}
}

func (s *Scheduler) Nudge(bool) {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Armed() bool {
	return s.armed.Load()
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	disarm := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
			s.armed.Store(false)
			s.logger.Debug("autosave disarmed")
		}
	}
	reconcile := func() {
		if s.cart.IsEmpty() {
			disarm()
			return
		}
		if ticker == nil {
			ticker = time.NewTicker(s.interval)
			tick = ticker.C
			s.armed.Store(true)
			s.logger.Debug("autosave armed", zap.Duration("interval", s.interval))
		}
	}

	reconcile()
	for {
		select {
		case <-ctx.Done():
			disarm()
			return
		case <-s.wake:
			reconcile()
		case <-tick:
			saved, err := s.keeper.Save(ctx, s.cart)
			if err != nil {
				s.logger.Warn("autosave failed", zap.Error(err))
				continue
			}
			if !saved {
				disarm()
			}
		}
	}
}
