package payments

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gatherhub/backend/internal/sepay"
)

// TransactionSource is the poll-capable side of the bank aggregator.
type TransactionSource interface {
	ListTransactions(ctx context.Context, since time.Time, limit int) ([]sepay.Transaction, error)
}

// Poller periodically pulls recent bank transactions and feeds them through
// the reconciler, as a safety net for webhook pushes that never arrived. A
// cycle that fails for any reason is logged and dropped; the next tick is the
// retry mechanism.
type Poller struct {
	source   TransactionSource
	rec      *Reconciler
	interval time.Duration
	lookback time.Duration
	pageSize int
	running  atomic.Bool
	logger   *zap.Logger
}

// NewPoller creates a transaction poller.
func NewPoller(source TransactionSource, rec *Reconciler, interval, lookback time.Duration, pageSize int, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		source:   source,
		rec:      rec,
		interval: interval,
		lookback: lookback,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Run ticks until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("transaction poller started",
		zap.Duration("interval", p.interval),
		zap.Duration("lookback", p.lookback))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("transaction poller stopping")
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single poll cycle. If a previous cycle is still in
// flight the tick is skipped, so overlapping runs never race.
func (p *Poller) RunOnce(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		p.logger.Warn("previous poll cycle still running, skipping tick")
		return
	}
	defer p.running.Store(false)

	since := time.Now().Add(-p.lookback)
	records, err := p.source.ListTransactions(ctx, since, p.pageSize)
	if err != nil {
		p.logger.Warn("poll cycle skipped", zap.Error(err))
		return
	}
	if len(records) == 0 {
		return
	}

	// The provider returns newest first. Process oldest first so that when
	// several transactions could satisfy the same order, the earliest
	// legitimate one wins.
	for i := len(records) - 1; i >= 0; i-- {
		if err := p.rec.ProcessOne(ctx, records[i]); err != nil {
			p.logger.Error("reconcile polled transaction failed",
				zap.String("reference", records[i].ReferenceNumber),
				zap.Error(err))
		}
	}
	p.logger.Debug("poll cycle finished", zap.Int("records", len(records)))
}
