package scheduler

import (
	"context"
	"time"

	"github.com/Caskiuz/nemymarket.git/internal/audit"
	"github.com/Caskiuz/nemymarket.git/internal/heldfunds"
	"github.com/Caskiuz/nemymarket.git/internal/logger"
	"github.com/Caskiuz/nemymarket.git/internal/metrics"
	"github.com/Caskiuz/nemymarket.git/internal/settlement"
	"github.com/Caskiuz/nemymarket.git/internal/withdrawals"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	releaseBatchSize    = 200
	withdrawalBatchSize = 50
	reconcileBatchSize  = 100
	reconcileGrace      = 15 * time.Minute
	auditRetention      = 90 * 24 * time.Hour
)

// Scheduler owns the background side of the ledger: releasing matured
// holds, paying out approved withdrawals, re-driving orders that missed
// their hold and trimming the audit log. Each job swallows per-item
// failures so one bad record cannot stall the queue behind it.
type Scheduler struct {
	held     heldfunds.HeldFundService
	wd       withdrawals.WithdrawalService
	settle   settlement.SettlementService
	auditor  audit.DatabaseAudit
	interval time.Duration
}

func NewScheduler(held heldfunds.HeldFundService, wd withdrawals.WithdrawalService, settle settlement.SettlementService, auditor audit.DatabaseAudit, interval time.Duration) *Scheduler {
	return &Scheduler{held: held, wd: wd, settle: settle, auditor: auditor, interval: interval}
}

func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loop(ctx, "release_holds", s.interval, s.releaseDueHolds) })
	g.Go(func() error { return s.loop(ctx, "process_withdrawals", s.interval, s.processWithdrawals) })
	g.Go(func() error { return s.loop(ctx, "reconcile_orders", s.interval, s.reconcileOrders) })
	g.Go(func() error { return s.loop(ctx, "purge_audit", 24*time.Hour, s.purgeAudit) })
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, job func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("stopping job", zap.String("job", name))
			return nil
		case <-ticker.C:
			metrics.JobRuns.WithLabelValues(name).Inc()
			if err := job(ctx); err != nil {
				metrics.JobFailures.WithLabelValues(name).Inc()
				logger.Log.Error("job run failed", zap.String("job", name), zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) releaseDueHolds(ctx context.Context) error {
	due, err := s.held.ListDue(ctx, time.Now(), releaseBatchSize)
	if err != nil {
		return err
	}
	for _, hf := range due {
		if err = s.held.Release(ctx, hf.OrderID); err != nil {
			logger.Log.Error("failed to release held funds",
				zap.String("order", hf.OrderID), zap.Error(err))
			continue
		}
		metrics.JobItems.WithLabelValues("release_holds").Inc()
		logger.Log.Info("released held funds", zap.String("order", hf.OrderID))
	}
	return nil
}

func (s *Scheduler) processWithdrawals(ctx context.Context) error {
	done, err := s.wd.ProcessApproved(ctx, withdrawalBatchSize)
	if err != nil {
		return err
	}
	metrics.JobItems.WithLabelValues("process_withdrawals").Add(float64(done))
	return nil
}

func (s *Scheduler) reconcileOrders(ctx context.Context) error {
	fixed, err := s.settle.ReconcileStale(ctx, reconcileGrace, reconcileBatchSize)
	if err != nil {
		return err
	}
	metrics.JobItems.WithLabelValues("reconcile_orders").Add(float64(fixed))
	return nil
}

func (s *Scheduler) purgeAudit(ctx context.Context) error {
	purged, err := s.auditor.PurgeOlderThan(ctx, time.Now().Add(-auditRetention))
	if err != nil {
		return err
	}
	if purged > 0 {
		logger.Log.Info("purged audit entries", zap.Int64("count", purged))
	}
	return nil
}
