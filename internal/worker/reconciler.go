// Package worker runs background jobs that keep transaction records in step with vPOS.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/DanielPopoola/vpos-gateway/internal/core/domain"
	"github.com/DanielPopoola/vpos-gateway/internal/core/ports"
)

type ReconcilerService interface {
	CheckAndApply(ctx context.Context, t *domain.Transaction, blockUntilDone bool) (*domain.Outcome, error)
}

// Reconciler polls vPOS for requested transactions whose outcome never
// arrived, for example because a webhook was lost.
type Reconciler struct {
	repo      ports.TransactionRepository
	service   ReconcilerService
	interval  time.Duration
	minAge    time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewReconciler(
	repo ports.TransactionRepository,
	service ReconcilerService,
	interval time.Duration,
	minAge time.Duration,
	batchSize int,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		repo:      repo,
		service:   service,
		interval:  interval,
		minAge:    minAge,
		batchSize: batchSize,
		logger:    logger.With("component", "reconciler"),
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("starting background reconciler",
		"interval", r.interval,
		"min_age", r.minAge,
		"batch_size", r.batchSize,
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping background reconciler")
			return
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

// RunOnce executes a single reconciliation cycle and returns how many
// transactions received an outcome.
func (r *Reconciler) RunOnce(ctx context.Context) int {
	return r.run(ctx)
}

func (r *Reconciler) run(ctx context.Context) int {
	unresolved, err := r.repo.FindUnresolved(ctx, r.minAge, r.batchSize)
	if err != nil {
		r.logger.Error("failed to fetch unresolved transactions", "error", err)
		return 0
	}

	if len(unresolved) == 0 {
		return 0
	}

	r.logger.Info("reconciling unresolved transactions", "count", len(unresolved))

	resolved := 0
	for _, t := range unresolved {
		if ctx.Err() != nil {
			break
		}

		outcome, err := r.service.CheckAndApply(ctx, t, false)
		if err != nil {
			r.logger.Error("reconciliation failed for transaction", "transaction_id", t.ID, "error", err)
			r.markChecked(ctx, t)
			continue
		}
		if outcome == nil {
			r.markChecked(ctx, t)
			continue
		}

		resolved++
		r.logger.Info("successfully reconciled transaction",
			"transaction_id", t.ID,
			"status", outcome.Status,
		)
	}
	return resolved
}

// markChecked moves t behind records not yet looked at, so a batch full of
// requests vPOS never resolves cannot starve the rest.
func (r *Reconciler) markChecked(ctx context.Context, t *domain.Transaction) {
	if err := r.repo.MarkChecked(ctx, t.ID); err != nil {
		r.logger.Warn("failed to record status check", "transaction_id", t.ID, "error", err)
	}
}
