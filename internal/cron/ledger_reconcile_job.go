package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/khatabook-backend/internal/ledger"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	"github.com/angelmondragon/khatabook-backend/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const reconcileBatchSize = 200

// LedgerReconcileJobParams configure the khatabook drift check.
type LedgerReconcileJobParams struct {
	Logger     *logger.Logger
	Repository ledger.Repository
	Metrics    *metrics.LedgerMetrics
	BatchSize  int
	Every      time.Duration
}

func NewLedgerReconcileJob(params LedgerReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = reconcileBatchSize
	}
	return &ledgerReconcileJob{
		logg:      params.Logger,
		repo:      params.Repository,
		metrics:   params.Metrics,
		batchSize: batch,
		every:     params.Every,
	}, nil
}

type ledgerReconcileJob struct {
	logg      *logger.Logger
	repo      ledger.Repository
	metrics   *metrics.LedgerMetrics
	batchSize int
	every     time.Duration
}

func (j *ledgerReconcileJob) Name() string { return "khatabook-reconcile" }

func (j *ledgerReconcileJob) Every() time.Duration { return j.every }

// Run walks every balance tail and compares it with its entry log. Each
// drift is logged, counted and returned so the run is marked failed.
func (j *ledgerReconcileJob) Run(ctx context.Context) error {
	var (
		afterUser  = uuid.Nil
		afterScope string
		checked    int
		errs       error
	)
	for {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		drifts, tails, err := ledger.ReconcileBatch(ctx, j.repo, afterUser, afterScope, j.batchSize)
		for _, drift := range drifts {
			j.metrics.IncDrift(drift.Field)
			j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
				"user_id":   drift.UserID.String(),
				"scope_key": drift.ScopeKey,
				"field":     drift.Field,
				"stored":    drift.Stored,
				"computed":  drift.Computed,
			}), "khatabook tail drift")
			errs = multierr.Append(errs, fmt.Errorf("drift: %s", drift))
		}
		if err != nil {
			return multierr.Append(errs, err)
		}
		checked += len(tails)
		if len(tails) < j.batchSize {
			break
		}
		last := tails[len(tails)-1]
		afterUser, afterScope = last.UserID, last.ScopeKey
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"tails_checked": checked,
		"drifts":        len(multierr.Errors(errs)),
	}), "khatabook reconciliation complete")
	return errs
}
