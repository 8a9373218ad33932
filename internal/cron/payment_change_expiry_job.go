package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/khatabook-backend/pkg/logger"
)

const (
	expiryBatchSize  = 100
	expiryMaxBatches = 50
)

// PaymentChangeExpiryJobParams configure the auto-reject of stale courier
// payment change requests.
type PaymentChangeExpiryJobParams struct {
	Logger     *logger.Logger
	Settlement changeRequestExpirer
	BatchSize  int
}

type changeRequestExpirer interface {
	ExpirePending(ctx context.Context, limit int) (int, error)
}

func NewPaymentChangeExpiryJob(params PaymentChangeExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = expiryBatchSize
	}
	return &paymentChangeExpiryJob{
		logg:      params.Logger,
		expirer:   params.Settlement,
		batchSize: batch,
	}, nil
}

type paymentChangeExpiryJob struct {
	logg      *logger.Logger
	expirer   changeRequestExpirer
	batchSize int
}

func (j *paymentChangeExpiryJob) Name() string { return "payment-change-expiry" }

// Run drains expired requests batch by batch. A short batch means nothing
// else is due.
func (j *paymentChangeExpiryJob) Run(ctx context.Context) error {
	total := 0
	for i := 0; i < expiryMaxBatches; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		expired, err := j.expirer.ExpirePending(ctx, j.batchSize)
		total += expired
		if err != nil {
			j.logg.Warn(j.logg.WithField(ctx, "expired", total), "payment change expiry stopped early")
			return fmt.Errorf("expire payment change requests: %w", err)
		}
		if expired < j.batchSize {
			break
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", total), "payment change expiry complete")
	return nil
}
