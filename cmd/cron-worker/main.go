package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/khatabook-backend/internal/cron"
	"github.com/angelmondragon/khatabook-backend/internal/ledger"
	"github.com/angelmondragon/khatabook-backend/internal/notifications"
	"github.com/angelmondragon/khatabook-backend/internal/notifier"
	"github.com/angelmondragon/khatabook-backend/internal/orders"
	"github.com/angelmondragon/khatabook-backend/internal/settlement"
	"github.com/angelmondragon/khatabook-backend/pkg/app"
	"github.com/angelmondragon/khatabook-backend/pkg/instance"
	"github.com/angelmondragon/khatabook-backend/pkg/metrics"
	"github.com/angelmondragon/khatabook-backend/pkg/outbox"
)

func main() {
	app.Main("cron-worker", run)
}

func run(ctx context.Context, rt *app.Runtime) error {
	cfg, logg, conn := rt.Config, rt.Logger, rt.DB.DB()

	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), instance.ID(), 0)
	if err != nil {
		return err
	}

	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)
	outboxRepo := outbox.NewRepository(conn)
	inbox := notifications.NewRepository(conn)
	ledgerRepo := ledger.NewRepository(conn)

	events, err := notifier.FromConfig(cfg.Notifier, logg, outbox.NewService(outboxRepo, logg), redisClient, inbox)
	if err != nil {
		return err
	}
	ledgerService, err := ledger.NewService(ledgerRepo, rt.DB, ledgerMetrics, logg)
	if err != nil {
		return err
	}
	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Repo:    settlement.NewRepository(conn),
		Orders:  orders.NewRepository(conn),
		Tx:      rt.DB,
		Ledger:  ledgerService,
		Events:  events,
		Config:  cfg.Settlement,
		Metrics: metrics.NewOrderMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	jobs, err := buildJobs(
		func() (cron.Job, error) {
			return cron.NewPaymentChangeExpiryJob(cron.PaymentChangeExpiryJobParams{Logger: logg, Settlement: settlementService})
		},
		func() (cron.Job, error) {
			return cron.NewLedgerReconcileJob(cron.LedgerReconcileJobParams{
				Logger:     logg,
				Repository: ledgerRepo,
				Metrics:    ledgerMetrics,
				Every:      cfg.Cron.DailyJobInterval,
			})
		},
		func() (cron.Job, error) {
			return cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
				Logger:         logg,
				DB:             rt.DB,
				Outbox:         outboxRepo,
				DeadLetters:    outbox.NewDLQRepository(conn),
				OutboxDays:     cfg.Cron.OutboxRetentionDays,
				DeadLetterDays: cfg.Cron.DLQRetentionDays,
				Every:          cfg.Cron.DailyJobInterval,
			})
		},
		func() (cron.Job, error) {
			return cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
				Logger:     logg,
				Repository: inbox,
				Retention:  cfg.Cron.NotificationRetentionDays,
				Every:      cfg.Cron.DailyJobInterval,
			})
		},
	)
	if err != nil {
		return err
	}

	registry := cron.NewRegistry(jobs...)
	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithField(ctx, "jobs", registry.Names())
	logg.Info(ctx, "cron.scheduler_start")
	return scheduler.Run(ctx)
}

// buildJobs stops at the first constructor that fails.
func buildJobs(builders ...func() (cron.Job, error)) ([]cron.Job, error) {
	jobs := make([]cron.Job, 0, len(builders))
	for _, build := range builders {
		job, err := build()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
