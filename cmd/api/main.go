package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/khatabook-backend/api/routes"
	"github.com/angelmondragon/khatabook-backend/internal/couriers"
	"github.com/angelmondragon/khatabook-backend/internal/ledger"
	"github.com/angelmondragon/khatabook-backend/internal/notifications"
	"github.com/angelmondragon/khatabook-backend/internal/notifier"
	"github.com/angelmondragon/khatabook-backend/internal/orders"
	"github.com/angelmondragon/khatabook-backend/internal/settlement"
	"github.com/angelmondragon/khatabook-backend/internal/users"
	"github.com/angelmondragon/khatabook-backend/pkg/app"
	"github.com/angelmondragon/khatabook-backend/pkg/metrics"
	"github.com/angelmondragon/khatabook-backend/pkg/outbox"
)

const shutdownTimeout = 15 * time.Second

func main() {
	app.Main("api", run)
}

func run(ctx context.Context, rt *app.Runtime) error {
	cfg, logg, conn := rt.Config, rt.Logger, rt.DB.DB()

	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}

	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)
	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	usersRepo := users.NewRepository(conn)
	couriersRepo := couriers.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)
	inbox := notifications.NewRepository(conn)

	events, err := notifier.FromConfig(cfg.Notifier, logg, outbox.NewService(outbox.NewRepository(conn), logg), redisClient, inbox)
	if err != nil {
		return err
	}
	ledgerService, err := ledger.NewService(ledger.NewRepository(conn), rt.DB, ledgerMetrics, logg)
	if err != nil {
		return err
	}
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Tx:       rt.DB,
		Ledger:   ledgerService,
		Couriers: couriersRepo,
		Users:    usersRepo,
		Events:   events,
		Metrics:  orderMetrics,
		Logger:   logg,
	})
	if err != nil {
		return err
	}
	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Repo:    settlement.NewRepository(conn),
		Orders:  ordersRepo,
		Tx:      rt.DB,
		Ledger:  ledgerService,
		Events:  events,
		Config:  cfg.Settlement,
		Metrics: orderMetrics,
		Logger:  logg,
	})
	if err != nil {
		return err
	}
	couriersService, err := couriers.NewService(couriersRepo, usersRepo, rt.DB)
	if err != nil {
		return err
	}
	notificationsService, err := notifications.NewService(inbox)
	if err != nil {
		return err
	}

	// PORT is injected by the hosting platform and wins over config.
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(
			cfg,
			logg,
			rt.DB,
			redisClient,
			promhttp.Handler(),
			ledgerService,
			ordersService,
			settlementService,
			couriersService,
			notificationsService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logg.Info(logg.WithField(ctx, "addr", server.Addr), "api.listening")
	return app.Serve(ctx, server, shutdownTimeout)
}
