package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/khatabook-backend/pkg/app"
	"github.com/angelmondragon/khatabook-backend/pkg/metrics"
	"github.com/angelmondragon/khatabook-backend/pkg/outbox"
	"github.com/angelmondragon/khatabook-backend/pkg/outbox/registry"
	"github.com/angelmondragon/khatabook-backend/pkg/pubsub"
)

func main() {
	app.Main("outbox-publisher", run)
}

func run(ctx context.Context, rt *app.Runtime) error {
	cfg, logg := rt.Config, rt.Logger

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	rt.OnClose("pubsub", pubsubClient.Close)

	routes, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}
	relay, err := NewService(ServiceParams{
		Config:        cfg.Outbox,
		Logger:        logg,
		DB:            rt.DB,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(rt.DB.DB()),
		Registry:      routes,
		DLQRepository: outbox.NewDLQRepository(rt.DB.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	if addr := cfg.Outbox.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := app.Serve(ctx, srv, 5*time.Second); err != nil {
				logg.Error(ctx, "metrics listener stopped", err)
			}
		}()
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"topics":  routes.Topics(),
		"ordered": cfg.Outbox.OrderByOrderID,
	})
	logg.Info(ctx, "outbox.relay_start")
	return relay.Run(ctx)
}
