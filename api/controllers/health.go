package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/khatabook-backend/api/responses"
	"github.com/angelmondragon/khatabook-backend/pkg/config"
	"github.com/angelmondragon/khatabook-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	"github.com/angelmondragon/khatabook-backend/pkg/redis"
)

const (
	envHeader          = "X-Khatabook-Env"
	readinessTimeout   = 2 * time.Second
	dependencyDatabase = "database"
	dependencyRedis    = "redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the database and Redis; any failure reports 503.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]db.Pinger{dependencyDatabase: dbP}
		if redisP != nil {
			checks[dependencyRedis] = redisP
		}

		failed := map[string]string{}
		for name, pinger := range checks {
			if pinger == nil {
				failed[name] = "not configured"
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				failed[name] = err.Error()
			}
		}

		if len(failed) > 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(failed))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
