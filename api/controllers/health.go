package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/amendezcabrera/villagelink-backend/api/responses"
	"github.com/amendezcabrera/villagelink-backend/pkg/config"
	"github.com/amendezcabrera/villagelink-backend/pkg/db"
	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
)

const readinessTimeout = 5 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-VillageLink-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes the backing stores and reports each one individually.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				checks["db"] = "down"
				healthy = false
				if logg != nil {
					logg.Error(ctx, "health.db", err)
				}
			} else {
				checks["db"] = "up"
			}
		}

		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				checks["redis"] = "down"
				healthy = false
				if logg != nil {
					logg.Error(ctx, "health.redis", err)
				}
			} else {
				checks["redis"] = "up"
			}
		}

		w.Header().Set("X-VillageLink-Env", cfg.App.Env)
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, status, checks)
	}
}
