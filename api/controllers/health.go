package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/dontforget-backend/api/responses"
	"github.com/angelmondragon/dontforget-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/dontforget-backend/pkg/errors"
	"github.com/angelmondragon/dontforget-backend/pkg/logger"
)

const readyCheckTimeout = 3 * time.Second

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-DontForget-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each named dependency and reports per-check status.
// Any failed check yields a 503 with the failing checks listed.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-DontForget-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		results := make(map[string]string, len(checks))
		healthy := true
		for name, p := range checks {
			if p == nil {
				results[name] = "skipped"
				continue
			}
			if err := p.Ping(ctx); err != nil {
				healthy = false
				results[name] = "down"
				if logg != nil {
					checkCtx := logg.WithFields(ctx, map[string]any{"check": name, "error": err.Error()})
					logg.Warn(checkCtx, "health.check_failed")
				}
				continue
			}
			results[name] = "up"
		}

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(results))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": results})
	}
}
