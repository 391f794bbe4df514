package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/quickkart/quickkart-backend/api/responses"
	"github.com/quickkart/quickkart-backend/pkg/config"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
	"github.com/quickkart/quickkart-backend/pkg/logger"
)

// Pinger is any backing service the readiness probe checks.
type Pinger interface {
	Ping(context.Context) error
}

const envHeader = "X-QuickKart-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency concurrently and reports 500 if any is down.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		p := pool.New().WithErrors().WithContext(ctx)
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			p.Go(func(ctx context.Context) error {
				if err := dep.Ping(ctx); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, name+" unavailable")
				}
				return nil
			})
		}
		if err := p.Wait(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
