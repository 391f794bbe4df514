package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/quickkart/quickkart-backend/internal/app"
	"github.com/quickkart/quickkart-backend/internal/jobs"
	"github.com/quickkart/quickkart-backend/pkg/config"
	"github.com/quickkart/quickkart-backend/pkg/db"
	"github.com/quickkart/quickkart-backend/pkg/logger"
	"github.com/quickkart/quickkart-backend/pkg/metrics"
	"github.com/quickkart/quickkart-backend/pkg/redis"
)

// jobs is triggered by an external scheduler (cron, Cloud Scheduler) one run per invocation.
func main() {
	logg := logger.New(logger.Options{ServiceName: "jobs"})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cliApp := &cli.App{
		Name:  "jobs",
		Usage: "run QuickKart maintenance jobs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "print the registered job names",
				Action: func(*cli.Context) error {
					for _, name := range []string{jobs.SubscriptionJobName, jobs.CartCleanupJobName, jobs.LowStockJobName} {
						fmt.Println(name)
					}
					return nil
				},
			},
			{
				Name:      "run",
				Usage:     "run one job",
				ArgsUsage: "<job-name>",
				Action: func(c *cli.Context) error {
					name := c.Args().First()
					if name == "" {
						return cli.Exit("job name is required", 2)
					}
					return withRunner(c.Context, logg, func(ctx context.Context, runner *jobs.Runner) error {
						err := runner.Trigger(ctx, name)
						if errors.Is(err, jobs.ErrSkipped) {
							logg.Warn(ctx, "job skipped, lock held elsewhere")
							return nil
						}
						return err
					})
				},
			},
			{
				Name:  "run-all",
				Usage: "run every job in registration order",
				Action: func(c *cli.Context) error {
					return withRunner(c.Context, logg, func(ctx context.Context, runner *jobs.Runner) error {
						return runner.TriggerAll(ctx)
					})
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		logg.Error(ctx, "jobs command failed", err)
		stop()
		os.Exit(1)
	}
}

func withRunner(ctx context.Context, logg *logger.Logger, fn func(context.Context, *jobs.Runner) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "jobs",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer dbClient.Close()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	params := app.Params{Config: cfg, Logger: logg, DB: dbClient, Redis: redisClient, Registerer: registry}
	services, err := app.Build(ctx, params)
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}
	defer services.Close()

	runner, err := services.Jobs(params, metrics.NewJobMetrics(registry))
	if err != nil {
		return fmt.Errorf("build job runner: %w", err)
	}

	if cfg.Jobs.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.Jobs.MetricsAddr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "jobs metrics server failed", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	return fn(ctx, runner)
}
