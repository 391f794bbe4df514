package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/quickkart/quickkart-backend/pkg/logger"
)

const (
	CartCleanupJobName = "cart-cleanup"
	defaultCartIdleTTL = 60 * time.Minute
)

type idleCartCleaner interface {
	CleanupIdle(ctx context.Context, idle time.Duration) (int64, error)
}

// CartCleanupJob empties carts left untouched for the idle window.
type CartCleanupJob struct {
	carts idleCartCleaner
	idle  time.Duration
	logg  *logger.Logger
}

func NewCartCleanupJob(carts idleCartCleaner, idle time.Duration, logg *logger.Logger) (*CartCleanupJob, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if idle <= 0 {
		idle = defaultCartIdleTTL
	}
	return &CartCleanupJob{carts: carts, idle: idle, logg: logg}, nil
}

func (j *CartCleanupJob) Name() string { return CartCleanupJobName }

func (j *CartCleanupJob) Run(ctx context.Context) error {
	removed, err := j.carts.CleanupIdle(ctx, j.idle)
	if err != nil {
		return err
	}
	j.logg.Info(j.logg.WithField(ctx, "removed_lines", removed), "idle carts cleared")
	return nil
}
