package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/quickkart/quickkart-backend/internal/subscriptions"
	"github.com/quickkart/quickkart-backend/pkg/logger"
)

const SubscriptionJobName = "subscription-processing"

type dueProcessor interface {
	ProcessDue(ctx context.Context, now time.Time) (subscriptions.RunReport, error)
}

// SubscriptionJob places orders for every subscription that has fallen due.
type SubscriptionJob struct {
	subs dueProcessor
	logg *logger.Logger
	now  func() time.Time
}

func NewSubscriptionJob(subs dueProcessor, logg *logger.Logger) (*SubscriptionJob, error) {
	if subs == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &SubscriptionJob{subs: subs, logg: logg, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (j *SubscriptionJob) Name() string { return SubscriptionJobName }

// Run reports per-subscription failures as the job error after the whole batch is processed.
func (j *SubscriptionJob) Run(ctx context.Context) error {
	report, err := j.subs.ProcessDue(ctx, j.now())
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"due":         report.Due,
		"placed":      report.Placed,
		"deactivated": report.Deactivated,
	}), "subscriptions processed")
	return err
}
