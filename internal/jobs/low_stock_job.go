package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	"github.com/quickkart/quickkart-backend/pkg/logger"
)

const LowStockJobName = "low-stock-alert"

type lowStockSource interface {
	LowStock(ctx context.Context, threshold int) ([]models.Product, error)
}

type thresholdSource interface {
	Get(ctx context.Context) (*models.Settings, error)
}

type roleNotifier interface {
	NotifyRole(ctx context.Context, role enums.UserRole, extra []string, subject, body string) error
}

// LowStockJob emails admins the products at or below the configured threshold.
type LowStockJob struct {
	stock    lowStockSource
	settings thresholdSource
	notifier roleNotifier
	extra    []string
	logg     *logger.Logger
}

func NewLowStockJob(stock lowStockSource, settings thresholdSource, notifier roleNotifier, adminEmails []string, logg *logger.Logger) (*LowStockJob, error) {
	switch {
	case stock == nil:
		return nil, fmt.Errorf("inventory required")
	case settings == nil:
		return nil, fmt.Errorf("settings required")
	case notifier == nil:
		return nil, fmt.Errorf("notifier required")
	case logg == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &LowStockJob{stock: stock, settings: settings, notifier: notifier, extra: adminEmails, logg: logg}, nil
}

func (j *LowStockJob) Name() string { return LowStockJobName }

func (j *LowStockJob) Run(ctx context.Context) error {
	cfg, err := j.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	products, err := j.stock.LowStock(ctx, cfg.LowStockThreshold)
	if err != nil {
		return fmt.Errorf("list low stock: %w", err)
	}
	if len(products) == 0 {
		j.logg.Info(ctx, "no products below stock threshold")
		return nil
	}

	subject := fmt.Sprintf("Low stock: %d products at or below %d units", len(products), cfg.LowStockThreshold)
	if err := j.notifier.NotifyRole(ctx, enums.UserRoleAdmin, j.extra, subject, lowStockBody(products)); err != nil {
		// alert delivery is best-effort
		j.logg.Warn(j.logg.WithField(ctx, "error", err.Error()), "low stock alert delivery failed")
	}
	j.logg.Info(j.logg.WithField(ctx, "products", len(products)), "low stock alert sent")
	return nil
}

func lowStockBody(products []models.Product) string {
	var b strings.Builder
	b.WriteString("The following products need restocking:\n\n")
	for _, p := range products {
		fmt.Fprintf(&b, "- %s (%s): %d left\n", p.Name, p.ID, p.Stock)
	}
	return b.String()
}
