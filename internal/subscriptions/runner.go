package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/internal/orders"
	"github.com/quickkart/quickkart-backend/pkg/db/models"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

// ProcessDue places an order for every subscription due at now. Each delivery runs in its own
// transaction; a failing one is deactivated with its error recorded and the pass continues.
func (s *service) ProcessDue(ctx context.Context, now time.Time) (RunReport, error) {
	due, err := s.repo.ListDue(ctx, now)
	if err != nil {
		return RunReport{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list due subscriptions")
	}

	report := RunReport{Due: len(due)}
	var errs error
	for i := range due {
		if err := ctx.Err(); err != nil {
			return report, multierr.Append(errs, err)
		}
		sub := &due[i]
		order, placeErr := s.placeOne(ctx, sub)
		if placeErr == nil {
			report.Placed++
			if order != nil {
				s.orders.AnnouncePlaced(ctx, order)
			}
			continue
		}

		errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", sub.ID, placeErr))
		reason := placeErr.Error()
		if typed := pkgerrors.As(placeErr); typed != nil {
			reason = typed.Message()
		}
		deactivated, err := s.repo.Deactivate(ctx, sub.ID, &reason)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("deactivate subscription %s: %w", sub.ID, err))
			continue
		}
		if deactivated {
			report.Deactivated++
		}
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"subscription_id": sub.ID.String(),
			"user_id":         sub.UserID.String(),
			"reason":          reason,
		}), "subscription deactivated")
	}
	return report, errs
}

// placeOne returns a nil order when another runner already advanced the subscription.
func (s *service) placeOne(ctx context.Context, sub *models.Subscription) (*models.Order, error) {
	serviceable, err := s.stores.IsServiceable(ctx, sub.ShippingAddress.Pincode)
	if err != nil {
		return nil, err
	}
	if !serviceable {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "Delivery is not available for pincode %s", sub.ShippingAddress.Pincode)
	}

	var placed *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.PlaceRecurring(ctx, tx, orders.RecurringOrder{
			UserID:    sub.UserID,
			StoreID:   sub.StoreID,
			ProductID: sub.ProductID,
			Qty:       sub.Quantity,
			Address:   sub.ShippingAddress,
		})
		if err != nil {
			return err
		}
		ok, err := s.repo.Advance(ctx, tx, sub.ID, sub.NextDeliveryDate, sub.Frequency.Next(sub.NextDeliveryDate), order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "advance subscription")
		}
		if !ok {
			return errAlreadyAdvanced
		}
		placed = order
		return nil
	})
	if errors.Is(err, errAlreadyAdvanced) {
		return nil, nil
	}
	return placed, err
}

var errAlreadyAdvanced = errors.New("subscription already advanced")
