package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

// Pack moves a Placed order to Packed and then tries to hand it to the nearest delivery
// partner. Assignment failures never undo the packing.
func (s *service) Pack(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	if !actor.is(enums.UserRoleStaff, enums.UserRoleAdmin) {
		return nil, s.reject(pkgerrors.New(pkgerrors.CodeForbidden, "Only store staff can pack orders"))
	}
	order, err := s.advance(ctx, id, enums.OrderStatusPacked, nil, nil, nil)
	if err != nil {
		return nil, err
	}

	if s.assigner != nil {
		partnerID, err := s.assigner.AutoAssign(ctx, order)
		switch {
		case err != nil:
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"order_id": id.String(), "error": err.Error()}), "auto assignment failed")
		case partnerID == nil:
			s.logg.Info(s.logg.WithOrderID(ctx, id.String()), "no delivery partner available")
		default:
			order.DeliveryPartnerID = partnerID
		}
	}

	s.notifyStatus(ctx, order)
	s.notifyAssignment(ctx, order)
	return order, nil
}

// OutForDelivery hands a packed order to its rider. An unassigned order is claimed by the
// calling partner; a claim race is lost by everyone but the first caller.
func (s *service) OutForDelivery(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	if !actor.is(enums.UserRoleDeliveryPartner, enums.UserRoleAdmin) {
		return nil, s.reject(pkgerrors.New(pkgerrors.CodeForbidden, "Only delivery partners can dispatch orders"))
	}
	current, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	var guard func(*models.Order) error
	switch {
	case current.DeliveryPartnerID == nil && actor.Role == enums.UserRoleAdmin:
		return nil, s.reject(pkgerrors.New(pkgerrors.CodeConflict, "Order has no delivery partner assigned"))
	case current.DeliveryPartnerID == nil:
		fields["delivery_partner_id"] = actor.UserID
		guard = func(o *models.Order) error {
			if o.DeliveryPartnerID != nil {
				return pkgerrors.New(pkgerrors.CodeConflict, "Order was claimed by another delivery partner")
			}
			return nil
		}
	case actor.Role == enums.UserRoleDeliveryPartner && *current.DeliveryPartnerID != actor.UserID:
		return nil, s.reject(pkgerrors.New(pkgerrors.CodeForbidden, "Order is assigned to another delivery partner"))
	}

	order, err := s.advance(ctx, id, enums.OrderStatusOutForDelivery, fields, guard, current.DeliveryPartnerID)
	if err != nil {
		return nil, err
	}
	s.notifyStatus(ctx, order)
	return order, nil
}

// Deliver completes the order. Cash orders are settled on handover.
func (s *service) Deliver(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	if !actor.is(enums.UserRoleDeliveryPartner, enums.UserRoleAdmin) {
		return nil, s.reject(pkgerrors.New(pkgerrors.CodeForbidden, "Only delivery partners can deliver orders"))
	}
	current, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == enums.UserRoleDeliveryPartner &&
		(current.DeliveryPartnerID == nil || *current.DeliveryPartnerID != actor.UserID) {
		return nil, s.reject(pkgerrors.New(pkgerrors.CodeForbidden, "Order is assigned to another delivery partner"))
	}
	partner := current.DeliveryPartnerID

	now := s.now()
	fields := map[string]any{"is_delivered": true, "delivered_at": now}
	if current.PaymentMethod == enums.PaymentMethodCOD && !current.IsPaid {
		fields["is_paid"] = true
		fields["paid_at"] = now
	}
	order, err := s.advance(ctx, id, enums.OrderStatusDelivered, fields, nil, partner)
	if err != nil {
		return nil, err
	}
	s.notifyStatus(ctx, order)
	return order, nil
}

// Cancel returns reserved stock to the shelf. Only orders not yet on the road can be cancelled.
func (s *service) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	current, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UserID != actor.UserID && actor.Role != enums.UserRoleAdmin {
		return nil, s.reject(pkgerrors.New(pkgerrors.CodeForbidden, "Not authorized to cancel this order"))
	}
	if !Cancellable(current.OrderStatus) {
		return nil, s.reject(pkgerrors.New(pkgerrors.CodeConflict, "Order cannot be cancelled at this stage"))
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).Transition(ctx, id, current.OrderStatus, enums.OrderStatusCancelled, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "Order cannot be cancelled at this stage")
		}
		return s.inventory.Release(ctx, tx, stockLinesOf(current))
	})
	if err != nil {
		return nil, s.reject(err)
	}

	s.observe(current.OrderStatus, enums.OrderStatusCancelled)
	order, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifyStatus(ctx, order)
	return order, nil
}

// advance applies a forward transition from whatever status the order is in now. The update is
// conditional on that status so concurrent callers cannot both win. A non-nil partner also
// pins the assigned delivery partner, so a reassignment in between fails the update.
func (s *service) advance(ctx context.Context, id uuid.UUID, to enums.OrderStatus, fields map[string]any, guard func(*models.Order) error, partner *uuid.UUID) (*models.Order, error) {
	current, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if guard != nil {
		if err := guard(current); err != nil {
			return nil, s.reject(err)
		}
	}
	from := current.OrderStatus
	if !CanTransition(from, to) {
		return nil, s.reject(pkgerrors.Newf(pkgerrors.CodeConflict, "Cannot move order from %s to %s", from, to))
	}

	_, claiming := fields["delivery_partner_id"]
	var ok bool
	switch {
	case claiming:
		ok, err = s.repo.UpdateIf(ctx, id, "order_status = ? AND delivery_partner_id IS NULL", []any{from}, withStatus(fields, to))
	case partner != nil:
		ok, err = s.repo.UpdateIf(ctx, id, "order_status = ? AND delivery_partner_id = ?", []any{from, *partner}, withStatus(fields, to))
	default:
		ok, err = s.repo.Transition(ctx, id, from, to, fields)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	if !ok {
		if latest, lerr := s.reload(ctx, id); partner != nil && lerr == nil && latest.OrderStatus == from {
			return nil, s.reject(pkgerrors.New(pkgerrors.CodeConflict, "Order was reassigned to another delivery partner"))
		}
		return nil, s.reject(pkgerrors.Newf(pkgerrors.CodeConflict, "Order is no longer %s", from))
	}

	s.observe(from, to)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"order_id": id.String(), "from": string(from), "to": string(to)}), "order status changed")
	return s.reload(ctx, id)
}

func (s *service) reject(err error) error {
	s.observeRejection(err)
	return err
}

func withStatus(fields map[string]any, to enums.OrderStatus) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["order_status"] = to
	return out
}
