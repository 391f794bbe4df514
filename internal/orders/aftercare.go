package orders

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/quickkart/quickkart-backend/pkg/db/models"
	"github.com/quickkart/quickkart-backend/pkg/enums"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

// Feedback records the customer's one-time rating of a delivered order.
func (s *service) Feedback(ctx context.Context, userID, id uuid.UUID, input FeedbackInput) (*models.Order, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	order, err := s.ownedDelivered(ctx, userID, id, "rate")
	if err != nil {
		return nil, err
	}
	if order.DeliveryRating != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "Feedback already submitted")
	}

	fields := map[string]any{"delivery_rating": input.Rating}
	if comment := strings.TrimSpace(input.Comment); comment != "" {
		fields["delivery_feedback"] = comment
	}
	ok, err := s.repo.UpdateIf(ctx, id, "order_status = ? AND delivery_rating IS NULL", []any{enums.OrderStatusDelivered}, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save feedback")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "Feedback already submitted")
	}
	return s.reload(ctx, id)
}

// ReportIssue files a complaint on a delivered order. Each order takes one issue.
func (s *service) ReportIssue(ctx context.Context, userID, id uuid.UUID, input ReportIssueInput) (*models.Order, error) {
	if !input.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid issue type %q", input.Type)
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}
	order, err := s.ownedDelivered(ctx, userID, id, "report an issue on")
	if err != nil {
		return nil, err
	}
	if order.Issue.Filed() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "An issue has already been reported for this order")
	}

	fields := map[string]any{
		"issue_type":        input.Type,
		"issue_description": description,
		"issue_status":      enums.IssueStatusPending,
		"issue_reported_at": s.now(),
	}
	if input.RequestRefund {
		fields["issue_refund_status"] = enums.RefundStatusPending
	}
	ok, err := s.repo.UpdateIf(ctx, id, "order_status = ? AND issue_type IS NULL", []any{enums.OrderStatusDelivered}, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save issue")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "An issue has already been reported for this order")
	}

	updated, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, notificationFor(updated, "Issue received",
		"We have received your report for order "+shortID(updated.ID)+" and will look into it."))
	return updated, nil
}

// ResolveIssue applies an admin decision to a filed issue and, optionally, its refund.
func (s *service) ResolveIssue(ctx context.Context, id uuid.UUID, input ResolveIssueInput) (*models.Order, error) {
	if !input.Status.IsValid() || input.Status == enums.IssueStatusPending {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid issue status %q", input.Status)
	}
	order, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Issue.Filed() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "No issue reported for this order")
	}
	current := *order.Issue.Status
	if current == enums.IssueStatusResolved || current == enums.IssueStatusRejected {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "Issue is already closed")
	}

	fields := map[string]any{"issue_status": input.Status}
	if resolution := strings.TrimSpace(input.Resolution); resolution != "" {
		fields["issue_resolution"] = resolution
	}
	if input.Status == enums.IssueStatusResolved || input.Status == enums.IssueStatusRejected {
		fields["issue_resolved_at"] = s.now()
	}

	if input.RefundStatus != nil {
		if err := s.refundFields(order, input, fields); err != nil {
			return nil, err
		}
	}

	ok, err := s.repo.UpdateIf(ctx, id, "issue_status = ?", []any{current}, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve issue")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "Issue was updated concurrently")
	}

	updated, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, notificationFor(updated, "Issue update",
		"Your issue for order "+shortID(updated.ID)+" is now "+string(input.Status)+"."))
	return updated, nil
}

func (s *service) refundFields(order *models.Order, input ResolveIssueInput, fields map[string]any) error {
	decision := *input.RefundStatus
	if !decision.IsValid() || decision == enums.RefundStatusPending {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid refund status %q", decision)
	}
	if order.Issue.RefundStatus == nil || *order.Issue.RefundStatus != enums.RefundStatusPending {
		return pkgerrors.New(pkgerrors.CodeConflict, "No pending refund request for this order")
	}
	fields["issue_refund_status"] = decision
	if decision != enums.RefundStatusApproved {
		return nil
	}

	amount := order.TotalPrice
	if input.RefundAmount != nil {
		amount = *input.RefundAmount
	}
	if !amount.IsPositive() || amount.GreaterThan(order.TotalPrice) {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive and not exceed the order total")
	}
	fields["issue_refund_amount"] = amount.Round(2)
	return nil
}

func (s *service) ownedDelivered(ctx context.Context, userID, id uuid.UUID, verb string) (*models.Order, error) {
	order, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.Newf(pkgerrors.CodeForbidden, "Not authorized to %s this order", verb)
	}
	if order.OrderStatus != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "Order has not been delivered yet")
	}
	return order, nil
}
