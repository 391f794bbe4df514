package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/quickkart/quickkart-backend/api/middleware"
	"github.com/quickkart/quickkart-backend/internal/orders"
	pkgerrors "github.com/quickkart/quickkart-backend/pkg/errors"
)

func callerID(r *http.Request) (uuid.UUID, error) {
	id, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return id, nil
}

func callerActor(r *http.Request) (orders.Actor, error) {
	id, err := callerID(r)
	if err != nil {
		return orders.Actor{}, err
	}
	return orders.Actor{UserID: id, Role: middleware.RoleFromContext(r.Context())}, nil
}

func unavailable(name string) error {
	return pkgerrors.Newf(pkgerrors.CodeInternal, "%s service unavailable", name)
}
