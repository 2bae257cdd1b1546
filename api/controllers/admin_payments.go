package controllers

import (
	"context"
	"net/http"

	"github.com/stayhq-ng/hostelpay-backend/api/responses"
	"github.com/stayhq-ng/hostelpay-backend/api/validators"
	"github.com/stayhq-ng/hostelpay-backend/internal/reconcile"
	pkgerrors "github.com/stayhq-ng/hostelpay-backend/pkg/errors"
	"github.com/stayhq-ng/hostelpay-backend/pkg/logger"
)

type reconcileEngine interface {
	SyncAll(ctx context.Context) (*reconcile.SyncSummary, error)
	SyncEmail(ctx context.Context, email string) (*reconcile.SyncSummary, error)
	CleanupDuplicates(ctx context.Context, email string) (*reconcile.CleanupResult, error)
}

// AdminSyncAll reconciles the most recent gateway invoices against local
// rows. Triggered from an admin button, never scheduled.
func AdminSyncAll(engine reconcileEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile engine unavailable"))
			return
		}

		summary, err := engine.SyncAll(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

type syncEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// AdminSyncEmail reconciles gateway invoices for a single customer email.
func AdminSyncEmail(engine reconcileEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile engine unavailable"))
			return
		}

		var body syncEmailRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := engine.SyncEmail(r.Context(), body.Email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

type cleanupDuplicatesRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// AdminCleanupDuplicates collapses duplicate payment rows for an email to
// the newest one, reconciled against gateway truth.
func AdminCleanupDuplicates(engine reconcileEngine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if engine == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile engine unavailable"))
			return
		}

		var body cleanupDuplicatesRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := engine.CleanupDuplicates(r.Context(), body.Email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type adminCheckRequest struct {
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone"`
	IncludeGateway bool   `json:"include_gateway"`
}

// AdminPaymentCheck is the manual-check tool: local rows plus gateway
// invoices for one identity.
func AdminPaymentCheck(svc paymentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var body adminCheckRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CheckStatus(r.Context(), body.Email, body.Phone, body.IncludeGateway)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
