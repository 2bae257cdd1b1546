package controllers

import (
	"context"
	"net/http"

	"github.com/stayhq-ng/hostelpay-backend/api/responses"
	"github.com/stayhq-ng/hostelpay-backend/api/validators"
	"github.com/stayhq-ng/hostelpay-backend/internal/payments"
	pkgerrors "github.com/stayhq-ng/hostelpay-backend/pkg/errors"
	"github.com/stayhq-ng/hostelpay-backend/pkg/logger"
)

type paymentsService interface {
	InitiatePayment(ctx context.Context, email, phone, fullName string) (*payments.InitiateResult, error)
	CheckStatus(ctx context.Context, email, phone string, includeGateway bool) (*payments.StatusResult, error)
	VerifyPayment(ctx context.Context, email, phone string) (*payments.VerifyResult, error)
}

type initiatePaymentRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required"`
	Phone    string `json:"phone"`
}

// PaymentInitiate creates a gateway invoice and a pending local payment row.
func PaymentInitiate(svc paymentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var body initiatePaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.InitiatePayment(r.Context(), body.Email, body.Phone, body.FullName)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type checkStatusRequest struct {
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone"`
	IncludeGateway bool   `json:"include_gateway"`
}

// PaymentCheckStatus returns local rows and optionally gateway invoices for
// an identity. Backs the public "check my payment" page and admin tooling.
func PaymentCheckStatus(svc paymentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var body checkStatusRequest
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

type verifyPaymentRequest struct {
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}

// PaymentVerify reports whether the identity has fully paid the hostel fee.
func PaymentVerify(svc paymentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var body verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VerifyPayment(r.Context(), body.Email, body.Phone)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
