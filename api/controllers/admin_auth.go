package controllers

import (
	"context"
	"net/http"

	"github.com/stayhq-ng/hostelpay-backend/api/responses"
	"github.com/stayhq-ng/hostelpay-backend/api/validators"
	"github.com/stayhq-ng/hostelpay-backend/internal/admins"
	pkgerrors "github.com/stayhq-ng/hostelpay-backend/pkg/errors"
	"github.com/stayhq-ng/hostelpay-backend/pkg/logger"
)

type adminAuthService interface {
	Login(ctx context.Context, email, password string) (*admins.LoginResult, error)
}

type adminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminAuthLogin exchanges back-office credentials for a JWT.
func AdminAuthLogin(svc adminAuthService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body adminLoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body.Email, body.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
