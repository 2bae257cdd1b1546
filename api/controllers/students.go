package controllers

import (
	"context"
	"net/http"

	"github.com/stayhq-ng/hostelpay-backend/api/responses"
	"github.com/stayhq-ng/hostelpay-backend/api/validators"
	"github.com/stayhq-ng/hostelpay-backend/internal/students"
	"github.com/stayhq-ng/hostelpay-backend/pkg/db/models"
	pkgerrors "github.com/stayhq-ng/hostelpay-backend/pkg/errors"
	"github.com/stayhq-ng/hostelpay-backend/pkg/logger"
)

type studentsService interface {
	Register(ctx context.Context, params students.RegisterParams) (*models.Student, error)
}

type registerStudentRequest struct {
	Email        string `json:"email" validate:"required,email"`
	FullName     string `json:"full_name" validate:"required"`
	Phone        string `json:"phone"`
	MatricNumber string `json:"matric_number"`
	RoomNumber   string `json:"room_number"`
}

// StudentRegister creates the student record once the hostel fee is fully
// paid. Partially paid or unpaid identities are rejected.
func StudentRegister(svc studentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "students service unavailable"))
			return
		}

		var body registerStudentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		student, err := svc.Register(r.Context(), students.RegisterParams{
			Email:        body.Email,
			FullName:     body.FullName,
			Phone:        body.Phone,
			MatricNumber: body.MatricNumber,
			RoomNumber:   body.RoomNumber,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, student)
	}
}
