package students

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stayhq-ng/hostelpay-backend/internal/activity"
	"github.com/stayhq-ng/hostelpay-backend/internal/payments"
	"github.com/stayhq-ng/hostelpay-backend/pkg/db/models"
	"github.com/stayhq-ng/hostelpay-backend/pkg/enums"
	pkgerrors "github.com/stayhq-ng/hostelpay-backend/pkg/errors"
	"github.com/stayhq-ng/hostelpay-backend/pkg/logger"
)

// PaymentVerifier computes the payment state gating registration.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, email, phone string) (*payments.VerifyResult, error)
}

// ServiceParams groups dependencies for the student service.
type ServiceParams struct {
	Repo     Repository
	Payments PaymentVerifier
	Activity activity.Repository
	Logger   *logger.Logger
}

// Service registers students once their hostel fee is fully paid.
type Service struct {
	repo       Repository
	paymentSvc PaymentVerifier
	activity   activity.Repository
	logg       *logger.Logger
}

// NewService builds a student service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Payments == nil {
		return nil, errors.New("payment verifier is required")
	}
	if params.Activity == nil {
		return nil, errors.New("activity repository is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		repo:       params.Repo,
		paymentSvc: params.Payments,
		activity:   params.Activity,
		logg:       params.Logger,
	}, nil
}

// RegisterParams carries the registration form fields.
type RegisterParams struct {
	Email        string
	FullName     string
	Phone        string
	MatricNumber string
	RoomNumber   string
}

// Register creates the student row for a fully paid identity. Registration is
// idempotent per email: a second attempt fails with a conflict.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.Student, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	fullName := strings.TrimSpace(params.FullName)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if fullName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "full name is required")
	}

	verification, err := s.paymentSvc.VerifyPayment(ctx, email, params.Phone)
	if err != nil {
		return nil, err
	}
	if !verification.IsFullyPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "hostel fee not fully paid").
			WithDetails(map[string]any{
				"total_paid": verification.TotalPaid,
				"remaining":  verification.RemainingAmount,
			})
	}

	student := &models.Student{
		Email:     email,
		FullName:  fullName,
		PaymentID: verification.PaymentID,
	}
	if phone := strings.TrimSpace(params.Phone); phone != "" {
		student.Phone = &phone
	}
	if matric := strings.TrimSpace(params.MatricNumber); matric != "" {
		student.MatricNumber = &matric
	}
	if room := strings.TrimSpace(params.RoomNumber); room != "" {
		student.RoomNumber = &room
	}

	if err := s.repo.Create(ctx, student); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist student")
	}

	detail, err := json.Marshal(map[string]any{
		"email":      email,
		"student_id": student.ID,
		"payment_id": verification.PaymentID,
	})
	if err == nil {
		entry := &models.ActivityLog{
			Type:        enums.ActivityTypeStudentRegister,
			Description: fmt.Sprintf("student registered: %s", email),
			Detail:      detail,
		}
		if err := s.activity.Create(ctx, entry); err != nil {
			s.logg.Error(ctx, "students.activity_log.write", err)
		}
	}

	logCtx := s.logg.WithEmail(ctx, email)
	s.logg.Info(logCtx, "students.registered")
	return student, nil
}

// Lookup returns the student record for an email, if one exists.
func (s *Service) Lookup(ctx context.Context, email string) (*models.Student, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	student, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find student")
	}
	if student == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "student not found")
	}
	return student, nil
}
