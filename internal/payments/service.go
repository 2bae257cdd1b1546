package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stayhq-ng/hostelpay-backend/internal/activity"
	"github.com/stayhq-ng/hostelpay-backend/pkg/config"
	"github.com/stayhq-ng/hostelpay-backend/pkg/db/models"
	"github.com/stayhq-ng/hostelpay-backend/pkg/enums"
	pkgerrors "github.com/stayhq-ng/hostelpay-backend/pkg/errors"
	"github.com/stayhq-ng/hostelpay-backend/pkg/logger"
	"github.com/stayhq-ng/hostelpay-backend/pkg/paycashless"
)

// Gateway is the subset of the Paycashless client used by the payment service.
type Gateway interface {
	CreateInvoice(ctx context.Context, params paycashless.CreateInvoiceParams) (*paycashless.Invoice, error)
	FindInvoicesByCustomer(ctx context.Context, email, phone string) ([]paycashless.Invoice, error)
}

// RegistrationChecker reports whether a student row already exists for an email.
type RegistrationChecker interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// ServiceParams groups dependencies for the payment service.
type ServiceParams struct {
	Repo        Repository
	Students    RegistrationChecker
	Gateway     Gateway
	Activity    activity.Repository
	Payment     config.PaymentConfig
	Paycashless config.PaycashlessConfig
	Logger      *logger.Logger
}

// Service orchestrates fee payment verification and initiation.
type Service struct {
	repo       Repository
	students   RegistrationChecker
	gateway    Gateway
	activity   activity.Repository
	paymentCfg config.PaymentConfig
	gatewayCfg config.PaycashlessConfig
	logg       *logger.Logger
}

// NewService builds a payment service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Students == nil {
		return nil, errors.New("students checker is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("gateway client is required")
	}
	if params.Activity == nil {
		return nil, errors.New("activity repository is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		repo:       params.Repo,
		students:   params.Students,
		gateway:    params.Gateway,
		activity:   params.Activity,
		paymentCfg: params.Payment,
		gatewayCfg: params.Paycashless,
		logg:       params.Logger,
	}, nil
}

// VerifyResult reports the computed payment state for one identity.
type VerifyResult struct {
	TotalPaid       decimal.Decimal  `json:"total_paid"`
	RemainingAmount decimal.Decimal  `json:"remaining_amount"`
	IsFullyPaid     bool             `json:"is_fully_paid"`
	PaymentID       *uuid.UUID       `json:"payment_id,omitempty"`
	Payments        []models.Payment `json:"payments"`
}

// VerifyPayment computes whether the identity has fully paid the hostel fee.
// Registration is checked first so an already-registered email always fails
// regardless of payment state.
func (s *Service) VerifyPayment(ctx context.Context, email, phone string) (*VerifyResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	registered, err := s.students.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check registration")
	}
	if registered {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "already registered")
	}

	rows, err := s.repo.ListByIdentity(ctx, email, phone)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payments")
	}

	fee := s.paymentCfg.Fee()
	if len(rows) == 0 {
		result := &VerifyResult{
			TotalPaid:       decimal.Zero,
			RemainingAmount: fee,
			Payments:        []models.Payment{},
		}
		s.recordVerify(ctx, email, result)
		return result, nil
	}

	totalPaid := decimal.Zero
	active := make([]models.Payment, 0, len(rows))
	var firstActiveID *uuid.UUID
	for i := range rows {
		row := &rows[i]
		if !paymentIsActive(row) {
			if row.Status == enums.PaymentStatusPending {
				rowCtx := s.logg.WithEmail(ctx, row.Email)
				rowCtx = s.logg.WithField(rowCtx, "payment_id", row.ID.String())
				s.logg.Info(rowCtx, "payment.verify.awaiting_webhook")
			}
			continue
		}
		active = append(active, *row)
		totalPaid = totalPaid.Add(row.AmountPaid)
		if firstActiveID == nil {
			id := row.ID
			firstActiveID = &id
		}
	}

	remaining := fee.Sub(totalPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	result := &VerifyResult{
		TotalPaid:       totalPaid,
		RemainingAmount: remaining,
		IsFullyPaid:     totalPaid.GreaterThanOrEqual(fee),
		PaymentID:       firstActiveID,
		Payments:        active,
	}
	s.recordVerify(ctx, email, result)
	return result, nil
}

// recordVerify appends a verification run to the audit trail. Failures are
// logged, not returned; a missing audit row must not block verification.
func (s *Service) recordVerify(ctx context.Context, email string, result *VerifyResult) {
	detail, err := json.Marshal(map[string]any{
		"email":         email,
		"total_paid":    result.TotalPaid,
		"is_fully_paid": result.IsFullyPaid,
		"active_rows":   len(result.Payments),
	})
	if err != nil {
		s.logg.Error(ctx, "payments.verify.detail.marshal", err)
		return
	}
	entry := &models.ActivityLog{
		Type:        enums.ActivityTypePaymentVerify,
		Description: fmt.Sprintf("payment verification for %s", email),
		Detail:      detail,
	}
	if err := s.activity.Create(ctx, entry); err != nil {
		s.logg.Error(ctx, "payments.verify.activity_log.write", err)
	}
}

// paymentIsActive reports whether a row contributes to the paid total. A
// pending row with zero paid represents payment-not-started or a webhook
// race and never counts.
func paymentIsActive(row *models.Payment) bool {
	switch row.Status {
	case enums.PaymentStatusCompleted:
		return true
	case enums.PaymentStatusPending, enums.PaymentStatusPartiallyPaid:
		return row.AmountPaid.IsPositive()
	default:
		return false
	}
}

// StatusResult combines local rows with optional gateway truth.
type StatusResult struct {
	Payments []models.Payment      `json:"payments"`
	Invoices []paycashless.Invoice `json:"invoices,omitempty"`
}

// CheckStatus returns the local payment rows for an identity and, when
// requested, the matching gateway invoices.
func (s *Service) CheckStatus(ctx context.Context, email, phone string, includeGateway bool) (*StatusResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	phone = strings.TrimSpace(phone)
	if email == "" && phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email or phone is required")
	}

	rows, err := s.repo.ListByIdentity(ctx, email, phone)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payments")
	}
	if rows == nil {
		rows = []models.Payment{}
	}

	result := &StatusResult{Payments: rows}
	if includeGateway {
		invoices, err := s.gateway.FindInvoicesByCustomer(ctx, email, phone)
		if err != nil {
			return nil, err
		}
		result.Invoices = invoices
	}
	return result, nil
}

// InitiateResult is returned after a gateway invoice has been created.
type InitiateResult struct {
	PaymentID  uuid.UUID       `json:"payment_id"`
	InvoiceID  string          `json:"invoice_id"`
	Reference  string          `json:"reference"`
	PaymentURL string          `json:"payment_url"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
}

// InitiatePayment creates a gateway invoice for the configured fee and
// records a pending local row linked to it.
func (s *Service) InitiatePayment(ctx context.Context, email, phone, fullName string) (*InitiateResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	fullName = strings.TrimSpace(fullName)
	phone = strings.TrimSpace(phone)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if fullName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "full name is required")
	}

	registered, err := s.students.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check registration")
	}
	if registered {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "already registered")
	}

	fee := s.paymentCfg.Fee()
	reference := fmt.Sprintf("HP-%s", uuid.NewString())
	dueDate := time.Now().AddDate(0, 0, s.paymentCfg.InvoiceDueDays)

	invoice, err := s.gateway.CreateInvoice(ctx, paycashless.CreateInvoiceParams{
		Customer: paycashless.Customer{
			Name:        fullName,
			Email:       email,
			PhoneNumber: phone,
		},
		Amount:      fee,
		Currency:    s.paymentCfg.Currency,
		Reference:   reference,
		CallbackURL: s.gatewayCfg.CallbackURL,
		ReturnURL:   s.gatewayCfg.ReturnURL,
		DueDate:     &dueDate,
	})
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		Email:       email,
		FullName:    fullName,
		AmountToPay: fee,
		AmountPaid:  decimal.Zero,
		Status:      enums.PaymentStatusPending,
		InvoiceID:   &invoice.ID,
		Reference:   &invoice.Reference,
	}
	if phone != "" {
		payment.Phone = &phone
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist payment")
	}

	infoCtx := s.logg.WithEmail(ctx, email)
	infoCtx = s.logg.WithField(infoCtx, "invoice_id", invoice.ID)
	s.logg.Info(infoCtx, "payment.initiated")

	return &InitiateResult{
		PaymentID:  payment.ID,
		InvoiceID:  invoice.ID,
		Reference:  invoice.Reference,
		PaymentURL: invoice.PaymentURL,
		Amount:     fee,
		Currency:   s.paymentCfg.Currency,
	}, nil
}
