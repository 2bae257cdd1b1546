package paycashlesswebhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stayhq-ng/hostelpay-backend/internal/activity"
	"github.com/stayhq-ng/hostelpay-backend/internal/payments"
	"github.com/stayhq-ng/hostelpay-backend/internal/reconcile"
	"github.com/stayhq-ng/hostelpay-backend/pkg/config"
	"github.com/stayhq-ng/hostelpay-backend/pkg/db/models"
	"github.com/stayhq-ng/hostelpay-backend/pkg/enums"
	pkgerrors "github.com/stayhq-ng/hostelpay-backend/pkg/errors"
	"github.com/stayhq-ng/hostelpay-backend/pkg/logger"
	"github.com/stayhq-ng/hostelpay-backend/pkg/paycashless"
)

// Gateway event types this service acts on. Anything else is acknowledged
// and dropped so the gateway stops retrying.
const (
	EventInvoicePaymentSucceeded = "INVOICE_PAYMENT_SUCCEEDED"
	EventInvoicePaid             = "INVOICE_PAID"
)

// Event is the gateway webhook envelope.
type Event struct {
	ID    string          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type invoicePayload struct {
	InvoiceID string               `json:"invoice_id"`
	ID        string               `json:"id"`
	Status    string               `json:"status"`
	Amount    decimal.Decimal      `json:"amount"`
	Customer  paycashless.Customer `json:"customer"`
}

// invoiceID prefers the explicit invoice_id field, some gateway event
// versions only carry the object id.
func (p invoicePayload) invoiceID() string {
	if p.InvoiceID != "" {
		return p.InvoiceID
	}
	return p.ID
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	DB       txRunner
	Payments payments.Repository
	Activity activity.Repository
	Payment  config.PaymentConfig
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service applies gateway payment events to local payment rows. Webhooks
// interleave freely with manual syncs; last write wins on the row.
type Service struct {
	db       txRunner
	payments payments.Repository
	activity activity.Repository
	cfg      config.PaymentConfig
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db runner is required")
	}
	if params.Payments == nil {
		return nil, errors.New("payments repository is required")
	}
	if params.Activity == nil {
		return nil, errors.New("activity repository is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:       params.DB,
		payments: params.Payments,
		activity: params.Activity,
		cfg:      params.Payment,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// HandleEvent applies one gateway event. The payload must carry an invoice
// id and a status to be considered well formed; everything else about it is
// taken on trust since the controller already verified the signature.
func (s *Service) HandleEvent(ctx context.Context, event Event) error {
	switch event.Event {
	case EventInvoicePaymentSucceeded, EventInvoicePaid:
	default:
		s.logg.Info(s.logg.WithField(ctx, "event", event.Event), "webhook.event.ignored")
		return nil
	}

	var payload invoicePayload
	if len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook payload")
		}
	}
	if payload.invoiceID() == "" || payload.Status == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing invoice id or status")
	}

	email := strings.ToLower(strings.TrimSpace(payload.Customer.Email))
	logCtx := s.logg.WithField(ctx, "invoice_id", payload.invoiceID())
	if email != "" {
		logCtx = s.logg.WithEmail(logCtx, email)
	}

	local, confidence, err := s.findLocal(ctx, payload, email)
	if err != nil {
		return err
	}
	if local == nil {
		return s.createFromEvent(logCtx, event, payload, email)
	}
	return s.applyToRow(logCtx, event, payload, local, confidence)
}

// findLocal mirrors the reconciliation engine's lenient matching: invoice
// id first, newest row for the customer email second.
func (s *Service) findLocal(ctx context.Context, payload invoicePayload, email string) (*models.Payment, enums.MatchConfidence, error) {
	local, err := s.payments.FindByInvoiceID(ctx, payload.invoiceID())
	if err != nil {
		return nil, "", err
	}
	if local != nil {
		return local, enums.MatchConfidenceInvoiceID, nil
	}
	if email == "" {
		return nil, "", nil
	}
	rows, err := s.payments.ListByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if len(rows) == 0 {
		return nil, "", nil
	}
	return &rows[0], enums.MatchConfidenceEmail, nil
}

// createFromEvent inserts a row for an invoice that was never persisted
// locally, which happens when the initiate step failed after the gateway
// call succeeded. Without a customer email there is nothing to anchor the
// row to.
func (s *Service) createFromEvent(ctx context.Context, event Event, payload invoicePayload, email string) error {
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no payment record for invoice")
	}

	fee := s.cfg.Fee()
	paid := payload.Amount
	if event.Event == EventInvoicePaid {
		paid = fee
	}
	status := reconcile.DeriveStatus(paid, fee)

	row := &models.Payment{
		Email:       email,
		FullName:    payload.Customer.Name,
		AmountToPay: fee,
		AmountPaid:  paid,
		Status:      status,
	}
	invoiceID := payload.invoiceID()
	row.InvoiceID = &invoiceID
	if payload.Customer.PhoneNumber != "" {
		phone := payload.Customer.PhoneNumber
		row.Phone = &phone
	}
	matchConfidence := enums.MatchConfidenceInvoiceID
	row.MatchConfidence = &matchConfidence
	if status == enums.PaymentStatusCompleted {
		paidAt := s.now()
		row.PaidAt = &paidAt
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.payments.WithTx(tx).Create(ctx, row); err != nil {
			return err
		}
		if err := s.recordEvent(ctx, tx, event, row); err != nil {
			return err
		}
		s.logg.Info(ctx, "webhook.payment.created")
		return nil
	})
}

func (s *Service) applyToRow(ctx context.Context, event Event, payload invoicePayload, local *models.Payment, confidence enums.MatchConfidence) error {
	fee := s.cfg.Fee()

	var total decimal.Decimal
	switch event.Event {
	case EventInvoicePaid:
		// Fully settled: the gateway stops reporting increments once the
		// invoice closes, so trust the terminal event over local arithmetic.
		total = decimal.Max(local.AmountToPay, local.AmountPaid)
	default:
		total = local.AmountPaid.Add(payload.Amount)
	}

	status := reconcile.DeriveStatus(total, fee)
	newlyCompleted := status == enums.PaymentStatusCompleted && local.Status != enums.PaymentStatusCompleted

	local.AmountPaid = total
	local.Status = status
	local.MatchConfidence = &confidence
	if local.InvoiceID == nil || *local.InvoiceID == "" {
		invoiceID := payload.invoiceID()
		local.InvoiceID = &invoiceID
	}
	if newlyCompleted {
		paidAt := s.now()
		local.PaidAt = &paidAt
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.payments.WithTx(tx).Update(ctx, local); err != nil {
			return err
		}
		if err := s.recordEvent(ctx, tx, event, local); err != nil {
			return err
		}
		s.logg.Info(s.logg.WithField(ctx, "status", local.Status.String()), "webhook.payment.updated")
		return nil
	})
}

func (s *Service) recordEvent(ctx context.Context, tx *gorm.DB, event Event, row *models.Payment) error {
	detail, err := json.Marshal(map[string]any{
		"event":       event.Event,
		"event_id":    event.ID,
		"invoice_id":  row.InvoiceID,
		"email":       row.Email,
		"amount_paid": row.AmountPaid,
		"status":      row.Status,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal webhook detail")
	}
	entry := &models.ActivityLog{
		Type:        enums.ActivityTypeWebhookReceived,
		ActorEmail:  &row.Email,
		Description: "paycashless webhook " + event.Event,
		Detail:      detail,
	}
	return s.activity.WithTx(tx).Create(ctx, entry)
}
