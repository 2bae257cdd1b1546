package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/stayhq-ng/hostelpay-backend/internal/activity"
	"github.com/stayhq-ng/hostelpay-backend/internal/payments"
	"github.com/stayhq-ng/hostelpay-backend/pkg/config"
	"github.com/stayhq-ng/hostelpay-backend/pkg/db/models"
	"github.com/stayhq-ng/hostelpay-backend/pkg/enums"
	pkgerrors "github.com/stayhq-ng/hostelpay-backend/pkg/errors"
	"github.com/stayhq-ng/hostelpay-backend/pkg/logger"
	"github.com/stayhq-ng/hostelpay-backend/pkg/metrics"
	"github.com/stayhq-ng/hostelpay-backend/pkg/paycashless"
)

// Sync scope labels reported to metrics.
const (
	ScopeAll   = "all"
	ScopeEmail = "email"
)

// Gateway is the subset of the Paycashless client the engine reads from.
type Gateway interface {
	ListInvoices(ctx context.Context, params paycashless.ListInvoicesParams) ([]paycashless.Invoice, error)
	FindInvoicesByCustomer(ctx context.Context, email, phone string) ([]paycashless.Invoice, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// EngineParams configures the reconciliation engine.
type EngineParams struct {
	DB       txRunner
	Payments payments.Repository
	Activity activity.Repository
	Gateway  Gateway
	Payment  config.PaymentConfig
	Metrics  *metrics.SyncMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

// Engine reconciles local payment rows against gateway invoice truth.
// Gateway data always wins; local rows are a cache of it.
type Engine struct {
	db       txRunner
	payments payments.Repository
	activity activity.Repository
	gateway  Gateway
	cfg      config.PaymentConfig
	metrics  *metrics.SyncMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewEngine builds a reconciliation engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.DB == nil {
		return nil, errors.New("db runner is required")
	}
	if params.Payments == nil {
		return nil, errors.New("payments repository is required")
	}
	if params.Activity == nil {
		return nil, errors.New("activity repository is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("gateway client is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		db:       params.DB,
		payments: params.Payments,
		activity: params.Activity,
		gateway:  params.Gateway,
		cfg:      params.Payment,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// SyncSummary tallies the outcomes of one reconciliation run.
type SyncSummary struct {
	Scanned       int      `json:"scanned"`
	Matching      int      `json:"matching_records"`
	Updated       int      `json:"updated_records"`
	Created       int      `json:"new_records_created"`
	UpdatedEmails []string `json:"updated_emails"`
	CreatedEmails []string `json:"created_emails"`
}

type reconcileOutcome int

const (
	outcomeMatched reconcileOutcome = iota
	outcomeUpdated
	outcomeCreated
)

// SyncAll reconciles the most recent gateway invoices against local rows.
// Per-invoice errors are aggregated so one bad invoice does not abort the
// run; the summary is persisted to the activity log either way.
func (e *Engine) SyncAll(ctx context.Context) (*SyncSummary, error) {
	start := e.now()
	logCtx := e.logg.WithField(ctx, "sync_scope", ScopeAll)

	invoices, err := e.gateway.ListInvoices(logCtx, paycashless.ListInvoicesParams{Limit: e.cfg.SyncLimit})
	if err != nil {
		e.metrics.IncFailure(ScopeAll)
		return nil, err
	}

	summary, errs := e.reconcileInvoices(logCtx, invoices)
	e.recordRun(logCtx, ScopeAll, enums.ActivityTypePaymentSync, "bulk payment sync", summary, start, errs)
	return summary, errs
}

// SyncEmail reconciles the gateway invoices for one customer identity.
func (e *Engine) SyncEmail(ctx context.Context, email string) (*SyncSummary, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	start := e.now()
	logCtx := e.logg.WithField(ctx, "sync_scope", ScopeEmail)
	logCtx = e.logg.WithEmail(logCtx, email)

	invoices, err := e.gateway.FindInvoicesByCustomer(logCtx, email, "")
	if err != nil {
		e.metrics.IncFailure(ScopeEmail)
		return nil, err
	}

	summary, errs := e.reconcileInvoices(logCtx, invoices)
	e.recordRun(logCtx, ScopeEmail, enums.ActivityTypePaymentSync, fmt.Sprintf("payment sync for %s", email), summary, start, errs)
	return summary, errs
}

func (e *Engine) reconcileInvoices(ctx context.Context, invoices []paycashless.Invoice) (*SyncSummary, error) {
	summary := &SyncSummary{
		UpdatedEmails: []string{},
		CreatedEmails: []string{},
	}

	var errs error
	for i := range invoices {
		invoice := invoices[i]
		email := strings.ToLower(strings.TrimSpace(invoice.Customer.Email))
		if email == "" {
			continue
		}
		summary.Scanned++

		outcome, err := e.reconcileInvoice(ctx, invoice, email)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invoice %s: %w", invoice.ID, err))
			continue
		}
		switch outcome {
		case outcomeMatched:
			summary.Matching++
		case outcomeUpdated:
			summary.Updated++
			summary.UpdatedEmails = append(summary.UpdatedEmails, email)
		case outcomeCreated:
			summary.Created++
			summary.CreatedEmails = append(summary.CreatedEmails, email)
		}
	}

	return summary, errs
}

func (e *Engine) reconcileInvoice(ctx context.Context, invoice paycashless.Invoice, email string) (reconcileOutcome, error) {
	local, confidence, err := e.findLocal(ctx, invoice, email)
	if err != nil {
		return outcomeMatched, err
	}

	fee := e.cfg.Fee()
	correctStatus := DeriveStatus(invoice.TotalPaid, fee)

	if local == nil {
		row := &models.Payment{
			Email:       email,
			FullName:    invoice.Customer.Name,
			AmountToPay: fee,
			AmountPaid:  invoice.TotalPaid,
			Status:      correctStatus,
		}
		if invoice.ID != "" {
			invoiceID := invoice.ID
			row.InvoiceID = &invoiceID
		}
		if invoice.Reference != "" {
			reference := invoice.Reference
			row.Reference = &reference
		}
		if invoice.Customer.PhoneNumber != "" {
			phone := invoice.Customer.PhoneNumber
			row.Phone = &phone
		}
		matchConfidence := enums.MatchConfidenceInvoiceID
		row.MatchConfidence = &matchConfidence
		if correctStatus == enums.PaymentStatusCompleted {
			paidAt := e.now()
			row.PaidAt = &paidAt
		}
		if err := e.payments.Create(ctx, row); err != nil {
			return outcomeMatched, err
		}
		return outcomeCreated, nil
	}

	missingInvoiceID := (local.InvoiceID == nil || *local.InvoiceID == "") && invoice.ID != ""
	if local.AmountPaid.Equal(invoice.TotalPaid) && local.Status == correctStatus && !missingInvoiceID {
		return outcomeMatched, nil
	}

	newlyCompleted := correctStatus == enums.PaymentStatusCompleted && local.Status != enums.PaymentStatusCompleted
	local.AmountPaid = invoice.TotalPaid
	local.Status = correctStatus
	local.MatchConfidence = &confidence
	if missingInvoiceID {
		invoiceID := invoice.ID
		local.InvoiceID = &invoiceID
	}
	if newlyCompleted {
		paidAt := e.now()
		local.PaidAt = &paidAt
	}
	// paid_at only makes sense on a completed row; a gateway downgrade
	// (refund, reversal) clears it.
	if correctStatus != enums.PaymentStatusCompleted {
		local.PaidAt = nil
	}
	if err := e.payments.Update(ctx, local); err != nil {
		return outcomeMatched, err
	}
	return outcomeUpdated, nil
}

// findLocal resolves the local row for an invoice, invoice id first with a
// lenient email fallback.
func (e *Engine) findLocal(ctx context.Context, invoice paycashless.Invoice, email string) (*models.Payment, enums.MatchConfidence, error) {
	if invoice.ID != "" {
		local, err := e.payments.FindByInvoiceID(ctx, invoice.ID)
		if err != nil {
			return nil, "", err
		}
		if local != nil {
			return local, enums.MatchConfidenceInvoiceID, nil
		}
	}

	rows, err := e.payments.ListByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if len(rows) == 0 {
		return nil, "", nil
	}
	return &rows[0], enums.MatchConfidenceEmail, nil
}

func (e *Engine) recordRun(ctx context.Context, scope string, activityType enums.ActivityType, description string, summary *SyncSummary, start time.Time, runErr error) {
	detail, err := json.Marshal(summary)
	if err != nil {
		e.logg.Error(ctx, "reconcile.summary.marshal", err)
	} else {
		entry := &models.ActivityLog{
			Type:        activityType,
			Description: description,
			Detail:      detail,
		}
		if err := e.activity.Create(ctx, entry); err != nil {
			e.logg.Error(ctx, "reconcile.activity_log.write", err)
		}
	}

	e.metrics.AddRecords(metrics.RecordOutcomeMatched, summary.Matching)
	e.metrics.AddRecords(metrics.RecordOutcomeUpdated, summary.Updated)
	e.metrics.AddRecords(metrics.RecordOutcomeCreated, summary.Created)
	e.metrics.ObserveDuration(scope, e.now().Sub(start))
	if runErr != nil {
		e.metrics.IncFailure(scope)
	} else {
		e.metrics.IncSuccess(scope)
	}

	reportCtx := e.logg.WithFields(ctx, map[string]any{
		"scanned": summary.Scanned,
		"matched": summary.Matching,
		"updated": summary.Updated,
		"created": summary.Created,
	})
	if runErr != nil {
		e.logg.Error(reportCtx, "reconcile.run.partial", runErr)
		return
	}
	e.logg.Info(reportCtx, "reconcile.run.complete")
}
