package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stayhq-ng/hostelpay-backend/pkg/db/models"
	"github.com/stayhq-ng/hostelpay-backend/pkg/enums"
	pkgerrors "github.com/stayhq-ng/hostelpay-backend/pkg/errors"
)

// CleanupResult reports the action taken by a duplicate cleanup run.
type CleanupResult struct {
	KeptID    uuid.UUID           `json:"kept_id"`
	Deleted   int                 `json:"deleted"`
	Status    enums.PaymentStatus `json:"status"`
	TotalPaid decimal.Decimal     `json:"total_paid"`
}

// CleanupDuplicates collapses the local payment rows for one email down to
// the row with the most recent created_at, reconciling the survivor against
// gateway truth. Deletes and the survivor update run in one transaction.
func (e *Engine) CleanupDuplicates(ctx context.Context, email string) (*CleanupResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	logCtx := e.logg.WithEmail(ctx, email)

	rows, err := e.payments.ListByEmail(logCtx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payments")
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment records for email")
	}

	survivorIdx := 0
	for i := range rows {
		if rows[i].CreatedAt.After(rows[survivorIdx].CreatedAt) {
			survivorIdx = i
		}
	}
	survivor := rows[survivorIdx]

	duplicateIDs := make([]uuid.UUID, 0, len(rows)-1)
	for i := range rows {
		if i != survivorIdx {
			duplicateIDs = append(duplicateIDs, rows[i].ID)
		}
	}

	totalPaid, err := e.reconciledTotal(logCtx, email, rows)
	if err != nil {
		return nil, err
	}

	fee := e.cfg.Fee()
	status := DeriveStatus(totalPaid, fee)

	err = e.db.WithTx(logCtx, func(tx *gorm.DB) error {
		repo := e.payments.WithTx(tx)
		if err := repo.DeleteByIDs(logCtx, duplicateIDs); err != nil {
			return fmt.Errorf("delete duplicates: %w", err)
		}

		newlyCompleted := status == enums.PaymentStatusCompleted && survivor.Status != enums.PaymentStatusCompleted
		survivor.AmountToPay = fee
		survivor.AmountPaid = totalPaid
		survivor.Status = status
		if newlyCompleted {
			paidAt := e.now()
			survivor.PaidAt = &paidAt
		}
		if status != enums.PaymentStatusCompleted {
			survivor.PaidAt = nil
		}
		if err := repo.Update(logCtx, &survivor); err != nil {
			return fmt.Errorf("update survivor: %w", err)
		}

		detail, err := json.Marshal(map[string]any{
			"email":      email,
			"kept_id":    survivor.ID,
			"deleted":    len(duplicateIDs),
			"status":     status,
			"total_paid": totalPaid,
		})
		if err != nil {
			return fmt.Errorf("marshal cleanup detail: %w", err)
		}
		entry := &models.ActivityLog{
			Type:        enums.ActivityTypeDuplicateCleanup,
			Description: fmt.Sprintf("duplicate cleanup for %s", email),
			Detail:      detail,
		}
		if err := e.activity.WithTx(tx).Create(logCtx, entry); err != nil {
			return fmt.Errorf("write activity log: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cleanup duplicates")
	}

	reportCtx := e.logg.WithFields(logCtx, map[string]any{
		"kept_id": survivor.ID.String(),
		"deleted": len(duplicateIDs),
		"status":  status.String(),
	})
	e.logg.Info(reportCtx, "reconcile.cleanup.complete")

	return &CleanupResult{
		KeptID:    survivor.ID,
		Deleted:   len(duplicateIDs),
		Status:    status,
		TotalPaid: totalPaid,
	}, nil
}

// reconciledTotal prefers gateway truth for the email and falls back to the
// local rows when the gateway has no invoices for the identity. A pending
// row with zero paid never counts toward the local fallback.
func (e *Engine) reconciledTotal(ctx context.Context, email string, rows []models.Payment) (decimal.Decimal, error) {
	invoices, err := e.gateway.FindInvoicesByCustomer(ctx, email, "")
	if err != nil {
		return decimal.Zero, err
	}

	if len(invoices) > 0 {
		total := decimal.Zero
		for _, invoice := range invoices {
			total = total.Add(invoice.TotalPaid)
		}
		return total, nil
	}

	total := decimal.Zero
	for i := range rows {
		row := &rows[i]
		switch row.Status {
		case enums.PaymentStatusCompleted:
			total = total.Add(row.AmountPaid)
		case enums.PaymentStatusPending, enums.PaymentStatusPartiallyPaid:
			if row.AmountPaid.IsPositive() {
				total = total.Add(row.AmountPaid)
			}
		}
	}
	return total, nil
}
