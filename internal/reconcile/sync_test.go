package reconcile

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stayhq-ng/hostelpay-backend/internal/activity"
	"github.com/stayhq-ng/hostelpay-backend/internal/payments"
	"github.com/stayhq-ng/hostelpay-backend/pkg/config"
	"github.com/stayhq-ng/hostelpay-backend/pkg/db/models"
	"github.com/stayhq-ng/hostelpay-backend/pkg/enums"
	"github.com/stayhq-ng/hostelpay-backend/pkg/logger"
	"github.com/stayhq-ng/hostelpay-backend/pkg/pagination"
	"github.com/stayhq-ng/hostelpay-backend/pkg/paycashless"
)

type memPaymentsRepo struct {
	rows []models.Payment
}

func (m *memPaymentsRepo) WithTx(tx *gorm.DB) payments.Repository { return m }

func (m *memPaymentsRepo) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}
	m.rows = append(m.rows, *payment)
	return nil
}

func (m *memPaymentsRepo) Update(ctx context.Context, payment *models.Payment) error {
	for i := range m.rows {
		if m.rows[i].ID == payment.ID {
			m.rows[i] = *payment
			return nil
		}
	}
	return fmt.Errorf("payment %s not found", payment.ID)
}

func (m *memPaymentsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	for i := range m.rows {
		if m.rows[i].ID == id {
			row := m.rows[i]
			return &row, nil
		}
	}
	return nil, nil
}

func (m *memPaymentsRepo) FindByInvoiceID(ctx context.Context, invoiceID string) (*models.Payment, error) {
	if invoiceID == "" {
		return nil, nil
	}
	for i := range m.rows {
		if m.rows[i].InvoiceID != nil && *m.rows[i].InvoiceID == invoiceID {
			row := m.rows[i]
			return &row, nil
		}
	}
	return nil, nil
}

func (m *memPaymentsRepo) ListByIdentity(ctx context.Context, email, phone string) ([]models.Payment, error) {
	return m.ListByEmail(ctx, email)
}

func (m *memPaymentsRepo) ListByEmail(ctx context.Context, email string) ([]models.Payment, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var out []models.Payment
	for i := range m.rows {
		if strings.ToLower(m.rows[i].Email) == email {
			out = append(out, m.rows[i])
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (m *memPaymentsRepo) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	drop := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.rows[:0]
	for _, row := range m.rows {
		if !drop[row.ID] {
			kept = append(kept, row)
		}
	}
	m.rows = kept
	return nil
}

type memActivityRepo struct {
	entries []models.ActivityLog
}

func (m *memActivityRepo) WithTx(tx *gorm.DB) activity.Repository { return m }

func (m *memActivityRepo) Create(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memActivityRepo) List(ctx context.Context, params activity.ListQuery) ([]models.ActivityLog, *pagination.Cursor, error) {
	return m.entries, nil, nil
}

type memGateway struct {
	invoices []paycashless.Invoice
	listErr  error
}

func (m *memGateway) ListInvoices(ctx context.Context, params paycashless.ListInvoicesParams) ([]paycashless.Invoice, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if params.Limit > 0 && len(m.invoices) > params.Limit {
		return m.invoices[:params.Limit], nil
	}
	return m.invoices, nil
}

func (m *memGateway) FindInvoicesByCustomer(ctx context.Context, email, phone string) ([]paycashless.Invoice, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []paycashless.Invoice
	for _, invoice := range m.invoices {
		if strings.EqualFold(invoice.Customer.Email, email) {
			out = append(out, invoice)
		}
	}
	return out, nil
}

type memTxRunner struct{}

func (memTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestEngine(t *testing.T, repo *memPaymentsRepo, acts *memActivityRepo, gateway *memGateway) *Engine {
	t.Helper()

	engine, err := NewEngine(EngineParams{
		DB:       memTxRunner{},
		Payments: repo,
		Activity: acts,
		Gateway:  gateway,
		Payment: config.PaymentConfig{
			FeeAmount:      219000,
			Currency:       "NGN",
			InvoiceDueDays: 14,
			SyncLimit:      100,
		},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Now:    func() time.Time { return time.Unix(1700000000, 0) },
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func gatewayInvoice(id, email string, totalPaid int64) paycashless.Invoice {
	return paycashless.Invoice{
		ID:        id,
		Reference: "ref-" + id,
		TotalPaid: decimal.NewFromInt(totalPaid),
		Customer:  paycashless.Customer{Name: "Test Student", Email: email},
	}
}

func TestSyncAllCreatesMissingRows(t *testing.T) {
	repo := &memPaymentsRepo{}
	acts := &memActivityRepo{}
	gateway := &memGateway{invoices: []paycashless.Invoice{
		gatewayInvoice("inv_1", "jane@x.com", 219000),
	}}
	engine := newTestEngine(t, repo, acts, gateway)

	summary, err := engine.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if summary.Scanned != 1 || summary.Created != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("expected 1 local row, got %d", len(repo.rows))
	}

	row := repo.rows[0]
	if row.Status != enums.PaymentStatusCompleted {
		t.Fatalf("unexpected status %s", row.Status)
	}
	if !row.AmountPaid.Equal(decimal.NewFromInt(219000)) {
		t.Fatalf("unexpected amount paid %s", row.AmountPaid)
	}
	if row.PaidAt == nil {
		t.Fatalf("paid_at must be set for newly completed rows")
	}
	if row.InvoiceID == nil || *row.InvoiceID != "inv_1" {
		t.Fatalf("invoice id not persisted")
	}

	if len(acts.entries) != 1 {
		t.Fatalf("expected an activity log entry")
	}
	if acts.entries[0].Type != enums.ActivityTypePaymentSync {
		t.Fatalf("unexpected activity type %s", acts.entries[0].Type)
	}
}

func TestSyncAllIsIdempotent(t *testing.T) {
	repo := &memPaymentsRepo{}
	acts := &memActivityRepo{}
	gateway := &memGateway{invoices: []paycashless.Invoice{
		gatewayInvoice("inv_1", "jane@x.com", 219000),
		gatewayInvoice("inv_2", "bob@x.com", 100000),
	}}
	engine := newTestEngine(t, repo, acts, gateway)

	first, err := engine.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if first.Created != 2 {
		t.Fatalf("expected 2 created, got %d", first.Created)
	}

	second, err := engine.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.Updated != 0 || second.Created != 0 {
		t.Fatalf("second run must be a no-op, got %+v", second)
	}
	if second.Matching != 2 {
		t.Fatalf("expected 2 matching, got %d", second.Matching)
	}
}

func TestSyncAllUpdatesDivergedRows(t *testing.T) {
	invoiceID := "inv_1"
	repo := &memPaymentsRepo{rows: []models.Payment{{
		ID:          uuid.New(),
		Email:       "jane@x.com",
		FullName:    "Jane Doe",
		AmountToPay: decimal.NewFromInt(219000),
		AmountPaid:  decimal.NewFromInt(50000),
		Status:      enums.PaymentStatusPartiallyPaid,
		InvoiceID:   &invoiceID,
		CreatedAt:   time.Now(),
	}}}
	acts := &memActivityRepo{}
	gateway := &memGateway{invoices: []paycashless.Invoice{
		gatewayInvoice("inv_1", "jane@x.com", 219000),
	}}
	engine := newTestEngine(t, repo, acts, gateway)

	summary, err := engine.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if summary.Updated != 1 {
		t.Fatalf("expected 1 updated, got %+v", summary)
	}
	if len(summary.UpdatedEmails) != 1 || summary.UpdatedEmails[0] != "jane@x.com" {
		t.Fatalf("unexpected updated emails %v", summary.UpdatedEmails)
	}

	row := repo.rows[0]
	if row.Status != enums.PaymentStatusCompleted {
		t.Fatalf("gateway truth must win, got %s", row.Status)
	}
	if row.PaidAt == nil {
		t.Fatalf("paid_at must be set when newly completed")
	}
	if row.MatchConfidence == nil || *row.MatchConfidence != enums.MatchConfidenceInvoiceID {
		t.Fatalf("expected invoice_id confidence")
	}
}

func TestSyncAllMatchesByEmailAndBackfillsInvoiceID(t *testing.T) {
	repo := &memPaymentsRepo{rows: []models.Payment{{
		ID:          uuid.New(),
		Email:       "jane@x.com",
		FullName:    "Jane Doe",
		AmountToPay: decimal.NewFromInt(219000),
		AmountPaid:  decimal.NewFromInt(100000),
		Status:      enums.PaymentStatusPartiallyPaid,
		CreatedAt:   time.Now(),
	}}}
	acts := &memActivityRepo{}
	gateway := &memGateway{invoices: []paycashless.Invoice{
		gatewayInvoice("inv_9", "jane@x.com", 100000),
	}}
	engine := newTestEngine(t, repo, acts, gateway)

	summary, err := engine.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if summary.Updated != 1 {
		t.Fatalf("expected invoice-id backfill to count as update, got %+v", summary)
	}

	row := repo.rows[0]
	if row.InvoiceID == nil || *row.InvoiceID != "inv_9" {
		t.Fatalf("invoice id not backfilled")
	}
	if row.MatchConfidence == nil || *row.MatchConfidence != enums.MatchConfidenceEmail {
		t.Fatalf("expected email confidence")
	}
	if row.PaidAt != nil {
		t.Fatalf("paid_at must stay unset while partial")
	}
}

func TestSyncAllClearsPaidAtOnDowngrade(t *testing.T) {
	invoiceID := "inv_1"
	paidAt := time.Unix(1690000000, 0)
	repo := &memPaymentsRepo{rows: []models.Payment{{
		ID:          uuid.New(),
		Email:       "jane@x.com",
		FullName:    "Jane Doe",
		AmountToPay: decimal.NewFromInt(219000),
		AmountPaid:  decimal.NewFromInt(219000),
		Status:      enums.PaymentStatusCompleted,
		InvoiceID:   &invoiceID,
		PaidAt:      &paidAt,
		CreatedAt:   time.Now(),
	}}}
	acts := &memActivityRepo{}
	gateway := &memGateway{invoices: []paycashless.Invoice{
		gatewayInvoice("inv_1", "jane@x.com", 100000),
	}}
	engine := newTestEngine(t, repo, acts, gateway)

	summary, err := engine.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if summary.Updated != 1 {
		t.Fatalf("expected downgrade to count as update, got %+v", summary)
	}

	row := repo.rows[0]
	if row.Status != enums.PaymentStatusPartiallyPaid {
		t.Fatalf("gateway truth must win on downgrade, got %s", row.Status)
	}
	if row.PaidAt != nil {
		t.Fatalf("paid_at must be cleared when the row is no longer completed")
	}
}

func TestSyncAllSkipsInvoicesWithoutEmail(t *testing.T) {
	repo := &memPaymentsRepo{}
	acts := &memActivityRepo{}
	gateway := &memGateway{invoices: []paycashless.Invoice{
		{ID: "inv_anon", TotalPaid: decimal.NewFromInt(219000)},
		gatewayInvoice("inv_1", "jane@x.com", 0),
	}}
	engine := newTestEngine(t, repo, acts, gateway)

	summary, err := engine.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if summary.Scanned != 1 {
		t.Fatalf("anonymous invoice must be skipped, got %+v", summary)
	}
	if repo.rows[0].Status != enums.PaymentStatusPending {
		t.Fatalf("zero total must derive pending")
	}
	if repo.rows[0].PaidAt != nil {
		t.Fatalf("pending row must not have paid_at")
	}
}

func TestSyncAllGatewayFailure(t *testing.T) {
	gateway := &memGateway{listErr: fmt.Errorf("boom")}
	engine := newTestEngine(t, &memPaymentsRepo{}, &memActivityRepo{}, gateway)

	if _, err := engine.SyncAll(context.Background()); err == nil {
		t.Fatalf("expected error when gateway listing fails")
	}
}

func TestSyncEmailScopesToIdentity(t *testing.T) {
	repo := &memPaymentsRepo{}
	acts := &memActivityRepo{}
	gateway := &memGateway{invoices: []paycashless.Invoice{
		gatewayInvoice("inv_1", "jane@x.com", 219000),
		gatewayInvoice("inv_2", "bob@x.com", 219000),
	}}
	engine := newTestEngine(t, repo, acts, gateway)

	summary, err := engine.SyncEmail(context.Background(), "JANE@x.com")
	if err != nil {
		t.Fatalf("sync email: %v", err)
	}
	if summary.Scanned != 1 || summary.Created != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(repo.rows) != 1 || repo.rows[0].Email != "jane@x.com" {
		t.Fatalf("only the requested identity may be touched")
	}

	if _, err := engine.SyncEmail(context.Background(), "  "); err == nil {
		t.Fatalf("expected validation error for empty email")
	}
}
