package payments

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stayhq-ng/hostelpay-backend/internal/activity"
	"github.com/stayhq-ng/hostelpay-backend/pkg/config"
	"github.com/stayhq-ng/hostelpay-backend/pkg/db/models"
	"github.com/stayhq-ng/hostelpay-backend/pkg/enums"
	pkgerrors "github.com/stayhq-ng/hostelpay-backend/pkg/errors"
	"github.com/stayhq-ng/hostelpay-backend/pkg/logger"
	"github.com/stayhq-ng/hostelpay-backend/pkg/pagination"
	"github.com/stayhq-ng/hostelpay-backend/pkg/paycashless"
)

type stubRepo struct {
	listByIdentityFn func(ctx context.Context, email, phone string) ([]models.Payment, error)
	createFn         func(ctx context.Context, payment *models.Payment) error
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }
func (s *stubRepo) Create(ctx context.Context, payment *models.Payment) error {
	if s.createFn != nil {
		return s.createFn(ctx, payment)
	}
	return nil
}
func (s *stubRepo) Update(ctx context.Context, payment *models.Payment) error { return nil }
func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return nil, nil
}
func (s *stubRepo) FindByInvoiceID(ctx context.Context, invoiceID string) (*models.Payment, error) {
	return nil, nil
}
func (s *stubRepo) ListByIdentity(ctx context.Context, email, phone string) ([]models.Payment, error) {
	if s.listByIdentityFn != nil {
		return s.listByIdentityFn(ctx, email, phone)
	}
	return nil, nil
}
func (s *stubRepo) ListByEmail(ctx context.Context, email string) ([]models.Payment, error) {
	return nil, nil
}
func (s *stubRepo) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error { return nil }

type stubActivity struct {
	entries []models.ActivityLog
}

func (s *stubActivity) WithTx(tx *gorm.DB) activity.Repository { return s }
func (s *stubActivity) Create(ctx context.Context, entry *models.ActivityLog) error {
	s.entries = append(s.entries, *entry)
	return nil
}
func (s *stubActivity) List(ctx context.Context, params activity.ListQuery) ([]models.ActivityLog, *pagination.Cursor, error) {
	return nil, nil, nil
}

type stubStudents struct {
	registered map[string]bool
}

func (s *stubStudents) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.registered[email], nil
}

type stubGateway struct {
	createFn func(ctx context.Context, params paycashless.CreateInvoiceParams) (*paycashless.Invoice, error)
	findFn   func(ctx context.Context, email, phone string) ([]paycashless.Invoice, error)
}

func (s *stubGateway) CreateInvoice(ctx context.Context, params paycashless.CreateInvoiceParams) (*paycashless.Invoice, error) {
	if s.createFn != nil {
		return s.createFn(ctx, params)
	}
	return &paycashless.Invoice{ID: "inv_stub"}, nil
}

func (s *stubGateway) FindInvoicesByCustomer(ctx context.Context, email, phone string) ([]paycashless.Invoice, error) {
	if s.findFn != nil {
		return s.findFn(ctx, email, phone)
	}
	return nil, nil
}

func testPaymentConfig() config.PaymentConfig {
	return config.PaymentConfig{
		FeeAmount:      219000,
		Currency:       "NGN",
		InvoiceDueDays: 14,
		SyncLimit:      100,
	}
}

func newTestService(t *testing.T, repo Repository, students RegistrationChecker, gateway Gateway) (*Service, *stubActivity) {
	t.Helper()

	audit := &stubActivity{}
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Students: students,
		Gateway:  gateway,
		Activity: audit,
		Payment:  testPaymentConfig(),
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, audit
}

func paymentRow(email string, status enums.PaymentStatus, paid int64, createdAt time.Time) models.Payment {
	return models.Payment{
		ID:          uuid.New(),
		Email:       email,
		FullName:    "Test Student",
		AmountToPay: decimal.NewFromInt(219000),
		AmountPaid:  decimal.NewFromInt(paid),
		Status:      status,
		CreatedAt:   createdAt,
	}
}

func TestVerifyPaymentRejectsRegisteredEmail(t *testing.T) {
	repoCalled := false
	repo := &stubRepo{listByIdentityFn: func(context.Context, string, string) ([]models.Payment, error) {
		repoCalled = true
		return nil, nil
	}}
	students := &stubStudents{registered: map[string]bool{"jane@x.com": true}}
	svc, _ := newTestService(t, repo, students, &stubGateway{})

	_, err := svc.VerifyPayment(context.Background(), "Jane@X.com ", "")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if typed.Message() != "already registered" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
	if repoCalled {
		t.Fatalf("payment rows must not be read when registration guard fires")
	}
}

func TestVerifyPaymentNoLocalRows(t *testing.T) {
	svc, _ := newTestService(t, &stubRepo{}, &stubStudents{}, &stubGateway{})

	result, err := svc.VerifyPayment(context.Background(), "jane@x.com", "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.TotalPaid.IsZero() {
		t.Fatalf("expected zero total, got %s", result.TotalPaid)
	}
	if result.IsFullyPaid {
		t.Fatalf("expected not fully paid")
	}
	if len(result.Payments) != 0 {
		t.Fatalf("expected empty payments list")
	}
	if !result.RemainingAmount.Equal(decimal.NewFromInt(219000)) {
		t.Fatalf("expected full fee remaining, got %s", result.RemainingAmount)
	}
}

func TestVerifyPaymentExcludesPendingZeroRows(t *testing.T) {
	now := time.Now()
	rows := []models.Payment{
		paymentRow("jane@x.com", enums.PaymentStatusPending, 0, now),
		paymentRow("jane@x.com", enums.PaymentStatusPending, 100000, now.Add(-time.Hour)),
		paymentRow("jane@x.com", enums.PaymentStatusCompleted, 219000, now.Add(-2*time.Hour)),
	}
	repo := &stubRepo{listByIdentityFn: func(context.Context, string, string) ([]models.Payment, error) {
		return rows, nil
	}}
	svc, _ := newTestService(t, repo, &stubStudents{}, &stubGateway{})

	result, err := svc.VerifyPayment(context.Background(), "jane@x.com", "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.TotalPaid.Equal(decimal.NewFromInt(319000)) {
		t.Fatalf("pending-zero row contributed to total: %s", result.TotalPaid)
	}
	if !result.IsFullyPaid {
		t.Fatalf("expected fully paid")
	}
	if result.PaymentID == nil || *result.PaymentID != rows[1].ID {
		t.Fatalf("expected first active row id")
	}
	if !result.RemainingAmount.IsZero() {
		t.Fatalf("expected zero remaining, got %s", result.RemainingAmount)
	}
	if len(result.Payments) != 2 {
		t.Fatalf("pending-zero row leaked into payments list: %d rows", len(result.Payments))
	}
	if result.Payments[0].ID != rows[1].ID || result.Payments[1].ID != rows[2].ID {
		t.Fatalf("payments list should hold only the active rows")
	}
}

func TestVerifyPaymentAwaitingWebhookReturnsEmptyList(t *testing.T) {
	rows := []models.Payment{
		paymentRow("jane@x.com", enums.PaymentStatusPending, 0, time.Now()),
	}
	repo := &stubRepo{listByIdentityFn: func(context.Context, string, string) ([]models.Payment, error) {
		return rows, nil
	}}
	svc, _ := newTestService(t, repo, &stubStudents{}, &stubGateway{})

	result, err := svc.VerifyPayment(context.Background(), "jane@x.com", "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.TotalPaid.IsZero() {
		t.Fatalf("expected zero total, got %s", result.TotalPaid)
	}
	if result.IsFullyPaid {
		t.Fatalf("expected not fully paid")
	}
	if len(result.Payments) != 0 {
		t.Fatalf("awaiting-webhook row must not appear in payments list, got %d rows", len(result.Payments))
	}
	if result.PaymentID != nil {
		t.Fatalf("no active row, payment id should be nil")
	}
}

func TestVerifyPaymentWritesAuditEntry(t *testing.T) {
	rows := []models.Payment{
		paymentRow("jane@x.com", enums.PaymentStatusCompleted, 219000, time.Now()),
	}
	repo := &stubRepo{listByIdentityFn: func(context.Context, string, string) ([]models.Payment, error) {
		return rows, nil
	}}
	svc, audit := newTestService(t, repo, &stubStudents{}, &stubGateway{})

	if _, err := svc.VerifyPayment(context.Background(), "jane@x.com", ""); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(audit.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(audit.entries))
	}
	entry := audit.entries[0]
	if entry.Type != enums.ActivityTypePaymentVerify {
		t.Fatalf("unexpected activity type %s", entry.Type)
	}
	var detail map[string]any
	if err := json.Unmarshal(entry.Detail, &detail); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if detail["is_fully_paid"] != true {
		t.Fatalf("detail should report fully paid")
	}
	if detail["email"] != "jane@x.com" {
		t.Fatalf("unexpected email in detail %v", detail["email"])
	}
}

func TestVerifyPaymentPartialTotals(t *testing.T) {
	rows := []models.Payment{
		paymentRow("bob@x.com", enums.PaymentStatusPartiallyPaid, 100000, time.Now()),
	}
	repo := &stubRepo{listByIdentityFn: func(context.Context, string, string) ([]models.Payment, error) {
		return rows, nil
	}}
	svc, _ := newTestService(t, repo, &stubStudents{}, &stubGateway{})

	result, err := svc.VerifyPayment(context.Background(), "bob@x.com", "")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if result.IsFullyPaid {
		t.Fatalf("expected not fully paid")
	}
	if !result.RemainingAmount.Equal(decimal.NewFromInt(119000)) {
		t.Fatalf("unexpected remaining %s", result.RemainingAmount)
	}
}

func TestCheckStatusIncludesGatewayWhenRequested(t *testing.T) {
	gateway := &stubGateway{findFn: func(ctx context.Context, email, phone string) ([]paycashless.Invoice, error) {
		return []paycashless.Invoice{{ID: "inv_1"}}, nil
	}}
	svc, _ := newTestService(t, &stubRepo{}, &stubStudents{}, gateway)

	local, err := svc.CheckStatus(context.Background(), "jane@x.com", "", false)
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if local.Invoices != nil {
		t.Fatalf("gateway lookup should be skipped")
	}

	combined, err := svc.CheckStatus(context.Background(), "jane@x.com", "", true)
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if len(combined.Invoices) != 1 {
		t.Fatalf("expected gateway invoice in result")
	}

	if _, err := svc.CheckStatus(context.Background(), "", "", false); err == nil {
		t.Fatalf("expected validation error for empty identity")
	}
}

func TestInitiatePaymentCreatesInvoiceAndLocalRow(t *testing.T) {
	var created *models.Payment
	repo := &stubRepo{createFn: func(ctx context.Context, payment *models.Payment) error {
		payment.ID = uuid.New()
		created = payment
		return nil
	}}

	var invoiceParams paycashless.CreateInvoiceParams
	gateway := &stubGateway{createFn: func(ctx context.Context, params paycashless.CreateInvoiceParams) (*paycashless.Invoice, error) {
		invoiceParams = params
		return &paycashless.Invoice{
			ID:         "inv_new",
			Reference:  params.Reference,
			PaymentURL: "http://pay.test/inv_new",
		}, nil
	}}

	svc, _ := newTestService(t, repo, &stubStudents{}, gateway)
	result, err := svc.InitiatePayment(context.Background(), "Jane@X.com", "+2348000000000", "Jane Doe")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	if !invoiceParams.Amount.Equal(decimal.NewFromInt(219000)) {
		t.Fatalf("unexpected invoice amount %s", invoiceParams.Amount)
	}
	if invoiceParams.Customer.Email != "jane@x.com" {
		t.Fatalf("email should be normalized, got %q", invoiceParams.Customer.Email)
	}

	if created == nil {
		t.Fatalf("local payment row not created")
	}
	if created.Status != enums.PaymentStatusPending {
		t.Fatalf("unexpected status %s", created.Status)
	}
	if created.InvoiceID == nil || *created.InvoiceID != "inv_new" {
		t.Fatalf("invoice id not linked")
	}

	if result.PaymentURL != "http://pay.test/inv_new" {
		t.Fatalf("unexpected payment url %q", result.PaymentURL)
	}
}

func TestInitiatePaymentRejectsRegisteredEmail(t *testing.T) {
	students := &stubStudents{registered: map[string]bool{"jane@x.com": true}}
	svc, _ := newTestService(t, &stubRepo{}, students, &stubGateway{})

	_, err := svc.InitiatePayment(context.Background(), "jane@x.com", "", "Jane Doe")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}
