package payments

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stayhq-ng/hostelpay-backend/pkg/db/models"
)

// Repository handles payment persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByInvoiceID(ctx context.Context, invoiceID string) (*models.Payment, error)
	ListByIdentity(ctx context.Context, email, phone string) ([]models.Payment, error)
	ListByEmail(ctx context.Context, email string) ([]models.Payment, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) Update(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByInvoiceID(ctx context.Context, invoiceID string) (*models.Payment, error) {
	if invoiceID == "" {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListByIdentity(ctx context.Context, email, phone string) ([]models.Payment, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	phone = strings.TrimSpace(phone)

	query := r.db.WithContext(ctx)
	switch {
	case email != "" && phone != "":
		query = query.Where("LOWER(email) = ? OR phone = ?", email, phone)
	case email != "":
		query = query.Where("LOWER(email) = ?", email)
	case phone != "":
		query = query.Where("phone = ?", phone)
	default:
		return nil, nil
	}

	var rows []models.Payment
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByEmail(ctx context.Context, email string) ([]models.Payment, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, nil
	}
	var rows []models.Payment
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", email).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.Payment{}).Error
}
