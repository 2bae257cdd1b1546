package activity

import (
	"context"

	"gorm.io/gorm"

	"github.com/stayhq-ng/hostelpay-backend/pkg/db/models"
	"github.com/stayhq-ng/hostelpay-backend/pkg/enums"
	"github.com/stayhq-ng/hostelpay-backend/pkg/pagination"
)

// Repository manages persistence for audit-trail entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, params ListQuery) ([]models.ActivityLog, *pagination.Cursor, error)
}

// ListQuery configures activity list queries.
type ListQuery struct {
	Type   *enums.ActivityType
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an activity repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) List(ctx context.Context, params ListQuery) ([]models.ActivityLog, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.ActivityLog{})
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var entries []models.ActivityLog
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&entries).Error; err != nil {
		return nil, nil, err
	}

	if len(entries) > limit {
		next := entries[limit]
		entries = entries[:limit]
		return entries, &pagination.Cursor{
			CreatedAt: next.CreatedAt,
			ID:        next.ID,
		}, nil
	}

	return entries, nil, nil
}
