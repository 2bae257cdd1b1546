package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stayhq-ng/hostelpay-backend/pkg/enums"
)

// Payment tracks hostel fee payment progress for a single student identity.
type Payment struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email           string                 `gorm:"column:email;type:text;not null;index"`
	Phone           *string                `gorm:"column:phone"`
	FullName        string                 `gorm:"column:full_name;not null"`
	AmountToPay     decimal.Decimal        `gorm:"column:amount_to_pay;type:numeric(12,2);not null"`
	AmountPaid      decimal.Decimal        `gorm:"column:amount_paid;type:numeric(12,2);not null;default:0"`
	Status          enums.PaymentStatus    `gorm:"column:status;type:payment_status_enum;not null;default:'pending'"`
	InvoiceID       *string                `gorm:"column:invoice_id;uniqueIndex"`
	Reference       *string                `gorm:"column:reference"`
	MatchConfidence *enums.MatchConfidence `gorm:"column:match_confidence;type:match_confidence_enum"`
	PaidAt          *time.Time             `gorm:"column:paid_at"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
