package models

import (
	"time"

	"github.com/google/uuid"
)

// Student represents a registered hostel resident.
type Student struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string     `gorm:"column:email;type:text;not null;uniqueIndex"`
	FullName     string     `gorm:"column:full_name;not null"`
	Phone        *string    `gorm:"column:phone"`
	MatricNumber *string    `gorm:"column:matric_number;uniqueIndex"`
	RoomNumber   *string    `gorm:"column:room_number"`
	PaymentID    *uuid.UUID `gorm:"column:payment_id;type:uuid"`
	RegisteredAt time.Time  `gorm:"column:registered_at;autoCreateTime"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
