package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/stayhq-ng/hostelpay-backend/pkg/enums"
)

// ActivityLog records an immutable audit event for an admin or system action.
type ActivityLog struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type        enums.ActivityType `gorm:"column:type;type:activity_type_enum;not null"`
	ActorID     *uuid.UUID         `gorm:"column:actor_id;type:uuid"`
	ActorEmail  *string            `gorm:"column:actor_email"`
	Description string             `gorm:"column:description;not null"`
	Detail      json.RawMessage    `gorm:"column:detail;type:jsonb"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
}
