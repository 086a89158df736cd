package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bulkquote-backend/pkg/enums"
)

// Notification is a stored in-app notification for a buyer or seller.
type Notification struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RecipientID uuid.UUID              `gorm:"column:recipient_id;type:uuid;not null" json:"recipient_id"`
	Type        enums.NotificationType `gorm:"column:type;type:text;not null" json:"type"`
	Title       string                 `gorm:"column:title;not null" json:"title"`
	Body        string                 `gorm:"column:body;not null" json:"body"`
	Data        json.RawMessage        `gorm:"column:data;type:jsonb" json:"data,omitempty"`
	ReadAt      *time.Time             `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
