package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SellerProfile is the public projection of a seller's shop, owned by the
// external account system and mirrored here for offer detail joins and
// notification fan-out.
type SellerProfile struct {
	SellerID   uuid.UUID      `gorm:"column:seller_id;type:uuid;primaryKey" json:"seller_id"`
	ShopName   string         `gorm:"column:shop_name;not null" json:"shop_name"`
	Email      string         `gorm:"column:email;not null" json:"email"`
	Phone      *string        `gorm:"column:phone" json:"phone,omitempty"`
	Categories pq.StringArray `gorm:"column:categories;type:text[]" json:"categories"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
