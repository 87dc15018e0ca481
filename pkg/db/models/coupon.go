package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coupon is a row of the remote coupon catalog.
type Coupon struct {
	Code       string          `gorm:"column:code;primaryKey"`
	Type       string          `gorm:"column:type;not null"`
	Value      decimal.Decimal `gorm:"column:value;type:numeric(10,2);not null;default:0"`
	IsActive   bool            `gorm:"column:is_active;not null;default:true"`
	ExpiresAt  *time.Time      `gorm:"column:expires_at"`
	UsageLimit *int            `gorm:"column:usage_limit"`
	UsageCount int             `gorm:"column:usage_count;not null;default:0"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Coupon) TableName() string { return "coupons" }
