package models

import (
	"encoding/json"
	"time"
)

// CartDocument is the remote copy of a signed-in user's cart. Payload holds
// the full cart JSON so the schema does not need to track cart fields.
type CartDocument struct {
	UserID    string          `gorm:"column:user_id;primaryKey"`
	Payload   json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;not null"`
}

func (CartDocument) TableName() string { return "cart_documents" }
