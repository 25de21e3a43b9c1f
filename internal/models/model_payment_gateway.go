package models

import (
	"time"

	"github.com/tamwil/paygate/pkg/types"
)

// PaymentGateway is the static configuration row for one provider. Seeded
// from config at startup; read-only during transaction processing.
type PaymentGateway struct {
	ID         string            `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Type       types.GatewayType `gorm:"column:type;type:varchar(32);not null;uniqueIndex:unique_gateway_type" json:"type"`
	MerchantID string            `gorm:"column:merchant_id;type:varchar(64);not null" json:"merchant_id"`
	APIKey     string            `gorm:"column:api_key;type:varchar(256);not null" json:"-"`
	SecretKey  string            `gorm:"column:secret_key;type:varchar(256);not null" json:"-"`
	APIURL     string            `gorm:"column:api_url;type:varchar(256);not null" json:"api_url"`
	IsActive   bool              `gorm:"column:is_active;not null;default:false" json:"is_active"`
	Sandbox    bool              `gorm:"column:sandbox;not null;default:true" json:"sandbox"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (PaymentGateway) TableName() string { return "payment_gateway" }
