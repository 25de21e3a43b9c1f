package models

import (
	"time"

	"gorm.io/datatypes"
)

type WebhookLogStatus string

const (
	WebhookLogStatusReceived     WebhookLogStatus = "received"
	WebhookLogStatusHandled      WebhookLogStatus = "handled"
	WebhookLogStatusHandleFailed WebhookLogStatus = "handle_failed"
)

// WebhookLog is the audit trail of inbound provider callbacks, written before
// and after handling.
type WebhookLog struct {
	ID                   string           `gorm:"column:id;type:uuid;primary_key" json:"id"`
	GatewayType          string           `gorm:"column:gateway_type;type:varchar(32);not null" json:"gateway_type"`
	TraceID              string           `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	GatewayTransactionID string           `gorm:"column:gateway_transaction_id;type:varchar(128);index:idx_webhook_gateway_txn" json:"gateway_transaction_id"`
	Payload              datatypes.JSON   `gorm:"column:payload;type:jsonb" json:"payload"`
	Result               *datatypes.JSON  `gorm:"column:result;type:jsonb" json:"result"`
	Status               WebhookLogStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

func (WebhookLog) TableName() string { return "webhook_log" }
