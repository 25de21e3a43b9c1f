package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/tamwil/paygate/pkg/types"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// PaymentTransaction is the central entity of the payment core. Rows are
// never deleted; terminal rows are retained for audit.
//
// The owning wallet is fixed at creation. GatewayTransactionID is assigned
// once by the provider and immutable afterwards. "pending with reference" is
// represented as status=pending with a non-nil GatewayTransactionID.
type PaymentTransaction struct {
	ID     string `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(64);not null;index:idx_payment_user" json:"user_id"`
	// WalletID is the wallet credited or debited on completion.
	WalletID string `gorm:"column:wallet_id;type:uuid;not null" json:"wallet_id"`
	// ReferenceID is merchant-generated and stable across retries.
	ReferenceID string            `gorm:"column:reference_id;type:varchar(64);not null;uniqueIndex:unique_reference_id" json:"reference_id"`
	GatewayType types.GatewayType `gorm:"column:gateway_type;type:varchar(32);not null;uniqueIndex:unique_gateway_txn,priority:1" json:"gateway_type"`
	// GatewayTransactionID is assigned by the provider; nil until it responds.
	GatewayTransactionID *string         `gorm:"column:gateway_transaction_id;type:varchar(128);uniqueIndex:unique_gateway_txn,priority:2" json:"gateway_transaction_id"`
	Amount               decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
	Currency             string          `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Status               PaymentStatus   `gorm:"column:status;type:varchar(32);not null;index:idx_payment_status" json:"status"`
	// GatewayResponse captures provider responses verbatim for audit.
	GatewayResponse datatypes.JSON `gorm:"column:gateway_response;type:jsonb" json:"gateway_response"`
	Metadata        datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	// ProcessedAt is set exactly once, on terminal resolution.
	ProcessedAt *time.Time `gorm:"column:processed_at;default:null" json:"processed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transaction"
}
