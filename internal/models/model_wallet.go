package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet balance is mutated only through the ledger sink, inside the same DB
// transaction that flips the owning payment to a terminal status.
type Wallet struct {
	ID        string          `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID    string          `gorm:"column:user_id;type:varchar(64);not null;index:idx_wallet_user" json:"user_id"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(20,2);not null" json:"balance"`
	Currency  string          `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Wallet) TableName() string { return "wallet" }
