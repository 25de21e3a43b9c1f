package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerDirection string

const (
	LedgerDirectionCredit LedgerDirection = "credit"
	LedgerDirectionDebit  LedgerDirection = "debit"
)

// LedgerEntry is the append-only record of a wallet balance mutation. The
// unique reference index is the schema-level idempotency backstop: a second
// credit with the same reference cannot be inserted.
type LedgerEntry struct {
	ID       string `gorm:"column:id;primary_key;type:uuid" json:"id"`
	WalletID string `gorm:"column:wallet_id;type:uuid;not null;index:idx_ledger_wallet" json:"wallet_id"`
	// TransactionID ties the entry to exactly one payment transaction.
	TransactionID string          `gorm:"column:transaction_id;type:uuid;not null" json:"transaction_id"`
	ReferenceID   string          `gorm:"column:reference_id;type:varchar(64);not null;uniqueIndex:unique_ledger_reference" json:"reference_id"`
	Direction     LedgerDirection `gorm:"column:direction;type:varchar(16);not null" json:"direction"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
	Currency      string          `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	// BalanceAfter snapshots the wallet balance at commit time.
	BalanceAfter decimal.Decimal `gorm:"column:balance_after;type:numeric(20,2);not null" json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (LedgerEntry) TableName() string { return "ledger_entry" }
