package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tamwil/paygate/internal/models"
	"github.com/tamwil/paygate/pkg/logctx"
	"github.com/tamwil/paygate/pkg/metrics"
	"github.com/tamwil/paygate/pkg/tool"
)

var (
	ErrWalletNotFound   = errors.New("wallet not found")
	ErrCurrencyMismatch = errors.New("ledger currency mismatch")
)

// Sink mutates wallet balances and appends immutable ledger entries. Credit
// must be idempotent per reference id: calling it twice with the same
// reference never double-credits.
type Sink interface {
	Credit(ctx context.Context, tx *gorm.DB, walletID string, amount decimal.Decimal, currency, referenceID, transactionID string) (*models.LedgerEntry, error)
}

type Service struct {
	log *zap.SugaredLogger
}

func NewService(log *zap.SugaredLogger) Sink {
	return &Service{log: log}
}

// Credit runs inside the caller's DB transaction so the balance mutation,
// ledger append and transaction status flip commit or roll back together.
func (s *Service) Credit(ctx context.Context, tx *gorm.DB, walletID string, amount decimal.Decimal, currency, referenceID, transactionID string) (*models.LedgerEntry, error) {
	var existing models.LedgerEntry
	err := tx.WithContext(ctx).Where("reference_id = ?", referenceID).First(&existing).Error
	if err == nil {
		// already applied; return the original entry untouched
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("ledger lookup: %w", err)
	}

	var wallet models.Wallet
	if err := tx.WithContext(ctx).Where("id = ?", walletID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet lookup: %w", err)
	}
	if wallet.Currency != currency {
		return nil, fmt.Errorf("%w: wallet %s, credit %s", ErrCurrencyMismatch, wallet.Currency, currency)
	}

	newBalance := wallet.Balance.Add(amount)
	if err := tx.WithContext(ctx).Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Update("balance", newBalance).Error; err != nil {
		return nil, fmt.Errorf("wallet credit: %w", err)
	}

	entry := &models.LedgerEntry{
		ID:            tool.GenerateUUIDV7(),
		WalletID:      walletID,
		TransactionID: transactionID,
		ReferenceID:   referenceID,
		Direction:     models.LedgerDirectionCredit,
		Amount:        amount,
		Currency:      currency,
		BalanceAfter:  newBalance,
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("ledger append: %w", err)
	}

	metrics.LedgerCredits.Inc()
	logctx.FromCtx(ctx, s.log).Infow("ledger_credit_applied",
		"wallet_id", walletID,
		"reference_id", referenceID,
		"amount", amount.StringFixed(2),
		"balance_after", newBalance.StringFixed(2),
	)
	return entry, nil
}
