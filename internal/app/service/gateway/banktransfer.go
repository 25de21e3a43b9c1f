package gateway

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/tamwil/paygate/pkg/config"
	"github.com/tamwil/paygate/pkg/types"
)

// BankTransferAdapter is the synchronous-only pseudo-gateway: it never calls
// an external endpoint. It deterministically renders transfer instructions;
// the transaction stays pending until a confirmation arrives through the
// normal webhook path, keyed by the transfer reference.
type BankTransferAdapter struct {
	cfg   cfgpkg.BankTransferConfig
	log   *zap.SugaredLogger
	clock func() time.Time
}

func NewBankTransferAdapter(cfg cfgpkg.BankTransferConfig, log *zap.SugaredLogger) *BankTransferAdapter {
	return &BankTransferAdapter{cfg: cfg, log: log, clock: time.Now}
}

func (a *BankTransferAdapter) Type() types.GatewayType { return types.GatewayTypeBankTransfer }

func (a *BankTransferAdapter) CreatePayment(_ context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	expiryDays := a.cfg.ExpiryDays
	if expiryDays <= 0 {
		expiryDays = 7
	}
	instructions := map[string]any{
		"beneficiary":        a.cfg.Beneficiary,
		"iban":               a.cfg.IBAN,
		"bank_name":          a.cfg.BankName,
		"transfer_reference": req.ReferenceID,
		"amount":             req.Amount.StringFixed(2),
		"currency":           req.Currency,
		"expires_at":         a.clock().UTC().Add(time.Duration(expiryDays) * 24 * time.Hour).Format(time.RFC3339),
	}
	raw, _ := json.Marshal(instructions)

	// The transfer reference doubles as the gateway transaction id so the
	// confirmation webhook can address this transaction.
	return &PaymentResponse{
		Accepted:             true,
		GatewayTransactionID: req.ReferenceID,
		Instructions:         instructions,
		RawResponse:          raw,
	}, nil
}

func (a *BankTransferAdapter) QueryStatus(_ context.Context, _ string) (map[string]any, error) {
	return nil, ErrNotSupported
}
