package orchestrator

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tamwil/paygate/internal/models"
	"github.com/tamwil/paygate/pkg/locale"
	"github.com/tamwil/paygate/pkg/types"
)

type CreatePaymentRequest struct {
	UserID         string            `json:"user_id"`
	WalletID       string            `json:"wallet_id"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	GatewayType    types.GatewayType `json:"gateway_type"`
	CustomerMobile string            `json:"customer_mobile"`
	CustomerEmail  string            `json:"customer_email"`
	Locale         locale.Locale     `json:"locale"`
}

// ProcessPaymentResult is the upward-facing payment initiation contract.
type ProcessPaymentResult struct {
	Success              bool   `json:"success"`
	Message              string `json:"message"`
	MessageKey           string `json:"message_key"`
	TransactionID        string `json:"transaction_id"`
	GatewayTransactionID string `json:"gateway_transaction_id,omitempty"`
	PaymentURL           string `json:"payment_url,omitempty"`
	// Instructions carries offline transfer details for the bank-transfer
	// pseudo-gateway.
	Instructions map[string]any `json:"instructions,omitempty"`
}

type QRCodeResult struct {
	// QRPayload is the base64-encoded JSON blob to render as a QR code.
	QRPayload string `json:"qr_payload"`
	// SignedData is the field set embedded in the payload, signature included.
	SignedData map[string]string `json:"signed_data"`
}

type ScanTransactionsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanTransactionsResponse struct {
	Items []*models.PaymentTransaction `json:"items"`
	Total int64                        `json:"total"`
}

// PaymentManager drives the payment lifecycle: creation, provider dispatch,
// read-only status probing and QR payload generation. Terminal state
// transitions belong exclusively to the webhook reconciler.
type PaymentManager interface {
	// CreatePayment inserts a pending transaction and immediately runs
	// ProcessPayment on it.
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*ProcessPaymentResult, error)
	// ProcessPayment dispatches a pending transaction to its gateway.
	ProcessPayment(ctx context.Context, transactionID string, gatewayType types.GatewayType) (*ProcessPaymentResult, error)
	// VerifyPaymentStatus probes the provider for the current status. It
	// never mutates transaction state.
	VerifyPaymentStatus(ctx context.Context, gatewayTransactionID string, gatewayType types.GatewayType) (map[string]any, error)
	// GenerateQRCode builds a signed, encodable payment payload.
	GenerateQRCode(ctx context.Context, transactionID string) (*QRCodeResult, error)
	// ScanTransactions implements paginated/admin listing with filters.
	ScanTransactions(ctx context.Context, req *ScanTransactionsRequest) (*ScanTransactionsResponse, error)
}
