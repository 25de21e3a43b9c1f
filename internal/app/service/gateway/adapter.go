package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tamwil/paygate/pkg/types"
)

var (
	// ErrAmbiguousOutcome marks a provider call whose outcome is unknown
	// (timeout, 5xx, malformed body). The provider may have received the
	// request; the transaction must stay pending until reconciliation.
	ErrAmbiguousOutcome = errors.New("gateway outcome ambiguous")

	// ErrNotSupported marks an operation a gateway dialect does not offer.
	ErrNotSupported = errors.New("operation not supported by gateway")
)

// PaymentRequest is the provider-agnostic payment initiation payload built by
// the orchestrator. Amount is in major units; adapters convert to the
// provider's minor-unit convention where required.
type PaymentRequest struct {
	TransactionID  string
	ReferenceID    string
	Amount         decimal.Decimal
	Currency       string
	CustomerMobile string
	CustomerEmail  string
	CallbackURL    string
	ReturnURL      string
}

// PaymentResponse is the parsed provider answer to a payment initiation.
// RawResponse always carries the provider body verbatim for audit.
type PaymentResponse struct {
	// Accepted is false when the provider rejected the payment synchronously.
	Accepted             bool
	GatewayTransactionID string
	// PaymentURL is the redirect/payment page URL, when the dialect has one.
	PaymentURL    string
	DeclineReason string
	// Instructions holds offline payment details (bank transfer only).
	Instructions map[string]any
	RawResponse  json.RawMessage
}

// Adapter translates generic payment requests into one provider dialect.
type Adapter interface {
	Type() types.GatewayType
	// CreatePayment initiates a payment with the provider. An error wrapping
	// ErrAmbiguousOutcome means the outcome is unknown, not failed.
	CreatePayment(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error)
	// QueryStatus is a read-only status probe by gateway transaction id.
	QueryStatus(ctx context.Context, gatewayTransactionID string) (map[string]any, error)
}

// Registry is the lookup table replacing per-gateway switch dispatch.
type Registry struct {
	adapters map[types.GatewayType]Adapter
}

func NewRegistryFromAdapters(adapters ...Adapter) *Registry {
	m := make(map[types.GatewayType]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Type()] = a
	}
	return &Registry{adapters: m}
}

func (r *Registry) Get(t types.GatewayType) (Adapter, error) {
	a, ok := r.adapters[t]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for gateway %q", t)
	}
	return a, nil
}

// minorUnits converts a major-unit amount to the smallest currency unit
// (e.g. SAR -> halalah).
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
