package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tamwil/paygate/internal/app/service/signature"
	"github.com/tamwil/paygate/pkg/types"
)

// MadaAdapter speaks the card-scheme dialect: amounts in halalah, ordered
// pipe-joined signature, hosted payment page redirect.
type MadaAdapter struct {
	cfg    types.GatewayConfig
	signer *signature.Engine
	caller *httpCaller
	log    *zap.SugaredLogger
}

func NewMadaAdapter(cfg types.GatewayConfig, client *http.Client, timeout time.Duration, signer *signature.Engine, log *zap.SugaredLogger) *MadaAdapter {
	return &MadaAdapter{
		cfg:    cfg,
		signer: signer,
		caller: newHTTPCaller(client, timeout, string(types.GatewayTypeMada)),
		log:    log,
	}
}

func (a *MadaAdapter) Type() types.GatewayType { return types.GatewayTypeMada }

type madaCreateResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	PaymentURL    string `json:"payment_url"`
	Reason        string `json:"reason"`
}

func (a *MadaAdapter) CreatePayment(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	fields := map[string]string{
		"merchant_id": a.cfg.MerchantID,
		"order_id":    req.ReferenceID,
		"amount":      strconv.FormatInt(minorUnits(req.Amount), 10),
		"currency":    req.Currency,
		"timestamp":   strconv.FormatInt(time.Now().Unix(), 10),
	}
	sig, err := a.signer.SignCardScheme(fields, a.cfg.SecretKey)
	if err != nil {
		return nil, err
	}

	body := map[string]string{
		"merchant_id":  fields["merchant_id"],
		"order_id":     fields["order_id"],
		"amount":       fields["amount"],
		"currency":     fields["currency"],
		"timestamp":    fields["timestamp"],
		"callback_url": req.CallbackURL,
		"return_url":   req.ReturnURL,
		"signature":    sig,
	}

	status, raw, err := a.caller.do(ctx, http.MethodPost, a.cfg.APIURL+"/v1/payments", a.authHeaders(), body)
	if err != nil {
		return nil, err
	}

	var parsed madaCreateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %s", ErrAmbiguousOutcome, raw)
	}

	res := &PaymentResponse{RawResponse: raw}
	if status != http.StatusOK || parsed.Status == "declined" {
		res.DeclineReason = parsed.Reason
		return res, nil
	}
	if parsed.TransactionID == "" {
		return nil, fmt.Errorf("%w: response missing transaction_id: %s", ErrAmbiguousOutcome, raw)
	}
	res.Accepted = true
	res.GatewayTransactionID = parsed.TransactionID
	res.PaymentURL = parsed.PaymentURL
	return res, nil
}

func (a *MadaAdapter) QueryStatus(ctx context.Context, gatewayTransactionID string) (map[string]any, error) {
	status, raw, err := a.caller.do(ctx, http.MethodGet, a.cfg.APIURL+"/v1/payments/"+gatewayTransactionID, a.authHeaders(), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("status query returned %d: %s", status, raw)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("malformed status payload: %w", err)
	}
	return payload, nil
}

func (a *MadaAdapter) authHeaders() map[string]string {
	return map[string]string{"X-API-Key": a.cfg.APIKey}
}
