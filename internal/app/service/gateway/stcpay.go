package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tamwil/paygate/internal/app/service/signature"
	"github.com/tamwil/paygate/pkg/types"
)

// STCPayAdapter speaks the mobile-wallet dialect: major-unit amounts, sorted
// key=value signature, customer mobile number, redirect to the wallet app.
type STCPayAdapter struct {
	cfg    types.GatewayConfig
	signer *signature.Engine
	caller *httpCaller
	log    *zap.SugaredLogger
}

func NewSTCPayAdapter(cfg types.GatewayConfig, client *http.Client, timeout time.Duration, signer *signature.Engine, log *zap.SugaredLogger) *STCPayAdapter {
	return &STCPayAdapter{
		cfg:    cfg,
		signer: signer,
		caller: newHTTPCaller(client, timeout, string(types.GatewayTypeSTCPay)),
		log:    log,
	}
}

func (a *STCPayAdapter) Type() types.GatewayType { return types.GatewayTypeSTCPay }

type stcPayCreateResponse struct {
	State       string `json:"state"`
	RefID       string `json:"ref_id"`
	RedirectURL string `json:"redirect_url"`
	Message     string `json:"message"`
}

func (a *STCPayAdapter) CreatePayment(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	fields := map[string]string{
		"merchant_id":  a.cfg.MerchantID,
		"reference_id": req.ReferenceID,
		"amount":       req.Amount.StringFixed(2),
		"currency":     req.Currency,
		"mobile":       req.CustomerMobile,
		"callback_url": req.CallbackURL,
	}
	sig := a.signer.SignGeneric(fields, a.cfg.SecretKey)

	body := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["signature"] = sig

	status, raw, err := a.caller.do(ctx, http.MethodPost, a.cfg.APIURL+"/v2/charges", a.authHeaders(), body)
	if err != nil {
		return nil, err
	}

	var parsed stcPayCreateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %s", ErrAmbiguousOutcome, raw)
	}

	res := &PaymentResponse{RawResponse: raw}
	if status != http.StatusOK || parsed.State == "rejected" {
		res.DeclineReason = parsed.Message
		return res, nil
	}
	if parsed.RefID == "" {
		return nil, fmt.Errorf("%w: response missing ref_id: %s", ErrAmbiguousOutcome, raw)
	}
	res.Accepted = true
	res.GatewayTransactionID = parsed.RefID
	res.PaymentURL = parsed.RedirectURL
	return res, nil
}

func (a *STCPayAdapter) QueryStatus(ctx context.Context, gatewayTransactionID string) (map[string]any, error) {
	status, raw, err := a.caller.do(ctx, http.MethodGet, a.cfg.APIURL+"/v2/charges/"+gatewayTransactionID, a.authHeaders(), nil)
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

func (a *STCPayAdapter) authHeaders() map[string]string {
	return map[string]string{"X-Merchant-Key": a.cfg.APIKey}
}
