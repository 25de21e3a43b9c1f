package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"

	"github.com/tamwil/paygate/internal/app/service/signature"
	"github.com/tamwil/paygate/pkg/types"
)

// ApplePayAdapter speaks the device-wallet dialect: a short-lived merchant
// session JWT authenticates each call; there is no redirect URL because the
// payment sheet is presented on-device.
type ApplePayAdapter struct {
	cfg    types.GatewayConfig
	signer *signature.Engine
	caller *httpCaller
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewApplePayAdapter(cfg types.GatewayConfig, client *http.Client, timeout time.Duration, signer *signature.Engine, log *zap.SugaredLogger) *ApplePayAdapter {
	return &ApplePayAdapter{
		cfg:    cfg,
		signer: signer,
		caller: newHTTPCaller(client, timeout, string(types.GatewayTypeApplePay)),
		log:    log,
		now:    time.Now,
	}
}

func (a *ApplePayAdapter) Type() types.GatewayType { return types.GatewayTypeApplePay }

// merchantSessionToken builds the per-call merchant JWT.
func (a *ApplePayAdapter) merchantSessionToken() (string, error) {
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": a.cfg.MerchantID,
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	})
	return token.SignedString([]byte(a.cfg.SecretKey))
}

type applePayCreateResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

func (a *ApplePayAdapter) CreatePayment(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	token, err := a.merchantSessionToken()
	if err != nil {
		return nil, fmt.Errorf("merchant session token: %w", err)
	}

	fields := map[string]string{
		"merchant_id":  a.cfg.MerchantID,
		"reference_id": req.ReferenceID,
		"amount_minor": strconv.FormatInt(minorUnits(req.Amount), 10),
		"currency":     req.Currency,
		"callback_url": req.CallbackURL,
	}
	sig := a.signer.SignGeneric(fields, a.cfg.SecretKey)

	body := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["signature"] = sig

	headers := map[string]string{"Authorization": "Bearer " + token}
	status, raw, err := a.caller.do(ctx, http.MethodPost, a.cfg.APIURL+"/paymentservices/payments", headers, body)
	if err != nil {
		return nil, err
	}

	var parsed applePayCreateResponse
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
	return res, nil
}

func (a *ApplePayAdapter) QueryStatus(ctx context.Context, gatewayTransactionID string) (map[string]any, error) {
	token, err := a.merchantSessionToken()
	if err != nil {
		return nil, fmt.Errorf("merchant session token: %w", err)
	}
	headers := map[string]string{"Authorization": "Bearer " + token}
	status, raw, err := a.caller.do(ctx, http.MethodGet, a.cfg.APIURL+"/paymentservices/payments/"+gatewayTransactionID, headers, nil)
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
