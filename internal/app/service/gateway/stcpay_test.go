package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tamwil/paygate/internal/app/service/signature"
	"github.com/tamwil/paygate/pkg/types"
)

func TestSTCPay_CreatePayment_GenericSignatureVerifies(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/charges", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"state":"initiated","ref_id":"stc_9","redirect_url":"https://stc.example/pay/stc_9"}`))
	}))
	defer srv.Close()

	cfg := types.GatewayConfig{
		Type: types.GatewayTypeSTCPay, MerchantID: "M1", APIKey: "mk", SecretKey: "s3cret", APIURL: srv.URL, IsActive: true,
	}
	a := NewSTCPayAdapter(cfg, &http.Client{}, 5*time.Second, signature.NewEngine(), zap.NewNop().Sugar())

	res, err := a.CreatePayment(context.Background(), &PaymentRequest{
		ReferenceID:    "PAY-9",
		Amount:         decimal.RequireFromString("99.50"),
		Currency:       "SAR",
		CustomerMobile: "+966500000000",
		CallbackURL:    "https://merchant.example/webhook",
	})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Equal(t, "stc_9", res.GatewayTransactionID)
	require.Equal(t, "https://stc.example/pay/stc_9", res.PaymentURL)

	// the signature on the wire verifies against the shared secret
	sig := got["signature"]
	require.True(t, signature.NewEngine().Verify(types.GatewayTypeSTCPay, got, sig, "s3cret"))
	require.Equal(t, "99.50", got["amount"])
}

func TestApplePay_CreatePayment_SendsMerchantSessionJWT(t *testing.T) {
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"status":"authorized","transaction_id":"ap_3"}`))
	}))
	defer srv.Close()

	cfg := types.GatewayConfig{
		Type: types.GatewayTypeApplePay, MerchantID: "merchant.sa.tamwil", SecretKey: "jwtsecret", APIURL: srv.URL, IsActive: true,
	}
	a := NewApplePayAdapter(cfg, &http.Client{}, 5*time.Second, signature.NewEngine(), zap.NewNop().Sugar())

	res, err := a.CreatePayment(context.Background(), &PaymentRequest{
		ReferenceID: "PAY-3", Amount: decimal.RequireFromString("10.00"), Currency: "SAR",
	})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Equal(t, "ap_3", res.GatewayTransactionID)
	require.Empty(t, res.PaymentURL)

	require.True(t, strings.HasPrefix(authHeader, "Bearer "))
	raw := strings.TrimPrefix(authHeader, "Bearer ")
	token, err := jwt.Parse(raw, func(tok *jwt.Token) (interface{}, error) {
		return []byte("jwtsecret"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	require.Equal(t, "merchant.sa.tamwil", claims["iss"])
}
