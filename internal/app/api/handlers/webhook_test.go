package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tamwil/paygate/internal/app/service/ledger"
	"github.com/tamwil/paygate/internal/app/service/notify"
	"github.com/tamwil/paygate/internal/app/service/reconciler"
	"github.com/tamwil/paygate/internal/app/service/signature"
	"github.com/tamwil/paygate/internal/app/service/webhooklog"
	"github.com/tamwil/paygate/internal/models"
	"github.com/tamwil/paygate/pkg/response"
	"github.com/tamwil/paygate/pkg/tool"
)

func newWebhookRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", tool.GenerateUUIDV7())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.PaymentGateway{},
		&models.PaymentTransaction{},
		&models.Wallet{},
		&models.LedgerEntry{},
		&models.WebhookLog{},
	))

	log := zap.NewNop().Sugar()
	svc := reconciler.NewService(db, log, signature.NewEngine(), ledger.NewService(log), notify.NewLogSink(log), webhooklog.New(db, log))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterWebhookRoutes(r.Group("/api/v1/webhooks"), svc, log)
	return r, db
}

func postWebhook(r *gin.Engine, path, body string) map[string]any {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var envelope map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &envelope)
	return envelope
}

func TestApiGatewayWebhook_UnknownGatewayType(t *testing.T) {
	r, _ := newWebhookRouter(t)
	envelope := postWebhook(r, "/api/v1/webhooks/bogus", "{}")
	require.EqualValues(t, response.APIResponseCodeBadRequest, envelope["code"])
}

func TestApiGatewayWebhook_UnconfiguredGateway(t *testing.T) {
	r, _ := newWebhookRouter(t)
	envelope := postWebhook(r, "/api/v1/webhooks/mada", `{"transaction_id":"gw_1"}`)
	require.EqualValues(t, response.APIResponseCodeNotFound, envelope["code"])
}

func TestApiGatewayWebhook_InvalidSignature(t *testing.T) {
	r, db := newWebhookRouter(t)
	require.NoError(t, db.Create(&models.PaymentGateway{
		ID: tool.GenerateUUIDV7(), Type: "mada", MerchantID: "M1",
		APIKey: "k", SecretKey: "s", APIURL: "http://gw.example", IsActive: true,
	}).Error)

	envelope := postWebhook(r, "/api/v1/webhooks/mada",
		`{"transaction_id":"gw_1","status":"completed","signature":"bad"}`)
	require.EqualValues(t, response.APIResponseCodeBadRequest, envelope["code"])
}

func TestApiGatewayWebhook_Handled(t *testing.T) {
	r, db := newWebhookRouter(t)
	secret := "whsec"
	require.NoError(t, db.Create(&models.PaymentGateway{
		ID: tool.GenerateUUIDV7(), Type: "mada", MerchantID: "M1",
		APIKey: "k", SecretKey: secret, APIURL: "http://gw.example", IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&models.Wallet{
		ID: "11111111-1111-7111-8111-111111111111", UserID: "u1",
		Balance: decimal.Zero, Currency: "SAR",
	}).Error)
	require.NoError(t, db.Create(&models.PaymentTransaction{
		ID: tool.GenerateUUIDV7(), UserID: "u1", WalletID: "11111111-1111-7111-8111-111111111111",
		ReferenceID: "PAY-H-1", GatewayType: "mada",
		GatewayTransactionID: lo.ToPtr("gw_h1"),
		Amount:               decimal.RequireFromString("10.00"), Currency: "SAR",
		Status: models.PaymentStatusPending,
	}).Error)

	fields := map[string]string{
		"transaction_id": "gw_h1", "status": "failed", "reason": "expired",
	}
	sig := signature.NewEngine().SignGeneric(fields, secret)
	envelope := postWebhook(r, "/api/v1/webhooks/mada", fmt.Sprintf(
		`{"transaction_id":"gw_h1","status":"failed","reason":"expired","signature":%q}`, sig))

	require.EqualValues(t, response.APIResponseCodeOK, envelope["code"])
	data := envelope["data"].(map[string]any)
	require.Equal(t, true, data["success"])
	require.Equal(t, string(models.PaymentStatusFailed), data["status"])
}
