package orchestrator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tamwil/paygate/internal/app/service/gateway"
	"github.com/tamwil/paygate/internal/app/service/ledger"
	"github.com/tamwil/paygate/internal/app/service/notify"
	"github.com/tamwil/paygate/internal/app/service/reconciler"
	"github.com/tamwil/paygate/internal/app/service/signature"
	"github.com/tamwil/paygate/internal/app/service/webhooklog"
	"github.com/tamwil/paygate/internal/models"
	cfgpkg "github.com/tamwil/paygate/pkg/config"
	"github.com/tamwil/paygate/pkg/tool"
	"github.com/tamwil/paygate/pkg/types"
)

type recordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingSink) Emit(_ context.Context, e notify.Event, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func newTestDB(t *testing.T) *gorm.DB {
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
	return db
}

const testSecret = "s3cret"

func testConfig(madaURL string) *cfgpkg.Config {
	return &cfgpkg.Config{
		Payment: cfgpkg.PaymentConfig{
			MaxAmount:       decimal.RequireFromString("10000"),
			DefaultCurrency: "SAR",
			CallbackBaseURL: "https://pay.example.com",
		},
		BankTransfer: cfgpkg.BankTransferConfig{
			Beneficiary: "Tamwil Co", IBAN: "SA4420000001234567891234", BankName: "Test Bank", ExpiryDays: 7,
		},
		Gateways: []*types.GatewayConfig{
			{Type: types.GatewayTypeMada, MerchantID: "M1", APIKey: "k", SecretKey: testSecret, APIURL: madaURL, IsActive: true},
			{Type: types.GatewayTypeSTCPay, MerchantID: "M1", APIKey: "k", SecretKey: testSecret, APIURL: madaURL, IsActive: false},
			{Type: types.GatewayTypeBankTransfer, MerchantID: "M1", SecretKey: testSecret, IsActive: true},
		},
	}
}

type env struct {
	db   *gorm.DB
	svc  PaymentManager
	sink *recordingSink
	cfg  *cfgpkg.Config
}

func newEnv(t *testing.T, madaURL string) *env {
	t.Helper()
	db := newTestDB(t)
	log := zap.NewNop().Sugar()
	cfg := testConfig(madaURL)
	sink := &recordingSink{}
	signer := signature.NewEngine()
	registry := gateway.NewRegistry(cfg, signer, log)
	return &env{
		db:   db,
		svc:  NewService(cfg, log, db, registry, signer, sink),
		sink: sink,
		cfg:  cfg,
	}
}

func (e *env) seedWallet(t *testing.T, balance string) *models.Wallet {
	t.Helper()
	w := &models.Wallet{
		ID: tool.GenerateUUIDV7(), UserID: "u1",
		Balance: decimal.RequireFromString(balance), Currency: "SAR",
	}
	require.NoError(t, e.db.Create(w).Error)
	return w
}

func (e *env) reloadTxn(t *testing.T, id string) *models.PaymentTransaction {
	t.Helper()
	var txn models.PaymentTransaction
	require.NoError(t, e.db.Where("id = ?", id).First(&txn).Error)
	return &txn
}

// acceptingMadaServer acknowledges every initiation with a hosted page URL.
// hits counts how many calls reached the provider.
func acceptingMadaServer(hits *atomic.Int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":         "accepted",
			"transaction_id": "mada_777",
			"payment_url":    "https://mada.example/pay/777",
		})
	}))
}

func TestCreatePayment_RejectsBadAmountBeforeAnyNetworkCall(t *testing.T) {
	var hits atomic.Int64
	srv := acceptingMadaServer(&hits)
	defer srv.Close()
	e := newEnv(t, srv.URL)
	w := e.seedWallet(t, "1000.00")

	cases := []struct {
		amount string
		want   error
	}{
		{"0", ErrAmountInvalid},
		{"-5.00", ErrAmountInvalid},
		{"10000.01", ErrLimitExceeded},
	}
	for _, tc := range cases {
		_, err := e.svc.CreatePayment(context.Background(), &CreatePaymentRequest{
			UserID: "u1", WalletID: w.ID,
			Amount: decimal.RequireFromString(tc.amount), GatewayType: types.GatewayTypeMada,
		})
		require.ErrorIs(t, err, tc.want, "amount %s", tc.amount)
	}

	require.EqualValues(t, 0, hits.Load())
	var count int64
	require.NoError(t, e.db.Model(&models.PaymentTransaction{}).Count(&count).Error)
	require.EqualValues(t, 0, count, "no transaction rows for rejected requests")
}

func TestCreatePayment_UnknownWallet(t *testing.T) {
	e := newEnv(t, "http://unused.example")
	_, err := e.svc.CreatePayment(context.Background(), &CreatePaymentRequest{
		UserID: "u1", WalletID: tool.GenerateUUIDV7(),
		Amount: decimal.RequireFromString("10.00"), GatewayType: types.GatewayTypeMada,
	})
	require.ErrorIs(t, err, ErrWalletNotFound)
}

func TestCreatePayment_CurrencyMismatch(t *testing.T) {
	e := newEnv(t, "http://unused.example")
	w := e.seedWallet(t, "1000.00")
	_, err := e.svc.CreatePayment(context.Background(), &CreatePaymentRequest{
		UserID: "u1", WalletID: w.ID, Currency: "USD",
		Amount: decimal.RequireFromString("10.00"), GatewayType: types.GatewayTypeMada,
	})
	require.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestCreatePayment_DefaultsToWalletCurrency(t *testing.T) {
	var hits atomic.Int64
	srv := acceptingMadaServer(&hits)
	defer srv.Close()
	e := newEnv(t, srv.URL)
	w := e.seedWallet(t, "1000.00")

	res, err := e.svc.CreatePayment(context.Background(), &CreatePaymentRequest{
		UserID: "u1", WalletID: w.ID,
		Amount: decimal.RequireFromString("25.00"), GatewayType: types.GatewayTypeMada,
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	txn := e.reloadTxn(t, res.TransactionID)
	require.Equal(t, "SAR", txn.Currency)
}

func TestCreatePayment_AcceptedAttachesGatewayReference(t *testing.T) {
	var hits atomic.Int64
	srv := acceptingMadaServer(&hits)
	defer srv.Close()
	e := newEnv(t, srv.URL)
	w := e.seedWallet(t, "1000.00")

	res, err := e.svc.CreatePayment(context.Background(), &CreatePaymentRequest{
		UserID: "u1", WalletID: w.ID,
		Amount: decimal.RequireFromString("250.00"), GatewayType: types.GatewayTypeMada,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "mada_777", res.GatewayTransactionID)
	require.Equal(t, "https://mada.example/pay/777", res.PaymentURL)
	require.EqualValues(t, 1, hits.Load())

	txn := e.reloadTxn(t, res.TransactionID)
	require.Equal(t, models.PaymentStatusPending, txn.Status, "acceptance is not completion")
	require.Equal(t, lo.ToPtr("mada_777"), txn.GatewayTransactionID)
	require.Nil(t, txn.ProcessedAt)
}

func TestProcessPayment_SynchronousDeclineIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "declined", "reason": "insufficient_funds"})
	}))
	defer srv.Close()
	e := newEnv(t, srv.URL)
	w := e.seedWallet(t, "1000.00")

	res, err := e.svc.CreatePayment(context.Background(), &CreatePaymentRequest{
		UserID: "u1", WalletID: w.ID,
		Amount: decimal.RequireFromString("250.00"), GatewayType: types.GatewayTypeMada,
	})
	require.NoError(t, err)
	require.False(t, res.Success)

	txn := e.reloadTxn(t, res.TransactionID)
	require.Equal(t, models.PaymentStatusFailed, txn.Status)
	require.NotNil(t, txn.ProcessedAt)
	require.Equal(t, []notify.Event{notify.EventPaymentFailed}, e.sink.events)
}

func TestProcessPayment_AmbiguousOutcomeLeavesPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	e := newEnv(t, srv.URL)
	w := e.seedWallet(t, "1000.00")

	res, err := e.svc.CreatePayment(context.Background(), &CreatePaymentRequest{
		UserID: "u1", WalletID: w.ID,
		Amount: decimal.RequireFromString("250.00"), GatewayType: types.GatewayTypeMada,
	})
	require.NoError(t, err, "ambiguity is not an error surfaced to the caller")
	require.False(t, res.Success)

	txn := e.reloadTxn(t, res.TransactionID)
	require.Equal(t, models.PaymentStatusPending, txn.Status)
	require.Nil(t, txn.GatewayTransactionID)
	require.Empty(t, e.sink.events)
}

func TestProcessPayment_AlreadyProcessed(t *testing.T) {
	e := newEnv(t, "http://unused.example")
	w := e.seedWallet(t, "1000.00")
	txn := &models.PaymentTransaction{
		ID: tool.GenerateUUIDV7(), UserID: "u1", WalletID: w.ID,
		ReferenceID: "PAY-DONE-1", GatewayType: types.GatewayTypeMada,
		Amount: decimal.RequireFromString("10.00"), Currency: "SAR",
		Status: models.PaymentStatusCompleted,
	}
	require.NoError(t, e.db.Create(txn).Error)

	_, err := e.svc.ProcessPayment(context.Background(), txn.ID, types.GatewayTypeMada)
	require.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestProcessPayment_InactiveGateway(t *testing.T) {
	var hits atomic.Int64
	srv := acceptingMadaServer(&hits)
	defer srv.Close()
	e := newEnv(t, srv.URL)
	w := e.seedWallet(t, "1000.00")

	_, err := e.svc.CreatePayment(context.Background(), &CreatePaymentRequest{
		UserID: "u1", WalletID: w.ID,
		Amount: decimal.RequireFromString("10.00"), GatewayType: types.GatewayTypeSTCPay,
	})
	require.ErrorIs(t, err, ErrGatewayInactive)
	require.EqualValues(t, 0, hits.Load())
}

func TestCreatePayment_BankTransferInstructions(t *testing.T) {
	e := newEnv(t, "http://unused.example")
	w := e.seedWallet(t, "1000.00")

	res, err := e.svc.CreatePayment(context.Background(), &CreatePaymentRequest{
		UserID: "u1", WalletID: w.ID,
		Amount: decimal.RequireFromString("500.00"), GatewayType: types.GatewayTypeBankTransfer,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "SA4420000001234567891234", res.Instructions["iban"])
	require.Equal(t, "500.00", res.Instructions["amount"])

	txn := e.reloadTxn(t, res.TransactionID)
	require.Equal(t, models.PaymentStatusPending, txn.Status)
	// the transfer reference doubles as the gateway transaction id
	require.Equal(t, lo.ToPtr(txn.ReferenceID), txn.GatewayTransactionID)
}

func TestGenerateQRCode_PayloadVerifies(t *testing.T) {
	var hits atomic.Int64
	srv := acceptingMadaServer(&hits)
	defer srv.Close()
	e := newEnv(t, srv.URL)
	w := e.seedWallet(t, "1000.00")

	res, err := e.svc.CreatePayment(context.Background(), &CreatePaymentRequest{
		UserID: "u1", WalletID: w.ID,
		Amount: decimal.RequireFromString("42.50"), GatewayType: types.GatewayTypeMada,
	})
	require.NoError(t, err)

	qr, err := e.svc.GenerateQRCode(context.Background(), res.TransactionID)
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(qr.QRPayload)
	require.NoError(t, err)
	var fields map[string]string
	require.NoError(t, json.Unmarshal(decoded, &fields))
	require.Equal(t, "42.50", fields["amount"])
	require.Equal(t, res.TransactionID, fields["transaction_id"])

	sig := fields[signature.SignatureField]
	delete(fields, signature.SignatureField)
	require.True(t, signature.NewEngine().VerifyGeneric(fields, sig, testSecret))
}

func TestGenerateQRCode_UnknownTransaction(t *testing.T) {
	e := newEnv(t, "http://unused.example")
	_, err := e.svc.GenerateQRCode(context.Background(), tool.GenerateUUIDV7())
	require.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestScanTransactions_FiltersAndPaginates(t *testing.T) {
	e := newEnv(t, "http://unused.example")
	w := e.seedWallet(t, "0")
	for i := 0; i < 5; i++ {
		status := models.PaymentStatusPending
		if i%2 == 0 {
			status = models.PaymentStatusCompleted
		}
		require.NoError(t, e.db.Create(&models.PaymentTransaction{
			ID: tool.GenerateUUIDV7(), UserID: "u1", WalletID: w.ID,
			ReferenceID: fmt.Sprintf("PAY-SCAN-%d", i), GatewayType: types.GatewayTypeMada,
			Amount: decimal.RequireFromString("10.00"), Currency: "SAR", Status: status,
		}).Error)
	}

	res, err := e.svc.ScanTransactions(context.Background(), &ScanTransactionsRequest{
		Filters: []*types.CommonFilter{
			{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{string(models.PaymentStatusCompleted)}},
		},
		Size: 2, SortBy: "reference_id", SortOrder: "asc",
	})
	require.NoError(t, err)
	require.EqualValues(t, 3, res.Total)
	require.Len(t, res.Items, 2)
	require.Equal(t, "PAY-SCAN-0", res.Items[0].ReferenceID)
}

// TestEndToEnd_TopUpCreditedByWebhook walks the whole lifecycle: a 250 SAR
// top-up is initiated against a stub provider, then the provider's completed
// webhook lands and the 1000 SAR wallet ends at 1250.
func TestEndToEnd_TopUpCreditedByWebhook(t *testing.T) {
	var hits atomic.Int64
	srv := acceptingMadaServer(&hits)
	defer srv.Close()

	db := newTestDB(t)
	log := zap.NewNop().Sugar()
	cfg := testConfig(srv.URL)
	sink := &recordingSink{}
	signer := signature.NewEngine()

	orch := NewService(cfg, log, db, gateway.NewRegistry(cfg, signer, log), signer, sink)
	rec := reconciler.NewService(db, log, signer, ledger.NewService(log), sink, webhooklog.New(db, log))

	wallet := &models.Wallet{
		ID: tool.GenerateUUIDV7(), UserID: "u1",
		Balance: decimal.RequireFromString("1000.00"), Currency: "SAR",
	}
	require.NoError(t, db.Create(wallet).Error)

	// gateway rows back webhook signature verification
	require.NoError(t, db.Create(&models.PaymentGateway{
		ID: tool.GenerateUUIDV7(), Type: types.GatewayTypeMada, MerchantID: "M1",
		APIKey: "k", SecretKey: testSecret, APIURL: srv.URL, IsActive: true,
	}).Error)

	res, err := orch.CreatePayment(context.Background(), &CreatePaymentRequest{
		UserID: "u1", WalletID: wallet.ID,
		Amount: decimal.RequireFromString("250.00"), GatewayType: types.GatewayTypeMada,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "mada_777", res.GatewayTransactionID)

	fields := map[string]string{
		"transaction_id": "mada_777",
		"status":         "completed",
		"amount":         "250.00",
		"currency":       "SAR",
	}
	sig := signer.SignGeneric(fields, testSecret)
	payload := []byte(fmt.Sprintf(
		`{"transaction_id":"mada_777","status":"completed","amount":250.00,"currency":"SAR","signature":%q}`, sig))

	webhookRes, err := rec.ProcessWebhook(context.Background(), payload, types.GatewayTypeMada)
	require.NoError(t, err)
	require.True(t, webhookRes.Success)
	require.Equal(t, models.PaymentStatusCompleted, webhookRes.Status)

	var w models.Wallet
	require.NoError(t, db.Where("id = ?", wallet.ID).First(&w).Error)
	require.True(t, w.Balance.Equal(decimal.RequireFromString("1250.00")),
		"balance %s", w.Balance.StringFixed(2))

	var entry models.LedgerEntry
	require.NoError(t, db.First(&entry).Error)
	require.Equal(t, res.TransactionID, entry.TransactionID)
	require.Equal(t, models.LedgerDirectionCredit, entry.Direction)
}
