package orchestrator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tamwil/paygate/internal/app/service/gateway"
	"github.com/tamwil/paygate/internal/app/service/notify"
	"github.com/tamwil/paygate/internal/app/service/signature"
	"github.com/tamwil/paygate/internal/models"
	cfgpkg "github.com/tamwil/paygate/pkg/config"
	"github.com/tamwil/paygate/pkg/locale"
	"github.com/tamwil/paygate/pkg/logctx"
	"github.com/tamwil/paygate/pkg/metrics"
	"github.com/tamwil/paygate/pkg/tool"
	"github.com/tamwil/paygate/pkg/types"
)

type Service struct {
	cfg      *cfgpkg.Config
	log      *zap.SugaredLogger
	db       *gorm.DB
	registry *gateway.Registry
	signer   *signature.Engine
	notifier notify.Sink
}

func NewService(cfg *cfgpkg.Config, log *zap.SugaredLogger, db *gorm.DB, registry *gateway.Registry, signer *signature.Engine, notifier notify.Sink) PaymentManager {
	return &Service{cfg: cfg, log: log, db: db, registry: registry, signer: signer, notifier: notifier}
}

func (s *Service) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*ProcessPaymentResult, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if !req.Amount.IsPositive() {
		return nil, ErrAmountInvalid
	}
	if req.Amount.GreaterThan(s.cfg.Payment.MaxAmount) {
		return nil, ErrLimitExceeded
	}
	if !req.GatewayType.Valid() {
		return nil, ErrGatewayNotFound
	}

	var wallet models.Wallet
	if err := s.db.WithContext(ctx).Where("id = ?", req.WalletID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet lookup: %w", err)
	}
	currency := req.Currency
	if currency == "" {
		currency = wallet.Currency
	}
	if currency != wallet.Currency {
		return nil, ErrCurrencyMismatch
	}

	meta, _ := json.Marshal(map[string]string{
		"customer_mobile": req.CustomerMobile,
		"customer_email":  req.CustomerEmail,
	})
	txn := &models.PaymentTransaction{
		ID:          tool.GenerateUUIDV7(),
		UserID:      req.UserID,
		WalletID:    wallet.ID,
		ReferenceID: tool.GenerateReference("PAY"),
		GatewayType: req.GatewayType,
		Amount:      req.Amount,
		Currency:    currency,
		Status:      models.PaymentStatusPending,
		Metadata:    datatypes.JSON(meta),
	}
	if err := s.db.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("payment_created",
		"transaction_id", txn.ID, "reference_id", txn.ReferenceID, "gateway", txn.GatewayType)

	return s.ProcessPayment(ctx, txn.ID, req.GatewayType)
}

func (s *Service) ProcessPayment(ctx context.Context, transactionID string, gatewayType types.GatewayType) (*ProcessPaymentResult, error) {
	log := logctx.FromCtx(ctx, s.log)

	var txn models.PaymentTransaction
	if err := s.db.WithContext(ctx).Where("id = ?", transactionID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction lookup: %w", err)
	}
	if txn.Status != models.PaymentStatusPending {
		return nil, ErrAlreadyProcessed
	}

	// All validation happens before any network call.
	if !txn.Amount.IsPositive() {
		return nil, ErrAmountInvalid
	}
	if txn.Amount.GreaterThan(s.cfg.Payment.MaxAmount) {
		return nil, ErrLimitExceeded
	}
	gwCfg := s.cfg.GetGatewayByType(gatewayType)
	if gwCfg == nil {
		return nil, ErrGatewayNotFound
	}
	if !gwCfg.IsActive {
		return nil, ErrGatewayInactive
	}
	adapter, err := s.registry.Get(gatewayType)
	if err != nil {
		return nil, ErrGatewayNotFound
	}

	req := s.buildPaymentRequest(&txn, gatewayType)
	log.Infow("payment_dispatch", "transaction_id", txn.ID, "gateway", gatewayType)

	resp, err := adapter.CreatePayment(ctx, req)
	if err != nil {
		if errors.Is(err, gateway.ErrAmbiguousOutcome) {
			// The provider may have received the request. Leave the
			// transaction pending; the webhook or a status poll resolves it.
			metrics.PaymentsInitiated.WithLabelValues(string(gatewayType), metrics.ResultAmbiguous).Inc()
			log.Warnw("payment_outcome_ambiguous", "transaction_id", txn.ID, "error", err.Error())
			return &ProcessPaymentResult{
				Success:       false,
				MessageKey:    locale.KeyPaymentPending,
				Message:       locale.Message(locale.KeyPaymentPending, locale.Default),
				TransactionID: txn.ID,
			}, nil
		}
		return nil, fmt.Errorf("gateway dispatch: %w", err)
	}

	if !resp.Accepted {
		// Synchronous provider rejection is terminal.
		if err := s.markFailed(ctx, &txn, resp.RawResponse); err != nil {
			return nil, err
		}
		metrics.PaymentsInitiated.WithLabelValues(string(gatewayType), metrics.ResultRejected).Inc()
		s.notifier.Emit(ctx, notify.EventPaymentFailed, txn.ID)
		log.Infow("payment_rejected", "transaction_id", txn.ID, "reason", resp.DeclineReason)
		return &ProcessPaymentResult{
			Success:       false,
			MessageKey:    locale.KeyPaymentFailed,
			Message:       locale.Message(locale.KeyPaymentFailed, locale.Default),
			TransactionID: txn.ID,
		}, nil
	}

	if err := s.attachGatewayReference(ctx, &txn, resp); err != nil {
		return nil, err
	}
	metrics.PaymentsInitiated.WithLabelValues(string(gatewayType), metrics.ResultOK).Inc()
	log.Infow("payment_accepted",
		"transaction_id", txn.ID, "gateway_transaction_id", resp.GatewayTransactionID)

	return &ProcessPaymentResult{
		Success:              true,
		MessageKey:           locale.KeyPaymentPending,
		Message:              locale.Message(locale.KeyPaymentPending, locale.Default),
		TransactionID:        txn.ID,
		GatewayTransactionID: resp.GatewayTransactionID,
		PaymentURL:           resp.PaymentURL,
		Instructions:         resp.Instructions,
	}, nil
}

func (s *Service) buildPaymentRequest(txn *models.PaymentTransaction, gatewayType types.GatewayType) *gateway.PaymentRequest {
	var meta map[string]string
	_ = json.Unmarshal(txn.Metadata, &meta)

	base := s.cfg.Payment.CallbackBaseURL
	return &gateway.PaymentRequest{
		TransactionID:  txn.ID,
		ReferenceID:    txn.ReferenceID,
		Amount:         txn.Amount,
		Currency:       txn.Currency,
		CustomerMobile: meta["customer_mobile"],
		CustomerEmail:  meta["customer_email"],
		CallbackURL:    base + "/api/v1/webhooks/" + string(gatewayType),
		ReturnURL:      base + "/payments/return",
	}
}

// attachGatewayReference persists the provider acknowledgement. The update
// predicate requires status=pending and an unset gateway reference so a
// concurrent webhook transition is never clobbered and the reference stays
// immutable once assigned.
func (s *Service) attachGatewayReference(ctx context.Context, txn *models.PaymentTransaction, resp *gateway.PaymentResponse) error {
	updates := map[string]any{
		"gateway_transaction_id": resp.GatewayTransactionID,
		"gateway_response":       datatypes.JSON(resp.RawResponse),
	}
	if len(resp.Instructions) > 0 {
		merged := mergeMetadata(txn.Metadata, resp.Instructions)
		updates["metadata"] = merged
	}

	res := s.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ? AND gateway_transaction_id IS NULL", txn.ID, models.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("attach gateway reference: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// The webhook raced ahead of the synchronous response. Normal case;
		// the reconciler owns the transaction now.
		logctx.FromCtx(ctx, s.log).Infow("gateway_reference_attach_skipped",
			"transaction_id", txn.ID)
	}
	return nil
}

func (s *Service) markFailed(ctx context.Context, txn *models.PaymentTransaction, raw json.RawMessage) error {
	res := s.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
		Where("id = ? AND status = ?", txn.ID, models.PaymentStatusPending).
		Updates(map[string]any{
			"status":           models.PaymentStatusFailed,
			"gateway_response": datatypes.JSON(raw),
			"processed_at":     lo.ToPtr(time.Now().UTC()),
		})
	if res.Error != nil {
		return fmt.Errorf("mark failed: %w", res.Error)
	}
	return nil
}

func (s *Service) VerifyPaymentStatus(ctx context.Context, gatewayTransactionID string, gatewayType types.GatewayType) (map[string]any, error) {
	gwCfg := s.cfg.GetGatewayByType(gatewayType)
	if gwCfg == nil {
		return nil, ErrGatewayNotFound
	}
	adapter, err := s.registry.Get(gatewayType)
	if err != nil {
		return nil, ErrGatewayNotFound
	}
	return adapter.QueryStatus(ctx, gatewayTransactionID)
}

func (s *Service) GenerateQRCode(ctx context.Context, transactionID string) (*QRCodeResult, error) {
	var txn models.PaymentTransaction
	if err := s.db.WithContext(ctx).Where("id = ?", transactionID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction lookup: %w", err)
	}
	gwCfg := s.cfg.GetGatewayByType(txn.GatewayType)
	if gwCfg == nil {
		return nil, ErrGatewayNotFound
	}

	fields := map[string]string{
		"transaction_id": txn.ID,
		"amount":         txn.Amount.StringFixed(2),
		"currency":       txn.Currency,
		"merchant_id":    gwCfg.MerchantID,
		"timestamp":      strconv.FormatInt(time.Now().Unix(), 10),
	}
	fields[signature.SignatureField] = s.signer.SignGeneric(fields, gwCfg.SecretKey)

	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal qr payload: %w", err)
	}
	return &QRCodeResult{
		QRPayload:  base64.StdEncoding.EncodeToString(payload),
		SignedData: fields,
	}, nil
}

func mergeMetadata(existing datatypes.JSON, extra map[string]any) datatypes.JSON {
	merged := map[string]any{}
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &merged)
	}
	for k, v := range extra {
		merged[k] = v
	}
	out, _ := json.Marshal(merged)
	return datatypes.JSON(out)
}
