package reconciler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tamwil/paygate/internal/app/service/ledger"
	"github.com/tamwil/paygate/internal/app/service/notify"
	"github.com/tamwil/paygate/internal/app/service/signature"
	"github.com/tamwil/paygate/internal/app/service/webhooklog"
	"github.com/tamwil/paygate/internal/models"
	"github.com/tamwil/paygate/pkg/logctx"
	"github.com/tamwil/paygate/pkg/metrics"
	"github.com/tamwil/paygate/pkg/types"
)

var (
	ErrGatewayNotFound = errors.New("gateway not configured")
	// ErrInvalidSignature marks a webhook that failed message
	// authentication. Security boundary: no state change, no retry.
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrTransactionNotFound = errors.New("transaction not found for webhook")
	ErrMalformedPayload    = errors.New("malformed webhook payload")
	ErrUnsupportedStatus   = errors.New("unsupported webhook status")
)

// Result is the HTTP-facing webhook processing contract.
type Result struct {
	Success       bool                 `json:"success"`
	TransactionID string               `json:"transaction_id"`
	Status        models.PaymentStatus `json:"status"`
	// Duplicate marks the idempotent no-op taken when the transaction was
	// already terminal. Reported as success; providers retry deliveries.
	Duplicate bool `json:"duplicate,omitempty"`
}

// Service applies provider-asynchronous outcomes exactly once.
type Service struct {
	db       *gorm.DB
	log      *zap.SugaredLogger
	signer   *signature.Engine
	ledger   ledger.Sink
	notifier notify.Sink
	audit    *webhooklog.Service
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, signer *signature.Engine, sink ledger.Sink, notifier notify.Sink, audit *webhooklog.Service) *Service {
	return &Service{db: db, log: log, signer: signer, ledger: sink, notifier: notifier, audit: audit}
}

// ProcessWebhook validates, matches and applies one inbound callback.
//
// The check-then-act between the terminal-status read and the transition is
// guarded by a compare-and-swap update predicate (WHERE status = 'pending'):
// of two concurrent deliveries for the same transaction exactly one wins the
// CAS and credits the wallet; the other observes zero affected rows and
// reports the idempotent no-op.
func (s *Service) ProcessWebhook(ctx context.Context, rawPayload []byte, gatewayType types.GatewayType) (res *Result, resErr error) {
	log := logctx.FromCtx(ctx, s.log)

	var gw models.PaymentGateway
	if err := s.db.WithContext(ctx).Where("type = ?", gatewayType).First(&gw).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.WebhooksReceived.WithLabelValues(string(gatewayType), metrics.OutcomeNotFound).Inc()
			return nil, ErrGatewayNotFound
		}
		return nil, fmt.Errorf("gateway lookup: %w", err)
	}

	fields, err := decodeFields(rawPayload)
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues(string(gatewayType), metrics.OutcomeError).Inc()
		return nil, err
	}
	gatewayTxnID := fields["transaction_id"]

	auditRow := &models.WebhookLog{
		GatewayType:          string(gatewayType),
		TraceID:              traceID(ctx),
		GatewayTransactionID: gatewayTxnID,
		Payload:              datatypes.JSON(rawPayload),
		Status:               models.WebhookLogStatusReceived,
	}
	s.audit.Save(ctx, auditRow)
	defer func() { s.saveHandledLog(ctx, gatewayType, gatewayTxnID, rawPayload, res, resErr) }()

	providedSig := fields[signature.SignatureField]
	delete(fields, signature.SignatureField)
	if !s.signer.VerifyGeneric(fields, providedSig, gw.SecretKey) {
		metrics.WebhooksReceived.WithLabelValues(string(gatewayType), metrics.OutcomeInvalidSignature).Inc()
		log.Warnw("webhook_signature_rejected", "gateway", gatewayType, "gateway_transaction_id", gatewayTxnID)
		return nil, ErrInvalidSignature
	}

	if gatewayTxnID == "" {
		return nil, fmt.Errorf("%w: missing transaction_id", ErrMalformedPayload)
	}
	newStatus, err := mapWebhookStatus(fields["status"])
	if err != nil {
		return nil, err
	}

	var txn models.PaymentTransaction
	err = s.db.WithContext(ctx).
		Where("gateway_type = ? AND gateway_transaction_id = ?", gatewayType, gatewayTxnID).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.WebhooksReceived.WithLabelValues(string(gatewayType), metrics.OutcomeNotFound).Inc()
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("transaction lookup: %w", err)
	}

	// Idempotency guard: a terminal transaction is a successful no-op.
	// Providers retry webhook delivery as a matter of course.
	if txn.Status.IsTerminal() {
		metrics.WebhooksReceived.WithLabelValues(string(gatewayType), metrics.OutcomeDuplicate).Inc()
		log.Infow("webhook_duplicate_ignored", "transaction_id", txn.ID, "status", txn.Status)
		return &Result{Success: true, TransactionID: txn.ID, Status: txn.Status, Duplicate: true}, nil
	}

	duplicate := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":           newStatus,
			"gateway_response": mergeResponse(txn.GatewayResponse, rawPayload),
			"processed_at":     lo.ToPtr(time.Now().UTC()),
		}
		cas := tx.Model(&models.PaymentTransaction{}).
			Where("id = ? AND status = ?", txn.ID, models.PaymentStatusPending).
			Updates(updates)
		if cas.Error != nil {
			return fmt.Errorf("status transition: %w", cas.Error)
		}
		if cas.RowsAffected == 0 {
			// Lost the race to a concurrent delivery. No side effects here.
			duplicate = true
			return nil
		}
		if newStatus == models.PaymentStatusCompleted {
			// Any ledger failure is fatal to the whole unit of work: the
			// status flip above rolls back with it.
			if _, err := s.ledger.Credit(ctx, tx, txn.WalletID, txn.Amount, txn.Currency, txn.ReferenceID, txn.ID); err != nil {
				return fmt.Errorf("ledger credit: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		metrics.WebhooksReceived.WithLabelValues(string(gatewayType), metrics.OutcomeError).Inc()
		return nil, err
	}

	if duplicate {
		if err := s.db.WithContext(ctx).Where("id = ?", txn.ID).First(&txn).Error; err != nil {
			return nil, fmt.Errorf("transaction reload: %w", err)
		}
		metrics.WebhooksReceived.WithLabelValues(string(gatewayType), metrics.OutcomeDuplicate).Inc()
		return &Result{Success: true, TransactionID: txn.ID, Status: txn.Status, Duplicate: true}, nil
	}

	metrics.WebhooksReceived.WithLabelValues(string(gatewayType), metrics.OutcomeHandled).Inc()
	if newStatus == models.PaymentStatusCompleted {
		s.notifier.Emit(ctx, notify.EventPaymentSucceeded, txn.ID)
	} else {
		s.notifier.Emit(ctx, notify.EventPaymentFailed, txn.ID)
	}
	log.Infow("webhook_applied", "transaction_id", txn.ID, "status", newStatus)

	return &Result{Success: true, TransactionID: txn.ID, Status: newStatus}, nil
}

func (s *Service) saveHandledLog(ctx context.Context, gatewayType types.GatewayType, gatewayTxnID string, rawPayload []byte, res *Result, resErr error) {
	resMap := map[string]any{}
	status := models.WebhookLogStatusHandled
	if resErr != nil {
		resMap["error"] = resErr.Error()
		status = models.WebhookLogStatusHandleFailed
	} else if res != nil {
		resMap["result"] = res
	}
	resBytes, _ := json.Marshal(resMap)
	s.audit.Save(ctx, &models.WebhookLog{
		GatewayType:          string(gatewayType),
		TraceID:              traceID(ctx),
		GatewayTransactionID: gatewayTxnID,
		Payload:              datatypes.JSON(rawPayload),
		Result:               lo.ToPtr(datatypes.JSON(resBytes)),
		Status:               status,
	})
}

// decodeFields flattens the payload into the string map the signature covers.
// json.Number preserves the exact wire representation of amounts.
func decodeFields(raw []byte) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	fields := make(map[string]string, len(payload))
	for k, v := range payload {
		switch t := v.(type) {
		case string:
			fields[k] = t
		case json.Number:
			fields[k] = t.String()
		case bool:
			fields[k] = strconv.FormatBool(t)
		case nil:
			fields[k] = ""
		default:
			b, _ := json.Marshal(t)
			fields[k] = string(b)
		}
	}
	return fields, nil
}

func mapWebhookStatus(s string) (models.PaymentStatus, error) {
	switch s {
	case "completed":
		return models.PaymentStatusCompleted, nil
	case "failed", "cancelled":
		return models.PaymentStatusFailed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedStatus, s)
	}
}

func mergeResponse(existing datatypes.JSON, payload []byte) datatypes.JSON {
	merged := map[string]any{}
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &merged)
	}
	var incoming map[string]any
	if err := json.Unmarshal(payload, &incoming); err == nil {
		for k, v := range incoming {
			merged[k] = v
		}
	}
	out, _ := json.Marshal(merged)
	return datatypes.JSON(out)
}

func traceID(ctx context.Context) string {
	if tid, ok := ctx.Value("traceID").(string); ok {
		return tid
	}
	return ""
}
