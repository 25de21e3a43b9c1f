package notify

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tamwil/paygate/pkg/locale"
	"github.com/tamwil/paygate/pkg/logctx"
)

type Event string

const (
	EventPaymentSucceeded Event = "payment_succeeded"
	EventPaymentFailed    Event = "payment_failed"
)

// Sink receives fire-and-forget payment outcome events. Delivery failures
// must never affect the financial unit of work; implementations are expected
// to swallow their own errors.
type Sink interface {
	Emit(ctx context.Context, event Event, transactionID string)
}

// LogSink is the default sink: it resolves the localized user message and
// logs the event. Real SMS/email/push fan-out lives behind the same
// interface elsewhere.
type LogSink struct {
	log *zap.SugaredLogger
}

func NewLogSink(log *zap.SugaredLogger) Sink {
	return &LogSink{log: log}
}

func (s *LogSink) Emit(ctx context.Context, event Event, transactionID string) {
	key := locale.KeyPaymentFailed
	if event == EventPaymentSucceeded {
		key = locale.KeyPaymentSucceeded
	}
	logctx.FromCtx(ctx, s.log).Infow("payment_notification",
		"event", string(event),
		"transaction_id", transactionID,
		"message_en", locale.Message(key, locale.LocaleEN),
		"message_ar", locale.Message(key, locale.LocaleAR),
	)
}

var Module = fx.Options(
	fx.Provide(NewLogSink),
)
