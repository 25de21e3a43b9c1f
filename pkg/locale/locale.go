package locale

// Message-key based catalog decoupling the payment core from presentation
// language. Callers pass a key and a locale; unknown keys echo the key back.

type Locale string

const (
	LocaleEN Locale = "en"
	LocaleAR Locale = "ar"

	Default = LocaleEN
)

const (
	KeyPaymentSucceeded    = "payment.succeeded"
	KeyPaymentFailed       = "payment.failed"
	KeyPaymentPending      = "payment.pending"
	KeyPaymentLimit        = "payment.limit_exceeded"
	KeyPaymentAmount       = "payment.invalid_amount"
	KeyGatewayUnavailable  = "gateway.unavailable"
	KeyBankTransferCreated = "bank_transfer.instructions_ready"
)

var catalog = map[string]map[Locale]string{
	KeyPaymentSucceeded: {
		LocaleEN: "Your payment was completed successfully",
		LocaleAR: "تمت عملية الدفع بنجاح",
	},
	KeyPaymentFailed: {
		LocaleEN: "Your payment could not be completed",
		LocaleAR: "تعذر إتمام عملية الدفع",
	},
	KeyPaymentPending: {
		LocaleEN: "Your payment is being processed",
		LocaleAR: "جاري معالجة عملية الدفع",
	},
	KeyPaymentLimit: {
		LocaleEN: "Amount exceeds the per-transaction limit",
		LocaleAR: "المبلغ يتجاوز الحد المسموح به للعملية",
	},
	KeyPaymentAmount: {
		LocaleEN: "Amount must be greater than zero",
		LocaleAR: "يجب أن يكون المبلغ أكبر من صفر",
	},
	KeyGatewayUnavailable: {
		LocaleEN: "Payment method is currently unavailable",
		LocaleAR: "وسيلة الدفع غير متاحة حالياً",
	},
	KeyBankTransferCreated: {
		LocaleEN: "Bank transfer instructions generated",
		LocaleAR: "تم إنشاء تعليمات التحويل البنكي",
	},
}

// Message resolves key for the given locale, falling back to the default
// locale, then to the key itself.
func Message(key string, loc Locale) string {
	m, ok := catalog[key]
	if !ok {
		return key
	}
	if s, ok := m[loc]; ok && s != "" {
		return s
	}
	return m[Default]
}
