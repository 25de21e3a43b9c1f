package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/tamwil/paygate/pkg/types"
)

// SignatureField is the payload key carrying the signature; it is always
// excluded from the signed material.
const SignatureField = "signature"

// cardSchemeFields is the ordered, gateway-mandated subset signed by the
// card-scheme dialect. Every field must be present; absence fails closed.
var cardSchemeFields = []string{"merchant_id", "order_id", "amount", "currency", "timestamp"}

// Engine computes and verifies provider-specific HMAC-SHA256 signatures.
// Each gateway dialect selects its own signing strategy; new gateways add a
// case to Sign rather than reusing an existing dialect.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// SignGeneric sorts keys lexicographically (excluding the signature field),
// concatenates as key=value&... and returns the HMAC-SHA256 hex digest.
func (e *Engine) SignGeneric(fields map[string]string, secret string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == SignatureField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return hmacHex(b.String(), secret)
}

// SignCardScheme concatenates the mandated field subset with '|' in fixed
// order. A missing or empty field is an error, never skipped.
func (e *Engine) SignCardScheme(fields map[string]string, secret string) (string, error) {
	parts := make([]string, 0, len(cardSchemeFields))
	for _, k := range cardSchemeFields {
		v, ok := fields[k]
		if !ok || v == "" {
			return "", fmt.Errorf("card scheme signature: missing field %q", k)
		}
		parts = append(parts, v)
	}
	return hmacHex(strings.Join(parts, "|"), secret), nil
}

// Sign selects the dialect for the gateway type.
func (e *Engine) Sign(gatewayType types.GatewayType, fields map[string]string, secret string) (string, error) {
	switch gatewayType {
	case types.GatewayTypeMada:
		return e.SignCardScheme(fields, secret)
	default:
		return e.SignGeneric(fields, secret), nil
	}
}

// VerifyGeneric recomputes the generic-dialect signature and compares in
// constant time. Webhook payloads are generic-signed for every gateway; the
// card-scheme dialect applies to outbound initiation only.
func (e *Engine) VerifyGeneric(fields map[string]string, provided, secret string) bool {
	if provided == "" {
		return false
	}
	return hmac.Equal([]byte(e.SignGeneric(fields, secret)), []byte(provided))
}

// Verify recomputes the expected signature with the dialect used to sign and
// compares in constant time. Any signing error fails closed.
func (e *Engine) Verify(gatewayType types.GatewayType, fields map[string]string, provided, secret string) bool {
	if provided == "" {
		return false
	}
	expected, err := e.Sign(gatewayType, fields, secret)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(provided))
}

func hmacHex(msg, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
