package types

// GatewayType identifies an external payment provider dialect.
type GatewayType string

const (
	GatewayTypeMada         GatewayType = "mada"
	GatewayTypeSTCPay       GatewayType = "stc_pay"
	GatewayTypeApplePay     GatewayType = "apple_pay"
	GatewayTypeBankTransfer GatewayType = "bank_transfer"
)

func (t GatewayType) Valid() bool {
	switch t {
	case GatewayTypeMada, GatewayTypeSTCPay, GatewayTypeApplePay, GatewayTypeBankTransfer:
		return true
	}
	return false
}

// GatewayConfig is the static per-provider configuration entry. It is loaded
// from config at startup and seeded into the payment_gateway table; at
// transaction-processing time it is read-only.
type GatewayConfig struct {
	Type       GatewayType `json:"type" mapstructure:"type"`
	MerchantID string      `json:"merchant_id" mapstructure:"merchant_id"`
	APIKey     string      `json:"api_key" mapstructure:"api_key"`
	SecretKey  string      `json:"secret_key" mapstructure:"secret_key"`
	APIURL     string      `json:"api_url" mapstructure:"api_url"`
	IsActive   bool        `json:"is_active" mapstructure:"is_active"`
	Sandbox    bool        `json:"sandbox" mapstructure:"sandbox"`
}
