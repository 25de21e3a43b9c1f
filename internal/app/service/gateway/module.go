package gateway

import (
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tamwil/paygate/internal/app/service/signature"
	cfgpkg "github.com/tamwil/paygate/pkg/config"
	"github.com/tamwil/paygate/pkg/types"
)

// NewRegistry builds one adapter per configured gateway. Config structs are
// passed by value; all adapters share one injected HTTP client.
func NewRegistry(cfg *cfgpkg.Config, signer *signature.Engine, log *zap.SugaredLogger) *Registry {
	client := &http.Client{}
	timeout := cfg.Payment.GatewayTimeout()

	var adapters []Adapter
	for _, g := range cfg.Gateways {
		switch g.Type {
		case types.GatewayTypeMada:
			adapters = append(adapters, NewMadaAdapter(*g, client, timeout, signer, log))
		case types.GatewayTypeSTCPay:
			adapters = append(adapters, NewSTCPayAdapter(*g, client, timeout, signer, log))
		case types.GatewayTypeApplePay:
			adapters = append(adapters, NewApplePayAdapter(*g, client, timeout, signer, log))
		case types.GatewayTypeBankTransfer:
			adapters = append(adapters, NewBankTransferAdapter(cfg.BankTransfer, log))
		default:
			log.Warnw("skipping unknown gateway type in config", "type", g.Type)
		}
	}
	return NewRegistryFromAdapters(adapters...)
}

var Module = fx.Options(
	fx.Provide(NewRegistry),
)
