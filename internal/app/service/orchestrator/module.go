package orchestrator

import "go.uber.org/fx"

// Module exposes the payment orchestrator via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
