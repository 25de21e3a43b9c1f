package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/tamwil/paygate/internal/app/api/server"
	"github.com/tamwil/paygate/internal/app/service/gateway"
	"github.com/tamwil/paygate/internal/app/service/ledger"
	"github.com/tamwil/paygate/internal/app/service/notify"
	"github.com/tamwil/paygate/internal/app/service/orchestrator"
	"github.com/tamwil/paygate/internal/app/service/reconciler"
	"github.com/tamwil/paygate/internal/app/service/signature"
	"github.com/tamwil/paygate/internal/app/service/webhooklog"
	"github.com/tamwil/paygate/internal/platform/db"
	"github.com/tamwil/paygate/pkg/config"
	"github.com/tamwil/paygate/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	server.Module,
	signature.Module,
	gateway.Module,
	ledger.Module,
	notify.Module,
	webhooklog.Module,
	orchestrator.Module,
	reconciler.Module,
)
