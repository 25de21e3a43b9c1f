package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tamwil/paygate/internal/app/api/handlers"
	mw "github.com/tamwil/paygate/internal/app/api/middleware"
	"github.com/tamwil/paygate/internal/app/service/orchestrator"
	"github.com/tamwil/paygate/internal/app/service/reconciler"
	cfgpkg "github.com/tamwil/paygate/pkg/config"
	"github.com/tamwil/paygate/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Trace + metrics apply to everything; request logger & access log are
	// attached per group in registerRoutes
	r.Use(mw.TraceMiddleware(), metrics.GinMiddleware())
	return r
}

func registerRoutes(r *gin.Engine, log *zap.SugaredLogger, mgr orchestrator.PaymentManager, rec *reconciler.Service, cfg *cfgpkg.Config) {
	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())

	handlers.RegisterPaymentRoutes(apiV1.Group("/payments"), mgr)
	handlers.RegisterWebhookRoutes(apiV1.Group("/webhooks"), rec, log)
	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), mgr)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	var metricsSrv *http.Server
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.MetricsAddr != "" {
				metricsSrv = metrics.Serve(cfg.MetricsAddr, log)
				log.Infow("metrics started", "addr", cfg.MetricsAddr)
			}
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			if metricsSrv != nil {
				_ = metricsSrv.Shutdown(shutdownCtx)
			}
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
