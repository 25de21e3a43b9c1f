package webhooklog

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tamwil/paygate/internal/models"
	"github.com/tamwil/paygate/pkg/logctx"
	"github.com/tamwil/paygate/pkg/tool"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a webhook audit row. Nil input is ignored.
// Audit writes never block or fail webhook handling.
func (s *Service) Save(ctx context.Context, row *models.WebhookLog) {
	go func() {
		if row == nil {
			return
		}
		if row.ID == "" {
			row.ID = tool.GenerateUUIDV7()
		}
		if err := s.db.Save(row).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save webhook log: %v", err)
		}
	}()
}

var Module = fx.Options(
	fx.Provide(New),
)
