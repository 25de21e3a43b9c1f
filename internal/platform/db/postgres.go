package db

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tamwil/paygate/internal/models"
	cfgpkg "github.com/tamwil/paygate/pkg/config"
	gormzap "github.com/tamwil/paygate/pkg/gormlog"
	"github.com/tamwil/paygate/pkg/tool"
)

func NewDB(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	if cfg.Database.DSN == "" {
		l.Error("database DSN is empty")
		return nil, gorm.ErrInvalidDB
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{Logger: gormzap.New(l)})
	if err != nil {
		l.Errorf("failed to connect database: %v", err)
		return nil, err
	}
	l.Infow("connected to postgres via DSN")
	return db, nil
}

var Module = fx.Options(
	fx.Provide(NewDB),
	fx.Invoke(AutoMigrate),
	fx.Invoke(SeedGateways),
	fx.Invoke(registerDBClose),
)

// AutoMigrate runs GORM migrations on startup
func AutoMigrate(l *zap.SugaredLogger, db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.PaymentGateway{},
		&models.PaymentTransaction{},
		&models.Wallet{},
		&models.LedgerEntry{},
		&models.WebhookLog{},
	); err != nil {
		l.Errorf("automigrate failed: %v", err)
		return err
	}
	l.Infow("automigrate completed")
	return nil
}

// SeedGateways upserts the configured gateway rows so processing-time lookups
// always see the current credentials. Config is the source of truth.
func SeedGateways(l *zap.SugaredLogger, db *gorm.DB, cfg *cfgpkg.Config) error {
	for _, g := range cfg.Gateways {
		row := &models.PaymentGateway{
			ID:         tool.GenerateUUIDV7(),
			Type:       g.Type,
			MerchantID: g.MerchantID,
			APIKey:     g.APIKey,
			SecretKey:  g.SecretKey,
			APIURL:     g.APIURL,
			IsActive:   g.IsActive,
			Sandbox:    g.Sandbox,
		}
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "type"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"merchant_id", "api_key", "secret_key", "api_url", "is_active", "sandbox", "updated_at",
			}),
		}).Create(row).Error
		if err != nil {
			l.Errorf("failed to seed gateway %s: %v", g.Type, err)
			return err
		}
	}
	l.Infow("gateway seed completed", "count", len(cfg.Gateways))
	return nil
}

// registerDBClose ensures the underlying *sql.DB is closed on shutdown
func registerDBClose(lc fx.Lifecycle, l *zap.SugaredLogger, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				l.Warnw("gorm: get sql.DB failed", "err", err)
				return nil
			}
			l.Infow("closing postgres connection pool")
			return sqlDB.Close()
		},
	})
}
