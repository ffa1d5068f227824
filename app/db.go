package app

import (
	"tgbridge/config"
	"tgbridge/lib/models"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase opens the sqlite file in WAL mode so the scraper process can
// read cursors concurrently while this process writes.
func NewDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) *gorm.DB {
	dsn := "file:" + cfg.SQLitePath + "?_journal_mode=WAL&_busy_timeout=30000&_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Sugar().Panicw("failed to connect database", "err", err)
	}
	log.Info("Database started")

	log.Info("Starting migrations")
	err = db.AutoMigrate(
		&models.Channel{},
		&models.WebhookInfo{},
		&models.Webhook{},
		&models.Message{},
		&models.Delivery{},
		&models.Cursor{},
	)
	if err != nil {
		log.Sugar().Panicw("failed to migrate database", "err", err)
	}
	return db
}
