// Command migrate applies the metadata store's gorm AutoMigrate schema
// (C5), the adaptation of the teacher's standalone migration runner to
// gorm-managed models instead of hand-written SQL files.
package main

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/docqa/ragcore/internal/config"
	"github.com/docqa/ragcore/internal/logging"
	"github.com/docqa/ragcore/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}

	repo := store.New(db)
	if err := repo.Migrate(context.Background()); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	logger.Info("migrate.done")
}
