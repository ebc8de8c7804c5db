// Command worker runs the asynq background processor for document indexing
// (spec §4.8/§4.9's "Ingestion API response does not wait" redesign flag).
// Grounded on NISHADDEVENDRA-chatbot-backend's cmd/worker/worker.go server
// setup, adapted to this module's config/log stack and single index-document
// task.
package main

import (
	"context"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/docqa/ragcore/internal/config"
	coreretry "github.com/docqa/ragcore/internal/core/retry"
	"github.com/docqa/ragcore/internal/embedding"
	"github.com/docqa/ragcore/internal/indexer"
	"github.com/docqa/ragcore/internal/logging"
	"github.com/docqa/ragcore/internal/queue"
	"github.com/docqa/ragcore/internal/store"
	"github.com/docqa/ragcore/internal/tokenizer"
	"github.com/docqa/ragcore/internal/vectorstore"
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

	tok, err := tokenizer.New(cfg.Providers.TokenizerName)
	if err != nil {
		logger.Fatal("build tokenizer", zap.Error(err))
	}

	embedPolicy := coreretry.Policy{
		MaxAttempts:  cfg.Concurrency.EmbedRetryMax,
		InitialDelay: cfg.Concurrency.EmbedRetryDelay,
		Classify:     func(error) bool { return true },
	}
	embedProvider, err := embedding.New(context.Background(), cfg.Providers.EmbeddingProvider,
		cfg.Providers.EmbeddingAPIKey, cfg.Providers.EmbeddingModel, cfg.Providers.EmbeddingDimension, tok, embedPolicy)
	if err != nil {
		logger.Fatal("build embedding provider", zap.Error(err))
	}

	vs, err := vectorstore.NewQdrant(cfg.Providers.VectorStoreHost, cfg.Providers.VectorStorePort, "", false)
	if err != nil {
		logger.Fatal("connect vector store", zap.Error(err))
	}

	ix := indexer.New(repo, embedProvider, vs, indexer.Config{
		EmbedBatchSize:  cfg.Concurrency.EmbedBatchSize,
		UpsertBatchSize: cfg.Concurrency.UpsertBatchSize,
	}, logger)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Address(), Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency.IndexConcurrency,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("worker.task_failed", zap.String("type", task.Type()), zap.Error(err))
			}),
		},
	)

	processor := queue.NewProcessor(ix, logger)
	mux := queue.Mux(processor)

	logger.Info("worker.starting",
		zap.Int("concurrency", cfg.Concurrency.IndexConcurrency),
		zap.String("redis", redisOpt.Addr))

	if err := server.Run(mux); err != nil {
		logger.Fatal("worker.run_failed", zap.Error(err))
	}
}
