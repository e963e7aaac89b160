package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/partnerhub-platform/api/internal/config"
	"github.com/partnerhub-platform/api/internal/db"
	"github.com/partnerhub-platform/api/internal/importer"
	"github.com/partnerhub-platform/api/internal/objectstore"
	"github.com/partnerhub-platform/api/internal/queue"
	"github.com/partnerhub-platform/api/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := queue.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	storage := objectstore.New(objectstore.Config{
		Endpoint:        cfg.StorageEndpoint,
		Region:          cfg.StorageRegion,
		Bucket:          cfg.StorageBucket,
		AccessKeyID:     cfg.StorageAccessKeyID,
		SecretAccessKey: cfg.StorageSecretAccessKey,
		UsePathStyle:    cfg.StoragePathStyle,
	})

	stores := store.New(pool)
	jobs := queue.New(redisClient)
	reconciler := importer.NewReconciler(stores.Merchants, stores.Affiliates, logger)

	fetch := importer.NewFetchImport(stores.ImportAudits, storage, func(auditID uuid.UUID) importer.RowDispatcher {
		return queue.NewRowDispatcher(jobs, auditID)
	}, logger)
	rows := importer.NewRowImport(stores.ImportAudits, reconciler, logger)

	worker := queue.NewWorker(redisClient, fetch, rows, cfg.WorkerConcurrency, logger)
	worker.Run(ctx)
}
