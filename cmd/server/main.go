package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"anoa.com/homeworktracker/internal/config"
	"anoa.com/homeworktracker/internal/model"
	"anoa.com/homeworktracker/internal/server"
	"anoa.com/homeworktracker/pkg/database"
	"anoa.com/homeworktracker/pkg/logger"
	"anoa.com/homeworktracker/pkg/storage"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Fatal(err)
	}
	log.Info("homework tracker stopped")
}

// run returns instead of exiting so deferred closes happen on shutdown.
func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.Database())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close(db)

	if err := migrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	store, err := newAttachmentStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", cfg.StorageBackend, err)
	}

	redisClient, err := newRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		// Upload throttling is optional; run without it.
		log.WithError(err).Warn("redis unavailable, upload rate limiting disabled")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	srv := server.NewServer(cfg, db, store, redisClient, log)
	srv.StartOrphanCleanup(ctx)

	log.WithFields(logrus.Fields{
		"port":    cfg.Port,
		"driver":  cfg.DBDriver,
		"storage": cfg.StorageBackend,
	}).Info("homework tracker listening")

	if err := srv.Run(ctx, ":"+cfg.Port); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	return nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Assignment{})
}

func newAttachmentStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (storage.AttachmentStore, error) {
	switch cfg.StorageBackend {
	case config.BackendCloudinary:
		return storage.NewCloudinaryStore(cfg.CloudinaryUploadFolder, log)
	case config.BackendMinIO:
		return storage.NewMinIOStore(ctx, cfg.MinIO, log)
	case config.BackendLocal:
		return storage.NewLocalStore(cfg.UploadsDir, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
