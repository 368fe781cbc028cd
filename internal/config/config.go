package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"anoa.com/homeworktracker/pkg/database"
	"anoa.com/homeworktracker/pkg/storage"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = database.DriverSQLite
	DriverPostgres = database.DriverPostgres

	BackendLocal      = "local"
	BackendCloudinary = "cloudinary"
	BackendMinIO      = "minio"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string

	DBDriver    string
	DBPath      string
	DatabaseURL string
	RedisURL    string

	StorageBackend string
	UploadsDir     string
	MaxUploadBytes int64

	CloudinaryUploadFolder string

	MinIO storage.MinIOConfig

	RateLimitUpload       time.Duration
	OrphanCleanupInterval time.Duration
	OrphanGracePeriod     time.Duration

	LogLevel  string
	LogFormat string
}

// Database returns the connection settings for database.Connect.
func (c *Config) Database() database.Config {
	return database.Config{
		Driver: c.DBDriver,
		Path:   c.DBPath,
		DSN:    c.DatabaseURL,
	}
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		DBDriver:    getEnv("DB_DRIVER", DriverSQLite),
		DBPath:      getEnv("DB_PATH", "homework_tracker.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		StorageBackend: getEnv("STORAGE_BACKEND", BackendLocal),
		UploadsDir:     getEnv("UPLOADS_DIR", "uploads"),

		CloudinaryUploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "homework_tracker"),

		MinIO: storage.MinIOConfig{
			Endpoint:        getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     os.Getenv("MINIO_ACCESS_KEY"),
			SecretAccessKey: os.Getenv("MINIO_SECRET_KEY"),
			BucketName:      getEnv("MINIO_BUCKET_NAME", "homework-attachments"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	switch cfg.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.DBDriver == DriverPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when DB_DRIVER=%s", DriverPostgres)
	}

	switch cfg.StorageBackend {
	case BackendLocal, BackendCloudinary, BackendMinIO:
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	var err error
	cfg.MinIO.UseSSL, err = strconv.ParseBool(getEnv("MINIO_USE_SSL", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid MINIO_USE_SSL: %w", err)
	}
	cfg.MaxUploadBytes, err = strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", "10485760"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES: %w", err)
	}

	// Parsing durations
	cfg.RateLimitUpload, err = time.ParseDuration(getEnv("RATE_LIMIT_UPLOAD", "2s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_UPLOAD: %w", err)
	}
	cfg.OrphanCleanupInterval, err = time.ParseDuration(getEnv("ORPHAN_CLEANUP_INTERVAL", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid ORPHAN_CLEANUP_INTERVAL: %w", err)
	}
	cfg.OrphanGracePeriod, err = time.ParseDuration(getEnv("ORPHAN_GRACE_PERIOD", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid ORPHAN_GRACE_PERIOD: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
