package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"

	v1 "github.com/lucosvsk10/wsgestaocontabil-sub003/internal/controller/http/v1"
	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/entity"
	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/usecase"
	psqlRepo "github.com/lucosvsk10/wsgestaocontabil-sub003/internal/repository/psql"
	rabbitRepo "github.com/lucosvsk10/wsgestaocontabil-sub003/internal/repository/rabbitmq"
	statusRepo "github.com/lucosvsk10/wsgestaocontabil-sub003/internal/repository/redis"
	s3Repo "github.com/lucosvsk10/wsgestaocontabil-sub003/internal/repository/s3"
	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/repository/webhook"
	"github.com/lucosvsk10/wsgestaocontabil-sub003/pkg/client/psql"
	redisClient "github.com/lucosvsk10/wsgestaocontabil-sub003/pkg/client/redis"
	s3Client "github.com/lucosvsk10/wsgestaocontabil-sub003/pkg/client/s3"
	"github.com/lucosvsk10/wsgestaocontabil-sub003/pkg/middleware"
)

type Config struct {
	HTTPAddr string

	RedisAddr string
	RedisDB   int

	PSQLHost     string
	PSQLPort     int
	PSQLUser     string
	PSQLPassword string
	PSQLDBName   string
	PSQLSSLMode  string

	S3Host      string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Secure    bool

	RabbitMQURL string

	WebhookURL     string
	WebhookTimeout time.Duration

	MaxRetries      int
	RetryDelay      time.Duration
	SignedURLExpiry time.Duration
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	rdb, err := redisClient.NewRedisClient(ctx, redisClient.Config{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	db, err := psql.NewPostgresDB(psql.Config{
		Host:     cfg.PSQLHost,
		Port:     cfg.PSQLPort,
		User:     cfg.PSQLUser,
		Password: cfg.PSQLPassword,
		DBName:   cfg.PSQLDBName,
		SslMode:  cfg.PSQLSSLMode,
	})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}

	if err := db.AutoMigrate(
		&entity.Document{},
		&entity.Notification{},
		&entity.ChartOfAccountsEntry{},
	); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	storage, err := s3Client.NewS3Client(cfg.S3Host, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3Secure)
	if err != nil {
		log.Fatalf("failed to init s3 client: %v", err)
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()

	retryPublisher, err := rabbitRepo.NewRetryPublisher(
		conn,
		"documents.exchange",
		"documents.retry",
		"documents.process.q",
		"documents.retry.delay.q",
		cfg.RetryDelay,
	)
	if err != nil {
		log.Fatalf("failed to init retry publisher: %v", err)
	}

	documents := psqlRepo.NewGormDocumentRepo(db)
	notifications := psqlRepo.NewGormNotificationRepo(db)
	accounts := psqlRepo.NewGormAccountsRepo(db)
	blob := s3Repo.NewBlobRepo(storage)
	statusCache := statusRepo.NewStatusRepo(rdb)
	extractor := webhook.NewClient(cfg.WebhookURL, cfg.WebhookTimeout)

	orchestrator := usecase.NewProcessingOrchestrator(
		documents,
		notifications,
		blob,
		extractor,
		retryPublisher,
		statusCache,
		cfg.MaxRetries,
		cfg.SignedURLExpiry,
	)
	uploads := usecase.NewUploadSubmitter(accounts, blob, documents, orchestrator)
	queries := usecase.NewDocumentQueries(documents, blob, statusCache)
	notificationSvc := usecase.NewNotificationService(notifications)

	documentHandler := v1.NewDocumentHandler(uploads, queries)
	processHandler := v1.NewProcessHandler(orchestrator)
	notificationHandler := v1.NewNotificationHandler(notificationSvc)

	r := gin.Default()
	r.Use(middleware.UserIdentity())
	r.Use(middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RedisClient: rdb,
		Limit:       10,
		Window:      time.Second,
	}))

	api := r.Group("/api/v1")
	{
		api.POST("/documents", documentHandler.Upload)
		api.GET("/documents", documentHandler.List)
		api.GET("/documents/:document_id/status", documentHandler.Status)
		api.POST("/documents/:document_id/file", documentHandler.RetryUploadFile)
		api.DELETE("/documents/:document_id", documentHandler.Delete)
		api.POST("/documents/process", processHandler.Process)
		api.GET("/notifications", notificationHandler.List)
		api.POST("/notifications/:notification_id/read", notificationHandler.MarkRead)
	}

	log.Printf("gateway listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("gateway stopped: %v", err)
	}
}

func loadConfig() Config {
	if err := godotenv.Load("./.env.local"); err != nil {
		log.Println("No .env file found. Falling back to OS environment variables.")
	}
	mustGetEnv := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			log.Fatalf("Environment variable %s is not set", key)
		}
		return val
	}
	getEnv := func(key, fallback string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return fallback
	}
	atoi := func(key, val string) int {
		n, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("Invalid %s value: %v", key, err)
		}
		return n
	}
	duration := func(key, val string) time.Duration {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Fatalf("Invalid %s value: %v", key, err)
		}
		return d
	}

	rabbitMQURL := "amqp://" + mustGetEnv("RABBITMQ_USER") + ":" + mustGetEnv("RABBITMQ_PASSWORD") +
		"@" + mustGetEnv("RABBITMQ_HOST") + ":" + mustGetEnv("RABBITMQ_PORT") + "/"

	return Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		RedisAddr: mustGetEnv("REDIS_HOST") + ":" + mustGetEnv("REDIS_PORT"),
		RedisDB:   atoi("REDIS_DB", getEnv("REDIS_DB", "0")),

		PSQLHost:     mustGetEnv("PSQL_HOST"),
		PSQLPort:     atoi("PSQL_PORT", mustGetEnv("PSQL_PORT")),
		PSQLUser:     mustGetEnv("PSQL_USER"),
		PSQLPassword: mustGetEnv("PSQL_PASSWORD"),
		PSQLDBName:   mustGetEnv("PSQL_DB"),
		PSQLSSLMode:  mustGetEnv("PSQL_SSLMODE"),

		S3Host:      mustGetEnv("S3_HOST") + ":" + mustGetEnv("S3_PORT"),
		S3Bucket:    mustGetEnv("S3_BUCKET"),
		S3AccessKey: mustGetEnv("S3_ACCESS_KEY"),
		S3SecretKey: mustGetEnv("S3_SECRET_KEY"),
		S3Secure:    getEnv("S3_SECURE", "false") == "true",

		RabbitMQURL: rabbitMQURL,

		WebhookURL:     mustGetEnv("EXTRACTION_WEBHOOK_URL"),
		WebhookTimeout: duration("EXTRACTION_WEBHOOK_TIMEOUT", getEnv("EXTRACTION_WEBHOOK_TIMEOUT", "30s")),

		MaxRetries:      atoi("MAX_RETRIES", getEnv("MAX_RETRIES", "5")),
		RetryDelay:      duration("RETRY_DELAY", getEnv("RETRY_DELAY", "10m")),
		SignedURLExpiry: duration("SIGNED_URL_EXPIRY", getEnv("SIGNED_URL_EXPIRY", "3600s")),
	}
}
