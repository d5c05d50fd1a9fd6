package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/richxcame/fraud-screening/internal/fraud"
	"github.com/richxcame/fraud-screening/internal/ingestion"
	"github.com/richxcame/fraud-screening/pkg/common"
	"github.com/richxcame/fraud-screening/pkg/config"
	"github.com/richxcame/fraud-screening/pkg/database"
	"github.com/richxcame/fraud-screening/pkg/health"
	"github.com/richxcame/fraud-screening/pkg/jwtkeys"
	applog "github.com/richxcame/fraud-screening/pkg/logger"
	"github.com/richxcame/fraud-screening/pkg/middleware"
	"github.com/richxcame/fraud-screening/pkg/ratelimit"
	"github.com/richxcame/fraud-screening/pkg/redis"
	"github.com/richxcame/fraud-screening/pkg/secrets"
	"github.com/richxcame/fraud-screening/pkg/storage"
)

const (
	serviceName = "fraud-api"
	version     = "1.0.0"

	// keyRefreshInterval is how often rotated signing keys are reloaded.
	keyRefreshInterval = 5 * time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := applog.New(cfg.App.Environment, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Error reporting is active only when a DSN is configured
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.App.Environment,
			Release:     serviceName + "@" + version,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			logger.Fatal("Failed to initialize Sentry", zap.Error(err))
		}
	}

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// Pull database credentials from the secret backend when one is configured
	initCtx, cancelInit := context.WithTimeout(rootCtx, 15*time.Second)
	err = secrets.ResolveDatabaseCredentials(initCtx, cfg, logger)
	cancelInit()
	if err != nil {
		logger.Fatal("Failed to resolve database credentials", zap.Error(err))
	}

	// Connect to PostgreSQL
	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)

	// Redis backs the sliding-window rate limiter
	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		redisClient, err = redis.NewRedisClient(&cfg.Redis, cfg.Timeouts)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.RedisAddr()))
	}

	// Batch sources live on the local filesystem or in S3. An empty URI in
	// a run request falls back to the configured default batch.
	sources := storage.NewResolverFromConfig(cfg.Storage, logger)
	openSource := func(ctx context.Context, uri string) (io.ReadCloser, error) {
		if uri == "" {
			uri = cfg.App.CSVFilePath
		}
		return sources.Open(ctx, uri)
	}

	// Ingestion pipeline
	ingestRepo := ingestion.NewRepository(db)
	ingestService := ingestion.NewService(ingestRepo, logger, cfg.App.InsertBatchSize)
	ingestHandler := ingestion.NewHandler(ingestService, openSource, logger)

	// Fraud detection queries
	fraudRepo := fraud.NewRepository(db)
	fraudService := fraud.NewService(fraudRepo, nil)
	fraudHandler := fraud.NewHandler(fraudService, logger)

	// Set up Gin router
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.Recovery(logger))
	if cfg.Sentry.DSN != "" {
		// Recovery sits outside so the repanic still turns into a 500.
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(middleware.SecurityHeaders())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitOrigins(cfg.Server.CORSOrigins)
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}
	router.Use(cors.New(corsConfig))

	// Health check and metrics (no auth required)
	healthChecks := map[string]health.Check{
		"postgres": health.Database(db),
	}
	if redisClient != nil {
		healthChecks["redis"] = health.Redis(redisClient.Client)
	}
	router.GET("/healthz", health.Handler(serviceName, version, healthChecks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	// Request bodies are control messages; transaction batches arrive by URI.
	api.Use(middleware.MaxBodySize(1 << 20))
	if cfg.Auth.Enabled {
		api.Use(middleware.AuthMiddlewareWithProvider(buildKeyProvider(rootCtx, cfg, logger)))
	}
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit), logger))
	}

	// Ingestion runs get the whole-run budget; query endpoints use the much
	// shorter request timeout.
	runs := api.Group("", requestTimeout(cfg.App.RunTimeoutDuration()))
	ingestHandler.RegisterRoutes(runs)

	queries := api.Group("", requestTimeout(time.Duration(cfg.Server.RequestTimeout)*time.Second))
	fraudHandler.RegisterRoutes(queries)

	// The server-level write deadline has to outlast an ingestion run; the
	// timeout middleware enforces the tighter per-route budgets.
	writeTimeout := time.Duration(cfg.Server.WriteTimeout) * time.Second
	if budget := cfg.App.RunTimeoutDuration() + 30*time.Second; writeTimeout < budget {
		writeTimeout = budget
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: writeTimeout,
	}

	// Start server
	go func() {
		logger.Info("Fraud screening API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	cancelRoot()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
	if cfg.Sentry.DSN != "" {
		sentry.Flush(2 * time.Second)
	}
	logger.Info("Server stopped")
}

// buildKeyProvider picks between rotating signing keys and the static legacy
// secret, depending on what is configured.
func buildKeyProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) jwtkeys.KeyProvider {
	if cfg.Auth.KeyFile == "" && cfg.Auth.VaultPath == "" {
		return jwtkeys.NewStaticProvider(cfg.Auth.JWTSecret)
	}

	manager, err := jwtkeys.NewManagerFromConfig(ctx, cfg.Auth, true)
	if err != nil {
		logger.Fatal("Failed to load signing keys", zap.Error(err))
	}
	go refreshSigningKeys(ctx, manager, logger)
	return manager
}

// refreshSigningKeys reloads rotated verification keys until ctx is canceled.
func refreshSigningKeys(ctx context.Context, manager *jwtkeys.Manager, logger *zap.Logger) {
	ticker := time.NewTicker(keyRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := manager.EnsureRotation(ctx); err != nil {
				logger.Warn("Signing key refresh failed", zap.Error(err))
			}
		}
	}
}

// splitOrigins parses the comma-separated CORS origin list.
func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// requestTimeout aborts requests that exceed d with a 408 envelope.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return timeout.New(
		timeout.WithTimeout(d),
		timeout.WithHandler(func(c *gin.Context) { c.Next() }),
		timeout.WithResponse(func(c *gin.Context) {
			common.ErrorResponse(c, http.StatusRequestTimeout, "request timed out")
		}),
	)
}
