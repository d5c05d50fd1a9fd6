package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/richxcame/fraud-screening/internal/alerts"
	"github.com/richxcame/fraud-screening/internal/fraud"
	"github.com/richxcame/fraud-screening/internal/ingestion"
	"github.com/richxcame/fraud-screening/pkg/config"
	"github.com/richxcame/fraud-screening/pkg/database"
	"github.com/richxcame/fraud-screening/pkg/eventbus"
	applog "github.com/richxcame/fraud-screening/pkg/logger"
	"github.com/richxcame/fraud-screening/pkg/secrets"
	"github.com/richxcame/fraud-screening/pkg/security"
	"github.com/richxcame/fraud-screening/pkg/storage"
)

const serviceName = "fraud-ingest"

// resultLogLimit caps how many multi-location and failed-cluster rows the run
// log prints. The full result sets still go to the event bus.
const resultLogLimit = 10

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

	// A signal aborts the run; the staging table is transaction-scoped, so an
	// interrupted run leaves no partial state behind.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Resolve the batch source up front so a bad path fails before the
	// database wait.
	batchURI := cfg.App.CSVFilePath
	if len(os.Args) > 1 {
		batchURI = os.Args[1]
	}
	if batchURI == "" {
		logger.Fatal("No batch source; pass a URI argument or set CSV_FILE_PATH")
	}

	sources := storage.NewResolverFromConfig(cfg.Storage, logger)
	exists, err := sources.Exists(ctx, batchURI)
	if err != nil {
		logger.Fatal("Failed to stat batch source", zap.String("uri", batchURI), zap.Error(err))
	}
	if !exists {
		logger.Fatal("Batch source not found", zap.String("uri", batchURI))
	}

	// Database credentials may come from a secret backend
	initCtx, cancelInit := context.WithTimeout(ctx, 15*time.Second)
	err = secrets.ResolveDatabaseCredentials(initCtx, cfg, logger)
	cancelInit()
	if err != nil {
		logger.Fatal("Failed to resolve database credentials", zap.Error(err))
	}

	// Wait for PostgreSQL; fresh deployments bring the database up alongside
	// this job.
	db, err := database.WaitForDatabase(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("Database never became ready", zap.Error(err))
	}
	defer database.Close(db)

	// One budget covers the ingestion run and the detector queries
	runCtx, cancelRun := context.WithTimeout(ctx, cfg.App.RunTimeoutDuration())
	defer cancelRun()

	// Ingest the batch
	source, err := sources.Open(runCtx, batchURI)
	if err != nil {
		logger.Fatal("Failed to open batch source", zap.String("uri", batchURI), zap.Error(err))
	}

	ingestService := ingestion.NewService(ingestion.NewRepository(db), logger, cfg.App.InsertBatchSize)
	result, err := ingestService.RunIngestion(runCtx, ingestion.NewCSVSource(source))
	source.Close()
	if err != nil {
		logger.Fatal("Ingestion run failed", zap.String("uri", batchURI), zap.Error(err))
	}
	logger.Info("Ingestion run complete",
		zap.String("run_id", result.RunID.String()),
		zap.String("uri", batchURI),
		zap.Int64("staged", result.StagedCount),
		zap.Int64("inserted", result.InsertedCount),
		zap.Int64("dropped", result.DroppedCount),
		zap.Int64("duration_ms", result.DurationMS),
	)

	// Run the detectors over the committed set
	fraudService := fraud.NewService(fraud.NewRepository(db), nil)

	multiLocation, err := fraudService.UsersMultipleLocations(runCtx)
	if err != nil {
		logger.Fatal("Multi-location detector failed", zap.Error(err))
	}
	logMultiLocation(logger, multiLocation)

	clusters, err := fraudService.FailedTransactionsByLocation(runCtx, cfg.App.FailedThreshold)
	if err != nil {
		logger.Fatal("Failed-cluster detector failed", zap.Error(err))
	}
	logFailedClusters(logger, clusters)

	topAgents, err := fraudService.TopAgentsPastYear(runCtx, cfg.App.TopAgentsLimit)
	if err != nil {
		logger.Fatal("Top-agent ranking failed", zap.Error(err))
	}
	logTopAgents(logger, topAgents)

	// Push findings to downstream review queues when a bus is configured
	if cfg.NATS.URL != "" {
		publishSignals(runCtx, cfg, logger, multiLocation, clusters, topAgents)
	}

	logger.Info("Run finished")
}

func logMultiLocation(logger *zap.Logger, signals []fraud.MultiLocationSignal) {
	logger.Info("Users transacting from widely separated locations", zap.Int("count", len(signals)))
	for i, s := range signals {
		if i == resultLogLimit {
			logger.Info("Remaining rows elided from log", zap.Int("elided", len(signals)-resultLogLimit))
			break
		}
		logger.Info("multi-location user",
			zap.String("email", s.Email),
			zap.Float64("max_distance_meters", s.MaxDistanceMeters),
		)
	}
}

func logFailedClusters(logger *zap.Logger, clusters []fraud.FailedClusterSignal) {
	logger.Info("Failed-transaction clusters", zap.Int("count", len(clusters)))
	for i, cell := range clusters {
		if i == resultLogLimit {
			logger.Info("Remaining rows elided from log", zap.Int("elided", len(clusters)-resultLogLimit))
			break
		}
		logger.Info("failed cluster",
			zap.Float64("grid_lat", cell.GridLat),
			zap.Float64("grid_lon", cell.GridLon),
			zap.Int64("failed_count", cell.FailedCount),
		)
	}
}

func logTopAgents(logger *zap.Logger, agents []fraud.TopAgentSignal) {
	logger.Info("Top agents by successful volume over the trailing year", zap.Int("count", len(agents)))
	for i, a := range agents {
		// Agent names are raw CSV fields; quoted fields can smuggle newlines.
		logger.Info("top agent",
			zap.Int("rank", i+1),
			zap.String("agent_name", security.SanitizeForLog(a.AgentName)),
			zap.Float64("total_amount", a.TotalAmount),
		)
	}
}

// publishSignals pushes all three result sets onto the event bus. Publish
// failures are fatal so a scheduler rerun retries the whole batch; ingestion
// is idempotent, so the retry is safe.
func publishSignals(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	multiLocation []fraud.MultiLocationSignal,
	clusters []fraud.FailedClusterSignal,
	topAgents []fraud.TopAgentSignal,
) {
	bus, err := eventbus.Connect(cfg.NATS.URL, serviceName, logger)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.String("url", cfg.NATS.URL), zap.Error(err))
	}

	publisher := alerts.NewPublisher(bus, logger).WithSubjectPrefix(cfg.NATS.SubjectPrefix)
	if err := publisher.PublishMultiLocationSignals(ctx, multiLocation); err != nil {
		logger.Fatal("Failed to publish multi-location signals", zap.Error(err))
	}
	if err := publisher.PublishFailedClusterSignals(ctx, clusters); err != nil {
		logger.Fatal("Failed to publish failed-cluster signals", zap.Error(err))
	}
	if err := publisher.PublishTopAgentSignals(ctx, topAgents); err != nil {
		logger.Fatal("Failed to publish top-agent ranking", zap.Error(err))
	}

	if err := bus.Close(); err != nil {
		logger.Warn("Event bus close failed", zap.Error(err))
	}
}
