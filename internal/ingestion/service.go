package ingestion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richxcame/fraud-screening/pkg/middleware"
)

// Service orchestrates one ingestion run: schema, staging, commit, then
// index building. Stages are strictly sequential; a failure in any stage
// before commit rolls the whole run back.
type Service struct {
	repo      IngestionRepository
	log       *zap.Logger
	batchSize int
}

// NewService creates a new ingestion service
func NewService(repo IngestionRepository, log *zap.Logger, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = defaultInsertBatchSize
	}
	return &Service{repo: repo, log: log, batchSize: batchSize}
}

// RunIngestion executes a full pipeline run over source and reports how
// many rows were staged, committed, and dropped. On failure it returns a
// StageError naming the stage that failed; the durable record set is left
// exactly as it was before the run, except for tables and indexes that
// already existed.
func (s *Service) RunIngestion(ctx context.Context, source RowSource) (*RunResult, error) {
	runID := uuid.New()
	started := time.Now()

	result, err := s.runPipeline(ctx, source)
	runDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		s.log.Error("ingestion run failed", append(runLogFields(ctx, runID),
			zap.String("stage", string(FailedStage(err))),
			zap.Error(err),
		)...)
		return nil, err
	}

	runsTotal.WithLabelValues("ok").Inc()
	rowsStagedTotal.Add(float64(result.StagedCount))
	rowsInsertedTotal.Add(float64(result.InsertedCount))
	rowsDroppedTotal.Add(float64(result.DroppedCount))

	result.RunID = runID
	result.StartedAt = started
	result.Duration = time.Since(started)
	result.DurationMS = result.Duration.Milliseconds()

	s.log.Info("ingestion run completed", append(runLogFields(ctx, runID),
		zap.Int64("staged", result.StagedCount),
		zap.Int64("inserted", result.InsertedCount),
		zap.Int64("dropped", result.DroppedCount),
		zap.Duration("took", result.Duration),
	)...)
	return result, nil
}

// runLogFields ties run logs back to the API request that triggered the run.
// Runs started from the CLI carry no correlation ID.
func runLogFields(ctx context.Context, runID uuid.UUID) []zap.Field {
	fields := []zap.Field{zap.String("run_id", runID.String())}
	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("correlation_id", id))
	}
	return fields
}

func (s *Service) runPipeline(ctx context.Context, source RowSource) (*RunResult, error) {
	run, err := s.repo.BeginRun(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageStaging, Err: err}
	}

	committed := false
	defer func() {
		if !committed {
			_ = run.Rollback(ctx)
		}
	}()

	if err := run.EnsureSchema(ctx); err != nil {
		return nil, &StageError{Stage: StageSchema, Err: err}
	}

	staged, err := run.StageRows(ctx, source)
	if err != nil {
		return nil, &StageError{Stage: StageStaging, Err: err}
	}
	s.log.Debug("staging complete", zap.Int64("rows", staged))

	inserted, dropped, err := run.CommitRows(ctx, s.batchSize)
	if err != nil {
		return nil, &StageError{Stage: StageCommit, Err: err}
	}

	if err := run.Commit(ctx); err != nil {
		return nil, &StageError{Stage: StageCommit, Err: err}
	}
	committed = true

	// The run's rows are durable from here on. An index failure fails the
	// run but cannot undo the commit.
	if err := s.repo.CreateIndexes(ctx); err != nil {
		return nil, &StageError{Stage: StageIndex, Err: err}
	}

	return &RunResult{
		StagedCount:   staged,
		InsertedCount: inserted,
		DroppedCount:  dropped,
	}, nil
}
