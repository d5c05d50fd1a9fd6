package ingestion

import "context"

// IngestionRepository owns the durable-store side of the pipeline.
type IngestionRepository interface {
	// BeginRun opens the transaction that scopes one ingestion run.
	BeginRun(ctx context.Context) (RunTx, error)
	// CreateIndexes ensures the detector access paths exist. Safe to call
	// on every run; an already-existing index is not an error.
	CreateIndexes(ctx context.Context) error
}

// RunTx is the staging-to-commit transaction of a single run. Stages run
// strictly in order on one connection; nothing becomes durable until
// Commit, and Rollback discards everything including the staging table.
type RunTx interface {
	EnsureSchema(ctx context.Context) error
	StageRows(ctx context.Context, source RowSource) (int64, error)
	CommitRows(ctx context.Context, batchSize int) (inserted, dropped int64, err error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
