package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createStagingTableSQL = `
CREATE TEMP TABLE staging_transactions (
	transaction_id VARCHAR(50),
	agent_name     VARCHAR(100),
	amount         NUMERIC(12,2),
	status         VARCHAR(10),
	created_at     VARCHAR(30),
	updated_at     VARCHAR(30),
	lat            DECIMAL(9,6),
	lon            DECIMAL(9,6),
	email          VARCHAR(100),
	phone_number   VARCHAR(20)
) ON COMMIT DROP`

const createTransactionsTableSQL = `
CREATE TABLE IF NOT EXISTS transactions (
	transaction_id VARCHAR(50) PRIMARY KEY,
	agent_name     VARCHAR(100),
	amount         NUMERIC(12,2),
	status         VARCHAR(10),
	created_at     TIMESTAMP,
	updated_at     TIMESTAMP,
	lat            DECIMAL(9,6),
	lon            DECIMAL(9,6),
	email          VARCHAR(100),
	phone_number   VARCHAR(20)
)`

const insertTransactionSQL = `
INSERT INTO transactions (
	transaction_id, agent_name, amount, status, created_at,
	updated_at, lat, lon, email, phone_number
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (transaction_id) DO NOTHING`

const declareStagedCursorSQL = `
DECLARE staged_rows NO SCROLL CURSOR FOR
SELECT transaction_id, agent_name, amount, status, created_at,
       updated_at, lat, lon, email, phone_number
FROM staging_transactions`

// indexStatements are the access paths the fraud detectors rely on.
var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions (status)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_agent_name ON transactions (agent_name)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_lat_lon ON transactions (lat, lon)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_status_created_at ON transactions (status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_email ON transactions (email)`,
}

// duplicateRelationCode is the SQLSTATE Postgres raises when a relation,
// indexes included, already exists.
const duplicateRelationCode = "42P07"

const defaultInsertBatchSize = 500

// Repository implements IngestionRepository over a pgx connection pool.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new ingestion repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

var _ IngestionRepository = (*Repository)(nil)

// BeginRun pins one pooled connection and opens the run transaction. The
// staging table is a session-local temp table, so every stage through
// commit must execute on this same connection.
func (r *Repository) BeginRun(ctx context.Context) (RunTx, error) {
	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	return &runTx{conn: conn, tx: tx}, nil
}

// CreateIndexes runs outside the run transaction so a duplicate-relation
// error cannot poison a commit in flight.
func (r *Repository) CreateIndexes(ctx context.Context) error {
	for _, stmt := range indexStatements {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == duplicateRelationCode {
				continue
			}
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

type runTx struct {
	conn *pgxpool.Conn
	tx   pgx.Tx
}

var _ RunTx = (*runTx)(nil)

func (t *runTx) EnsureSchema(ctx context.Context) error {
	if _, err := t.tx.Exec(ctx, createTransactionsTableSQL); err != nil {
		return fmt.Errorf("create transactions table: %w", err)
	}
	return nil
}

// StageRows validates the source header, creates the staging table, and
// streams rows into it with COPY. No row-level validation happens here; a
// malformed numeric field aborts the whole load.
func (t *runTx) StageRows(ctx context.Context, source RowSource) (int64, error) {
	if err := source.Err(); err != nil {
		return 0, fmt.Errorf("read source: %w", err)
	}
	if err := ValidateHeader(source.Header()); err != nil {
		return 0, err
	}

	if _, err := t.tx.Exec(ctx, createStagingTableSQL); err != nil {
		return 0, fmt.Errorf("create staging table: %w", err)
	}

	staged, err := t.tx.CopyFrom(ctx, pgx.Identifier{"staging_transactions"}, SourceColumns, &copyFromRowSource{src: source})
	if err != nil {
		return 0, fmt.Errorf("bulk load staging rows: %w", err)
	}
	return staged, nil
}

// CommitRows walks the staged rows through a server-side cursor,
// canonicalizes each chunk, and inserts the survivors in batches. Rows
// whose transaction_id already exists are skipped by the store and do not
// count as inserted.
func (t *runTx) CommitRows(ctx context.Context, batchSize int) (int64, int64, error) {
	if batchSize <= 0 {
		batchSize = defaultInsertBatchSize
	}

	if _, err := t.tx.Exec(ctx, declareStagedCursorSQL); err != nil {
		return 0, 0, fmt.Errorf("open staging cursor: %w", err)
	}

	var inserted, dropped int64
	fetchSQL := fmt.Sprintf("FETCH %d FROM staged_rows", batchSize)
	for {
		chunk, err := t.fetchStagedRows(ctx, fetchSQL)
		if err != nil {
			return 0, 0, err
		}
		if len(chunk) == 0 {
			break
		}

		batch := &pgx.Batch{}
		for _, staged := range chunk {
			record, ok := Canonicalize(staged)
			if !ok {
				dropped++
				continue
			}
			batch.Queue(insertTransactionSQL,
				record.TransactionID, record.AgentName, record.Amount, record.Status, record.CreatedAt,
				record.UpdatedAt, record.Lat, record.Lon, record.Email, record.PhoneNumber,
			)
		}
		if batch.Len() == 0 {
			continue
		}

		n, err := t.sendInsertBatch(ctx, batch)
		if err != nil {
			return 0, 0, err
		}
		inserted += n
	}

	if _, err := t.tx.Exec(ctx, `CLOSE staged_rows`); err != nil {
		return 0, 0, fmt.Errorf("close staging cursor: %w", err)
	}
	return inserted, dropped, nil
}

func (t *runTx) fetchStagedRows(ctx context.Context, fetchSQL string) ([]StagedTransaction, error) {
	rows, err := t.tx.Query(ctx, fetchSQL)
	if err != nil {
		return nil, fmt.Errorf("fetch staged rows: %w", err)
	}
	defer rows.Close()

	var chunk []StagedTransaction
	for rows.Next() {
		var row StagedTransaction
		if err := rows.Scan(
			&row.TransactionID, &row.AgentName, &row.Amount, &row.Status, &row.CreatedAt,
			&row.UpdatedAt, &row.Lat, &row.Lon, &row.Email, &row.PhoneNumber,
		); err != nil {
			return nil, fmt.Errorf("scan staged row: %w", err)
		}
		chunk = append(chunk, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read staged rows: %w", err)
	}
	return chunk, nil
}

func (t *runTx) sendInsertBatch(ctx context.Context, batch *pgx.Batch) (int64, error) {
	results := t.tx.SendBatch(ctx, batch)

	var inserted int64
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			_ = results.Close()
			return 0, fmt.Errorf("insert transaction: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close insert batch: %w", err)
	}
	return inserted, nil
}

func (t *runTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	t.conn.Release()
	return nil
}

func (t *runTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	t.conn.Release()
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback run: %w", err)
	}
	return nil
}

// copyFromRowSource adapts a RowSource to pgx's CopyFrom protocol.
type copyFromRowSource struct {
	src RowSource
}

func (s *copyFromRowSource) Next() bool {
	return s.src.Next()
}

func (s *copyFromRowSource) Values() ([]any, error) {
	row := s.src.Row()
	return []any{
		row.TransactionID, row.AgentName, row.Amount, row.Status, row.CreatedAt,
		row.UpdatedAt, row.Lat, row.Lon, row.Email, row.PhoneNumber,
	}, nil
}

func (s *copyFromRowSource) Err() error {
	return s.src.Err()
}
