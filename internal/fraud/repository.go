package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles fraud detection data operations
type Repository struct {
	db *pgxpool.Pool
}

// Ensure the concrete repository satisfies the service's requirements.
var _ FraudRepository = (*Repository)(nil)

// NewRepository creates a new fraud repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// LocatedTransactionsByEmail streams the full projection the multi-location
// detector pairs up. Ordering by (email, created_at) lets the service walk
// one email group at a time without buffering the whole set twice.
func (r *Repository) LocatedTransactionsByEmail(ctx context.Context) ([]LocatedTransaction, error) {
	query := `
		SELECT email, lat, lon, created_at
		FROM transactions
		ORDER BY email, created_at
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query located transactions: %w", err)
	}
	defer rows.Close()

	var located []LocatedTransaction
	for rows.Next() {
		var tx LocatedTransaction
		if err := rows.Scan(&tx.Email, &tx.Lat, &tx.Lon, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan located transaction: %w", err)
		}
		located = append(located, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read located transactions: %w", err)
	}

	return located, nil
}

// FailedTransactionLocations returns raw coordinates of failed
// transactions; snapping to the detection grid happens in the service.
func (r *Repository) FailedTransactionLocations(ctx context.Context) ([]FailedLocation, error) {
	query := `
		SELECT lat, lon
		FROM transactions
		WHERE status = $1
	`

	rows, err := r.db.Query(ctx, query, statusFailed)
	if err != nil {
		return nil, fmt.Errorf("query failed transactions: %w", err)
	}
	defer rows.Close()

	var locations []FailedLocation
	for rows.Next() {
		var loc FailedLocation
		if err := rows.Scan(&loc.Lat, &loc.Lon); err != nil {
			return nil, fmt.Errorf("scan failed transaction: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read failed transactions: %w", err)
	}

	return locations, nil
}

// TopAgentTotalsSince ranks agents by summed successful amounts from since
// onward. agent_name ascending breaks total ties so the ranking is
// deterministic across runs.
func (r *Repository) TopAgentTotalsSince(ctx context.Context, since time.Time, limit int) ([]TopAgentSignal, error) {
	query := `
		SELECT agent_name, SUM(amount) AS total_amount
		FROM transactions
		WHERE status = $1 AND created_at >= $2
		GROUP BY agent_name
		ORDER BY total_amount DESC, agent_name ASC
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, statusSuccess, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query agent totals: %w", err)
	}
	defer rows.Close()

	var totals []TopAgentSignal
	for rows.Next() {
		var agent TopAgentSignal
		if err := rows.Scan(&agent.AgentName, &agent.TotalAmount); err != nil {
			return nil, fmt.Errorf("scan agent total: %w", err)
		}
		totals = append(totals, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read agent totals: %w", err)
	}

	return totals, nil
}
