package fraud

import (
	"context"
	"time"
)

// FraudRepository provides the read-only queries the detectors run over the
// committed transaction set. Implementations must never mutate it.
type FraudRepository interface {
	// LocatedTransactionsByEmail returns every transaction's email,
	// coordinates, and creation instant, ordered by email then created_at.
	LocatedTransactionsByEmail(ctx context.Context) ([]LocatedTransaction, error)
	// FailedTransactionLocations returns the raw coordinates of every
	// failed transaction.
	FailedTransactionLocations(ctx context.Context) ([]FailedLocation, error)
	// TopAgentTotalsSince sums successful transaction amounts per agent
	// from since onward, ordered by total descending with agent_name as
	// the tie-break, bounded to limit rows.
	TopAgentTotalsSince(ctx context.Context, since time.Time, limit int) ([]TopAgentSignal, error)
}
