package ingestion

import (
	"time"

	"github.com/google/uuid"
)

// StagedTransaction mirrors one raw source row. Numeric fields are typed so
// the bulk load can hand them to the staging table, but the identity and
// timestamp fields stay untouched text until canonicalization.
type StagedTransaction struct {
	TransactionID string  `json:"transaction_id" db:"transaction_id"`
	AgentName     string  `json:"agent_name" db:"agent_name"`
	Amount        float64 `json:"amount" db:"amount"`
	Status        string  `json:"status" db:"status"`
	CreatedAt     string  `json:"created_at" db:"created_at"`
	UpdatedAt     string  `json:"updated_at" db:"updated_at"`
	Lat           float64 `json:"lat" db:"lat"`
	Lon           float64 `json:"lon" db:"lon"`
	Email         string  `json:"email" db:"email"`
	PhoneNumber   string  `json:"phone_number" db:"phone_number"`
}

// Transaction is the durable, canonical record. The phone number is a bare
// 10-digit subscriber number, the email is lowercase and trimmed, and the
// timestamps are parsed instants. transaction_id is the primary key and is
// never overwritten once committed.
type Transaction struct {
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	AgentName     string    `json:"agent_name" db:"agent_name"`
	Amount        float64   `json:"amount" db:"amount"`
	Status        string    `json:"status" db:"status"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
	Lat           float64   `json:"lat" db:"lat"`
	Lon           float64   `json:"lon" db:"lon"`
	Email         string    `json:"email" db:"email"`
	PhoneNumber   string    `json:"phone_number" db:"phone_number"`
}

// RunResult summarizes one completed ingestion run. RunID ties the API
// response, log lines, and published signals of one run together.
type RunResult struct {
	RunID         uuid.UUID     `json:"run_id"`
	StagedCount   int64         `json:"staged_count"`
	InsertedCount int64         `json:"inserted_count"`
	DroppedCount  int64         `json:"dropped_count"`
	Duration      time.Duration `json:"-"`
	DurationMS    int64         `json:"duration_ms"`
	StartedAt     time.Time     `json:"started_at"`
}
