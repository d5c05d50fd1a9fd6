package fraud

import "time"

// Transaction status literals the detectors filter on. The ingestion
// pipeline stores statuses exactly as they appear in the source file.
const (
	statusSuccess = "Success"
	statusFailed  = "Failed"
)

// multiLocationThresholdMeters is the distance above which a user's
// transaction spread is flagged. Strictly greater-than; a spread of exactly
// this value is not a signal.
const multiLocationThresholdMeters = 5000.0

// gridCellSizeDegrees is the snap spacing for failed-transaction
// clustering. Snapping happens in raw coordinate-degree space, so a cell is
// not a fixed physical distance; changing this changes cluster membership.
const gridCellSizeDegrees = 1.5

// topAgentsWindowDays bounds the ranking window for agent totals.
const topAgentsWindowDays = 365

// MultiLocationSignal flags an email whose transactions are spread further
// apart than the detection threshold.
type MultiLocationSignal struct {
	Email             string  `json:"email" db:"email"`
	MaxDistanceMeters float64 `json:"max_distance_meters"`
}

// FailedClusterSignal is one grid cell holding more failed transactions
// than the caller's threshold.
type FailedClusterSignal struct {
	GridLat     float64 `json:"grid_lat"`
	GridLon     float64 `json:"grid_lon"`
	FailedCount int64   `json:"failed_transaction_count"`
}

// TopAgentSignal ranks an agent by total successful transaction volume
// inside the trailing window.
type TopAgentSignal struct {
	AgentName   string  `json:"agent_name" db:"agent_name"`
	TotalAmount float64 `json:"total_transaction_amount"`
}

// LocatedTransaction is the projection the multi-location detector scans:
// one committed transaction's identity, position, and instant.
type LocatedTransaction struct {
	Email     string    `db:"email"`
	Lat       float64   `db:"lat"`
	Lon       float64   `db:"lon"`
	CreatedAt time.Time `db:"created_at"`
}

// FailedLocation is one failed transaction's raw coordinates before grid
// snapping.
type FailedLocation struct {
	Lat float64 `db:"lat"`
	Lon float64 `db:"lon"`
}
