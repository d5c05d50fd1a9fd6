package helpers

import (
	"encoding/csv"
	"strings"
	"time"

	"github.com/richxcame/fraud-screening/internal/ingestion"
)

// SourceTimestamp renders t in the one timestamp layout the pipeline
// accepts: microsecond precision, no zone designator.
func SourceTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000")
}

// TransactionRow holds one source row as raw text, so tests can feed the
// pipeline malformed values as easily as valid ones.
type TransactionRow struct {
	TransactionID string
	AgentName     string
	Amount        string
	Status        string
	CreatedAt     string
	UpdatedAt     string
	Lat           string
	Lon           string
	Email         string
	PhoneNumber   string
}

// CreateTestRow creates a source row with default values that survive
// canonicalization: a prefixed Indian mobile number, a well-formed email,
// and microsecond-precision timestamps from the previous day.
func CreateTestRow(transactionID string) TransactionRow {
	ts := SourceTimestamp(time.Now().UTC().Add(-24 * time.Hour))
	return TransactionRow{
		TransactionID: transactionID,
		AgentName:     "Asha Verma",
		Amount:        "499.00",
		Status:        "Success",
		CreatedAt:     ts,
		UpdatedAt:     ts,
		Lat:           "28.6139",
		Lon:           "77.2090",
		Email:         "asha.verma@example.com",
		PhoneNumber:   "+91 98765 43210",
	}
}

// TransactionsCSV renders rows as a CSV document under the canonical
// ten-column header.
func TransactionsCSV(rows ...TransactionRow) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	_ = w.Write(ingestion.SourceColumns)
	for _, row := range rows {
		_ = w.Write([]string{
			row.TransactionID, row.AgentName, row.Amount, row.Status, row.CreatedAt,
			row.UpdatedAt, row.Lat, row.Lon, row.Email, row.PhoneNumber,
		})
	}
	w.Flush()
	return sb.String()
}
