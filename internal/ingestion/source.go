package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// SourceColumns is the header contract: exactly these ten names, in this
// order. The staging table and the durable table use the same layout.
var SourceColumns = []string{
	"transaction_id",
	"agent_name",
	"amount",
	"status",
	"created_at",
	"updated_at",
	"lat",
	"lon",
	"email",
	"phone_number",
}

// RowSource streams raw rows from a delimited input, one at a time, so the
// staging load never holds the whole file in memory.
type RowSource interface {
	// Header returns the column names read from the source, or nil when the
	// source had none.
	Header() []string
	// Next advances to the next data row. It returns false at the end of
	// the source or on the first error.
	Next() bool
	// Row returns the row Next advanced to.
	Row() StagedTransaction
	// Err returns the first error encountered while reading, nil on a
	// clean end of input.
	Err() error
}

// ValidateHeader checks the source header against SourceColumns. Column
// names are compared after trimming surrounding whitespace.
func ValidateHeader(header []string) error {
	if len(header) != len(SourceColumns) {
		return fmt.Errorf("%w: got %d columns, want %d", ErrHeaderMismatch, len(header), len(SourceColumns))
	}
	for i, want := range SourceColumns {
		if strings.TrimSpace(header[i]) != want {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrHeaderMismatch, i, header[i], want)
		}
	}
	return nil
}

// CSVSource reads staged rows from CSV input. The header row is consumed at
// construction; every data row must carry the same field count or the
// source stops with an error, which aborts the staging stage.
type CSVSource struct {
	reader *csv.Reader
	header []string
	row    StagedTransaction
	err    error
}

// NewCSVSource wraps r in a streaming CSV row source.
func NewCSVSource(r io.Reader) *CSVSource {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	src := &CSVSource{reader: cr}
	header, err := cr.Read()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			src.err = fmt.Errorf("read header: %w", err)
		}
		return src
	}
	src.header = append([]string(nil), header...)
	return src
}

func (s *CSVSource) Header() []string {
	return s.header
}

func (s *CSVSource) Next() bool {
	if s.err != nil {
		return false
	}

	record, err := s.reader.Read()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = err
		}
		return false
	}

	row, err := stagedRowFromRecord(record)
	if err != nil {
		s.err = err
		return false
	}
	s.row = row
	return true
}

func (s *CSVSource) Row() StagedTransaction {
	return s.row
}

func (s *CSVSource) Err() error {
	return s.err
}

func stagedRowFromRecord(record []string) (StagedTransaction, error) {
	if len(record) != len(SourceColumns) {
		return StagedTransaction{}, fmt.Errorf("row has %d fields, want %d", len(record), len(SourceColumns))
	}

	amount, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return StagedTransaction{}, fmt.Errorf("amount %q: %w", record[2], err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(record[6]), 64)
	if err != nil {
		return StagedTransaction{}, fmt.Errorf("lat %q: %w", record[6], err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(record[7]), 64)
	if err != nil {
		return StagedTransaction{}, fmt.Errorf("lon %q: %w", record[7], err)
	}

	return StagedTransaction{
		TransactionID: record[0],
		AgentName:     record[1],
		Amount:        amount,
		Status:        record[3],
		CreatedAt:     record[4],
		UpdatedAt:     record[5],
		Lat:           lat,
		Lon:           lon,
		Email:         record[8],
		PhoneNumber:   record[9],
	}, nil
}
