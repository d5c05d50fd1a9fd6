package ingestion

import (
	"errors"
	"fmt"
)

// Stage identifies the pipeline stage a run failed in.
type Stage string

const (
	// StageSchema covers creation of the durable transactions table.
	StageSchema Stage = "schema"
	// StageStaging covers the bulk load of raw rows into the staging table.
	StageStaging Stage = "staging"
	// StageCommit covers canonicalization and the deduplicating insert.
	StageCommit Stage = "commit"
	// StageIndex covers creation of the detector access paths.
	StageIndex Stage = "index"
)

// ErrHeaderMismatch is returned when the source header row does not carry
// the expected ten column names in order.
var ErrHeaderMismatch = errors.New("source header does not match expected columns")

// ErrRunInProgress is returned when a second run is requested while one is
// still executing. Runs are strictly serialized.
var ErrRunInProgress = errors.New("an ingestion run is already in progress")

// StageError wraps a stage failure with the stage it occurred in. A stage
// failure aborts the whole run; nothing from the run is committed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingestion %s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage reports which stage err failed in, or empty if err is not a
// stage failure.
func FailedStage(err error) Stage {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}
