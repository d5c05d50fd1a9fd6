package helpers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/richxcame/fraud-screening/internal/ingestion"
)

// AssertRunCounts asserts the three row counters of an ingestion run.
func AssertRunCounts(t *testing.T, result *ingestion.RunResult, staged, inserted, dropped int64) {
	t.Helper()
	assert.Equal(t, staged, result.StagedCount, "staged count")
	assert.Equal(t, inserted, result.InsertedCount, "inserted count")
	assert.Equal(t, dropped, result.DroppedCount, "dropped count")
}

// AssertCanonicalPhone asserts that phone is a bare 10-digit subscriber
// number, the only form the committed table may contain.
func AssertCanonicalPhone(t *testing.T, phone string) {
	t.Helper()
	assert.Regexp(t, `^[6-9][0-9]{9}$`, phone)
}

// AssertCanonicalEmail asserts that email was lowercased and trimmed on the
// way into the committed table.
func AssertCanonicalEmail(t *testing.T, email string) {
	t.Helper()
	assert.Equal(t, strings.ToLower(strings.TrimSpace(email)), email, "email should be lowercase and trimmed")
	assert.Contains(t, email, "@")
}
