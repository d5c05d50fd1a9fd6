package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCSVHeader = "transaction_id,agent_name,amount,status,created_at,updated_at,lat,lon,email,phone_number"

func TestCSVSource_StreamsTypedRows(t *testing.T) {
	input := testCSVHeader + "\n" +
		"T1,Asha Verma,100.50,Success,2024-01-01T00:00:00.000000,2024-01-01T00:00:00.000000,12.971600,77.594600,a@b.com,9876543210\n" +
		"T2,Ravi Nair,-20,Failed,2024-01-02T10:00:00.000000,2024-01-02T10:00:00.000000,13.082700,80.270700,c@d.in,+919812345678\n"

	src := NewCSVSource(strings.NewReader(input))
	require.NoError(t, src.Err())
	assert.Equal(t, SourceColumns, src.Header())

	require.True(t, src.Next())
	first := src.Row()
	assert.Equal(t, "T1", first.TransactionID)
	assert.Equal(t, "Asha Verma", first.AgentName)
	assert.Equal(t, 100.50, first.Amount)
	assert.Equal(t, "Success", first.Status)
	assert.Equal(t, "2024-01-01T00:00:00.000000", first.CreatedAt)
	assert.Equal(t, 12.9716, first.Lat)
	assert.Equal(t, 77.5946, first.Lon)
	assert.Equal(t, "a@b.com", first.Email)
	assert.Equal(t, "9876543210", first.PhoneNumber)

	require.True(t, src.Next())
	second := src.Row()
	assert.Equal(t, "T2", second.TransactionID)
	assert.Equal(t, -20.0, second.Amount)
	assert.Equal(t, "+919812345678", second.PhoneNumber)

	assert.False(t, src.Next())
	assert.NoError(t, src.Err())
}

func TestCSVSource_HeaderOnly(t *testing.T) {
	src := NewCSVSource(strings.NewReader(testCSVHeader + "\n"))

	assert.Equal(t, SourceColumns, src.Header())
	assert.False(t, src.Next())
	assert.NoError(t, src.Err())
}

func TestCSVSource_EmptyInput(t *testing.T) {
	src := NewCSVSource(strings.NewReader(""))

	assert.Nil(t, src.Header())
	assert.False(t, src.Next())
	assert.NoError(t, src.Err())
	assert.Error(t, ValidateHeader(src.Header()))
}

func TestCSVSource_MalformedAmountStopsSource(t *testing.T) {
	input := testCSVHeader + "\n" +
		"T1,Asha Verma,not-a-number,Success,2024-01-01T00:00:00.000000,2024-01-01T00:00:00.000000,12.9,77.6,a@b.com,9876543210\n"

	src := NewCSVSource(strings.NewReader(input))

	assert.False(t, src.Next())
	require.Error(t, src.Err())
	assert.Contains(t, src.Err().Error(), "amount")
}

func TestCSVSource_ShortRowStopsSource(t *testing.T) {
	input := testCSVHeader + "\n" +
		"T1,Asha Verma,100.50\n"

	src := NewCSVSource(strings.NewReader(input))

	assert.False(t, src.Next())
	assert.Error(t, src.Err())
}

func TestCSVSource_QuotedFieldsWithCommas(t *testing.T) {
	input := testCSVHeader + "\n" +
		`T1,"Verma, Asha",250,Pending,2024-03-01T08:15:00.000000,2024-03-01T08:15:00.000000,28.6,77.2,a@b.com,09876543210` + "\n"

	src := NewCSVSource(strings.NewReader(input))

	require.True(t, src.Next())
	assert.Equal(t, "Verma, Asha", src.Row().AgentName)
	assert.NoError(t, src.Err())
}

func TestValidateHeader(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		valid  bool
	}{
		{name: "exact match", header: SourceColumns, valid: true},
		{
			name: "padded names",
			header: []string{
				" transaction_id", "agent_name ", "amount", "status", "created_at",
				"updated_at", "lat", "lon", "email", "phone_number",
			},
			valid: true,
		},
		{name: "too few columns", header: SourceColumns[:9], valid: false},
		{
			name: "renamed column",
			header: []string{
				"transaction_id", "agent", "amount", "status", "created_at",
				"updated_at", "lat", "lon", "email", "phone_number",
			},
			valid: false,
		},
		{
			name: "reordered columns",
			header: []string{
				"agent_name", "transaction_id", "amount", "status", "created_at",
				"updated_at", "lat", "lon", "email", "phone_number",
			},
			valid: false,
		},
		{name: "nil header", header: nil, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHeader(tt.header)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrHeaderMismatch)
			}
		})
	}
}
