//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/richxcame/fraud-screening/internal/fraud"
	"github.com/richxcame/fraud-screening/internal/ingestion"
	"github.com/richxcame/fraud-screening/pkg/middleware"
	"github.com/richxcame/fraud-screening/test/helpers"
)

// PipelineIntegrationTestSuite drives the path a production run takes: CSV
// in, canonical rows committed to Postgres, detectors over the committed
// set. Point TEST_DATABASE_URL at a scratch database to run it; every test
// drops and rebuilds the transactions table.
type PipelineIntegrationTestSuite struct {
	suite.Suite
	pool     *pgxpool.Pool
	ingester *ingestion.Service
	detector *fraud.Service
}

func TestPipelineIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PipelineIntegrationTestSuite))
}

func (s *PipelineIntegrationTestSuite) SetupSuite() {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		s.T().Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(s.T(), err)
	require.NoError(s.T(), pool.Ping(context.Background()))

	s.pool = pool
	s.ingester = ingestion.NewService(ingestion.NewRepository(pool), zap.NewNop(), 100)
	s.detector = fraud.NewService(fraud.NewRepository(pool), nil)
}

func (s *PipelineIntegrationTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PipelineIntegrationTestSuite) SetupTest() {
	// The run itself recreates the table and indexes, so starting from
	// nothing also covers first-boot schema creation.
	_, err := s.pool.Exec(context.Background(), `DROP TABLE IF EXISTS transactions`)
	require.NoError(s.T(), err)
}

// ingest runs one full pipeline pass over the given rows.
func (s *PipelineIntegrationTestSuite) ingest(rows ...helpers.TransactionRow) *ingestion.RunResult {
	source := ingestion.NewCSVSource(strings.NewReader(helpers.TransactionsCSV(rows...)))
	result, err := s.ingester.RunIngestion(context.Background(), source)
	require.NoError(s.T(), err)
	return result
}

func (s *PipelineIntegrationTestSuite) countTransactions() int64 {
	var count int64
	err := s.pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM transactions`).Scan(&count)
	require.NoError(s.T(), err)
	return count
}

func (s *PipelineIntegrationTestSuite) TestRunCommitsCanonicalRows() {
	valid := helpers.CreateTestRow("txn-0001")
	valid.Email = "Asha.Verma@Example.COM"
	valid.PhoneNumber = "+91 98765 43210"

	badPhone := helpers.CreateTestRow("txn-0002")
	badPhone.PhoneNumber = "12345"

	badStamp := helpers.CreateTestRow("txn-0003")
	badStamp.CreatedAt = "2025-04-01 10:00:00"

	// Same id as the first row; the store keeps whichever landed first.
	dup := helpers.CreateTestRow("txn-0001")
	dup.AgentName = "Someone Else"

	result := s.ingest(valid, badPhone, badStamp, dup)
	helpers.AssertRunCounts(s.T(), result, 4, 1, 2)
	s.Equal(int64(1), s.countTransactions())

	var agent, email, phone string
	var createdAt time.Time
	err := s.pool.QueryRow(context.Background(),
		`SELECT agent_name, email, phone_number, created_at FROM transactions WHERE transaction_id = $1`,
		"txn-0001",
	).Scan(&agent, &email, &phone, &createdAt)
	require.NoError(s.T(), err)

	s.Equal("Asha Verma", agent)
	s.Equal("asha.verma@example.com", email)
	helpers.AssertCanonicalEmail(s.T(), email)
	s.Equal("9876543210", phone)
	helpers.AssertCanonicalPhone(s.T(), phone)
	s.Equal(valid.CreatedAt, helpers.SourceTimestamp(createdAt))
}

func (s *PipelineIntegrationTestSuite) TestRerunIsIdempotent() {
	rows := []helpers.TransactionRow{
		helpers.CreateTestRow("txn-1001"),
		helpers.CreateTestRow("txn-1002"),
		helpers.CreateTestRow("txn-1003"),
	}

	first := s.ingest(rows...)
	helpers.AssertRunCounts(s.T(), first, 3, 3, 0)
	s.Equal(int64(3), s.countTransactions())

	second := s.ingest(rows...)
	helpers.AssertRunCounts(s.T(), second, 3, 0, 0)
	s.Equal(int64(3), s.countTransactions())
}

func (s *PipelineIntegrationTestSuite) TestMultiLocationDetector() {
	base := time.Now().UTC().Add(-48 * time.Hour)
	at := func(row helpers.TransactionRow, hours int) helpers.TransactionRow {
		stamp := helpers.SourceTimestamp(base.Add(time.Duration(hours) * time.Hour))
		row.CreatedAt = stamp
		row.UpdatedAt = stamp
		return row
	}

	// Delhi and Mumbai, roughly 1,150 km apart.
	roamingDelhi := helpers.CreateTestRow("txn-2001")
	roamingDelhi.Email = "roaming@example.com"
	roamingDelhi.Lat, roamingDelhi.Lon = "28.6139", "77.2090"

	roamingMumbai := helpers.CreateTestRow("txn-2002")
	roamingMumbai.Email = "roaming@example.com"
	roamingMumbai.Lat, roamingMumbai.Lon = "19.0760", "72.8777"

	// Well inside the 5 km detection bound.
	settledA := helpers.CreateTestRow("txn-2003")
	settledA.Email = "settled@example.com"
	settledA.Lat, settledA.Lon = "28.6139", "77.2090"

	settledB := helpers.CreateTestRow("txn-2004")
	settledB.Email = "settled@example.com"
	settledB.Lat, settledB.Lon = "28.6200", "77.2150"

	single := helpers.CreateTestRow("txn-2005")
	single.Email = "single@example.com"

	s.ingest(
		at(roamingDelhi, 0), at(roamingMumbai, 1),
		at(settledA, 2), at(settledB, 3),
		at(single, 4),
	)

	signals, err := s.detector.UsersMultipleLocations(context.Background())
	require.NoError(s.T(), err)

	require.Len(s.T(), signals, 1)
	s.Equal("roaming@example.com", signals[0].Email)
	s.InDelta(1_150_000, signals[0].MaxDistanceMeters, 50_000)
}

func (s *PipelineIntegrationTestSuite) TestFailedClusterDetector() {
	rows := []helpers.TransactionRow{
		helpers.CreateTestRow("txn-3001"),
		helpers.CreateTestRow("txn-3002"),
		helpers.CreateTestRow("txn-3003"),
		helpers.CreateTestRow("txn-3004"),
		helpers.CreateTestRow("txn-3005"),
		helpers.CreateTestRow("txn-3006"),
	}

	// Three failures snapping to cell (28.5, 76.5).
	coords := [][2]string{{"28.60", "77.20"}, {"28.70", "77.10"}, {"28.40", "76.90"}}
	for i := range coords {
		rows[i].Status = "Failed"
		rows[i].Lat, rows[i].Lon = coords[i][0], coords[i][1]
	}
	// Two failures in a second cell, not enough to clear the threshold.
	rows[3].Status = "Failed"
	rows[3].Lat, rows[3].Lon = "12.97", "77.59"
	rows[4].Status = "Failed"
	rows[4].Lat, rows[4].Lon = "13.00", "77.80"
	// A success at the hot cell's coordinates must not count.
	rows[5].Status = "Success"
	rows[5].Lat, rows[5].Lon = "28.60", "77.20"

	s.ingest(rows...)

	clusters, err := s.detector.FailedTransactionsByLocation(context.Background(), 2)
	require.NoError(s.T(), err)

	require.Len(s.T(), clusters, 1)
	s.InDelta(28.5, clusters[0].GridLat, 1e-9)
	s.InDelta(76.5, clusters[0].GridLon, 1e-9)
	s.Equal(int64(3), clusters[0].FailedCount)
}

func (s *PipelineIntegrationTestSuite) TestTopAgentsWindowAndOrder() {
	recent := helpers.SourceTimestamp(time.Now().UTC().Add(-24 * time.Hour))
	stale := helpers.SourceTimestamp(time.Now().UTC().AddDate(0, 0, -400))

	meeraA := helpers.CreateTestRow("txn-4001")
	meeraA.AgentName, meeraA.Amount, meeraA.CreatedAt = "Meera Nair", "600.00", recent
	meeraB := helpers.CreateTestRow("txn-4002")
	meeraB.AgentName, meeraB.Amount, meeraB.CreatedAt = "Meera Nair", "700.50", recent

	rahulRecent := helpers.CreateTestRow("txn-4003")
	rahulRecent.AgentName, rahulRecent.Amount, rahulRecent.CreatedAt = "Rahul Bose", "1000.00", recent
	rahulStale := helpers.CreateTestRow("txn-4004")
	rahulStale.AgentName, rahulStale.Amount, rahulStale.CreatedAt = "Rahul Bose", "5000.00", stale

	kiranFailed := helpers.CreateTestRow("txn-4005")
	kiranFailed.AgentName, kiranFailed.Amount, kiranFailed.CreatedAt = "Kiran Rao", "99999.00", recent
	kiranFailed.Status = "Failed"

	s.ingest(meeraA, meeraB, rahulRecent, rahulStale, kiranFailed)

	agents, err := s.detector.TopAgentsPastYear(context.Background(), 10)
	require.NoError(s.T(), err)

	require.Len(s.T(), agents, 2)
	s.Equal("Meera Nair", agents[0].AgentName)
	s.InDelta(1300.50, agents[0].TotalAmount, 0.001)
	s.Equal("Rahul Bose", agents[1].AgentName)
	s.InDelta(1000.00, agents[1].TotalAmount, 0.001)

	top, err := s.detector.TopAgentsPastYear(context.Background(), 1)
	require.NoError(s.T(), err)
	require.Len(s.T(), top, 1)
	s.Equal("Meera Nair", top[0].AgentName)
}

func (s *PipelineIntegrationTestSuite) TestTriggerRunOverHTTP() {
	csvBody := helpers.TransactionsCSV(
		helpers.CreateTestRow("txn-5001"),
		helpers.CreateTestRow("txn-5002"),
	)
	opener := func(ctx context.Context, uri string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(csvBody)), nil
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.Recovery(zap.NewNop()))
	router.Use(middleware.CorrelationID())

	api := router.Group("/api/v1")
	ingestion.NewHandler(s.ingester, opener, zap.NewNop()).RegisterRoutes(api)
	fraud.NewHandler(s.detector, zap.NewNop()).RegisterRoutes(api)

	server := httptest.NewServer(router)
	defer server.Close()

	resp, err := server.Client().Post(server.URL+"/api/v1/ingestion/runs", "application/json", nil)
	require.NoError(s.T(), err)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode)

	var runEnvelope struct {
		Success bool                `json:"success"`
		Data    ingestion.RunResult `json:"data"`
	}
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&runEnvelope))
	s.True(runEnvelope.Success)
	helpers.AssertRunCounts(s.T(), &runEnvelope.Data, 2, 2, 0)

	agentsResp, err := server.Client().Get(server.URL + "/api/v1/fraud/top-agents")
	require.NoError(s.T(), err)
	defer agentsResp.Body.Close()
	require.Equal(s.T(), http.StatusOK, agentsResp.StatusCode)

	var agentsEnvelope struct {
		Success bool                   `json:"success"`
		Data    []fraud.TopAgentSignal `json:"data"`
	}
	require.NoError(s.T(), json.NewDecoder(agentsResp.Body).Decode(&agentsEnvelope))
	s.True(agentsEnvelope.Success)
	require.Len(s.T(), agentsEnvelope.Data, 1)
	s.Equal("Asha Verma", agentsEnvelope.Data[0].AgentName)
	s.InDelta(998.00, agentsEnvelope.Data[0].TotalAmount, 0.001)
}
