package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) RunIngestion(ctx context.Context, source RowSource) (*RunResult, error) {
	args := m.Called(ctx, source)
	result, _ := args.Get(0).(*RunResult)
	return result, args.Error(1)
}

func openerFor(input string) SourceOpener {
	return func(ctx context.Context, uri string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(input)), nil
	}
}

func triggerContext() (*gin.Context, *httptest.ResponseRecorder) {
	return triggerContextWithBody("")
}

func triggerContextWithBody(body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest("POST", "/api/v1/ingestion/runs", reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	return c, w
}

func parseEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestHandler_TriggerRun_Success(t *testing.T) {
	runner := new(mockRunner)
	handler := NewHandler(runner, openerFor(testCSVHeader+"\n"), zap.NewNop())

	runner.On("RunIngestion", mock.Anything, mock.Anything).
		Return(&RunResult{StagedCount: 12, InsertedCount: 9, DroppedCount: 3}, nil).Once()

	c, w := triggerContext()
	handler.TriggerRun(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	response := parseEnvelope(t, w)
	assert.True(t, response["success"].(bool))

	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(12), data["staged_count"])
	assert.Equal(t, float64(9), data["inserted_count"])
	assert.Equal(t, float64(3), data["dropped_count"])
	runner.AssertExpectations(t)
}

func TestHandler_TriggerRun_SourceURIOverride(t *testing.T) {
	runner := new(mockRunner)
	var gotURI string
	opener := func(ctx context.Context, uri string) (io.ReadCloser, error) {
		gotURI = uri
		return io.NopCloser(strings.NewReader(testCSVHeader + "\n")), nil
	}
	handler := NewHandler(runner, opener, zap.NewNop())

	runner.On("RunIngestion", mock.Anything, mock.Anything).
		Return(&RunResult{InsertedCount: 1}, nil).Once()

	c, w := triggerContextWithBody(`{"source_uri": "s3://batches/runs/tx.csv"}`)
	handler.TriggerRun(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "s3://batches/runs/tx.csv", gotURI)
	runner.AssertExpectations(t)
}

func TestHandler_TriggerRun_EmptyBodyUsesDefaultSource(t *testing.T) {
	runner := new(mockRunner)
	var gotURI string
	opener := func(ctx context.Context, uri string) (io.ReadCloser, error) {
		gotURI = uri
		return io.NopCloser(strings.NewReader(testCSVHeader + "\n")), nil
	}
	handler := NewHandler(runner, opener, zap.NewNop())

	runner.On("RunIngestion", mock.Anything, mock.Anything).
		Return(&RunResult{}, nil).Once()

	c, w := triggerContext()
	handler.TriggerRun(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, gotURI)
	runner.AssertExpectations(t)
}

func TestHandler_TriggerRun_RejectsUnknownScheme(t *testing.T) {
	runner := new(mockRunner)
	handler := NewHandler(runner, openerFor(""), zap.NewNop())

	c, w := triggerContextWithBody(`{"source_uri": "ftp://host/tx.csv"}`)
	handler.TriggerRun(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := parseEnvelope(t, w)
	errObj := response["error"].(map[string]interface{})
	assert.Contains(t, errObj["message"], "source_uri")
	runner.AssertNotCalled(t, "RunIngestion", mock.Anything, mock.Anything)
}

func TestHandler_TriggerRun_MalformedBody(t *testing.T) {
	runner := new(mockRunner)
	handler := NewHandler(runner, openerFor(""), zap.NewNop())

	c, w := triggerContextWithBody(`{"source_uri": `)
	handler.TriggerRun(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	runner.AssertNotCalled(t, "RunIngestion", mock.Anything, mock.Anything)
}

func TestHandler_TriggerRun_SourceNotFound(t *testing.T) {
	runner := new(mockRunner)
	opener := func(ctx context.Context, uri string) (io.ReadCloser, error) {
		return nil, fmt.Errorf("open %s: %w", uri, fs.ErrNotExist)
	}
	handler := NewHandler(runner, opener, zap.NewNop())

	c, w := triggerContextWithBody(`{"source_uri": "absent.csv"}`)
	handler.TriggerRun(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := parseEnvelope(t, w)
	errObj := response["error"].(map[string]interface{})
	assert.Equal(t, "ingestion source not found", errObj["message"])
	runner.AssertNotCalled(t, "RunIngestion", mock.Anything, mock.Anything)
}

func TestHandler_TriggerRun_HeaderMismatch(t *testing.T) {
	runner := new(mockRunner)
	handler := NewHandler(runner, openerFor("wrong,header\n"), zap.NewNop())

	runner.On("RunIngestion", mock.Anything, mock.Anything).
		Return(nil, &StageError{Stage: StageStaging, Err: ErrHeaderMismatch}).Once()

	c, w := triggerContext()
	handler.TriggerRun(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := parseEnvelope(t, w)
	assert.False(t, response["success"].(bool))
	runner.AssertExpectations(t)
}

func TestHandler_TriggerRun_StageFailure(t *testing.T) {
	runner := new(mockRunner)
	handler := NewHandler(runner, openerFor(testCSVHeader+"\n"), zap.NewNop())

	runner.On("RunIngestion", mock.Anything, mock.Anything).
		Return(nil, &StageError{Stage: StageCommit, Err: errors.New("connection reset")}).Once()

	c, w := triggerContext()
	handler.TriggerRun(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	runner.AssertExpectations(t)
}

func TestHandler_TriggerRun_OpenSourceFailure(t *testing.T) {
	runner := new(mockRunner)
	opener := func(ctx context.Context, uri string) (io.ReadCloser, error) {
		return nil, errors.New("no such file")
	}
	handler := NewHandler(runner, opener, zap.NewNop())

	c, w := triggerContext()
	handler.TriggerRun(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	runner.AssertNotCalled(t, "RunIngestion", mock.Anything, mock.Anything)
}

func TestHandler_TriggerRun_RejectsConcurrentRun(t *testing.T) {
	runner := new(mockRunner)
	handler := NewHandler(runner, openerFor(testCSVHeader+"\n"), zap.NewNop())

	started := make(chan struct{})
	release := make(chan struct{})
	runner.On("RunIngestion", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&RunResult{}, nil).Once()

	firstCtx, firstRec := triggerContext()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		handler.TriggerRun(firstCtx)
	}()

	<-started

	secondCtx, secondRec := triggerContext()
	handler.TriggerRun(secondCtx)
	assert.Equal(t, http.StatusConflict, secondRec.Code)

	close(release)
	wg.Wait()
	assert.Equal(t, http.StatusCreated, firstRec.Code)
	runner.AssertExpectations(t)
}
