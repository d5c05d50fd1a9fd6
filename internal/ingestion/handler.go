package ingestion

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/richxcame/fraud-screening/pkg/common"
	"github.com/richxcame/fraud-screening/pkg/security"
	"github.com/richxcame/fraud-screening/pkg/validation"
)

// Runner is the part of the ingestion service the handler drives.
type Runner interface {
	RunIngestion(ctx context.Context, source RowSource) (*RunResult, error)
}

// SourceOpener returns the raw input for one ingestion run. An empty uri
// selects the configured default source.
type SourceOpener func(ctx context.Context, uri string) (io.ReadCloser, error)

// RunRequest points one run at a different input batch. The body is
// optional; a request without one runs against the configured source.
type RunRequest struct {
	SourceURI string `json:"source_uri" validate:"omitempty,max=1024,ingest_uri"`
}

// Handler exposes ingestion runs over HTTP. Runs are serialized: a trigger
// that arrives while a run is executing is rejected, never queued.
type Handler struct {
	runner Runner
	open   SourceOpener
	log    *zap.Logger
	mu     sync.Mutex
}

// NewHandler creates a new ingestion handler
func NewHandler(runner Runner, open SourceOpener, log *zap.Logger) *Handler {
	return &Handler{runner: runner, open: open, log: log}
}

// TriggerRun starts a synchronous ingestion run.
func (h *Handler) TriggerRun(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "Invalid request format")
			return
		}
		if err := validation.ValidateStruct(&req); err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	uri := strings.TrimSpace(req.SourceURI)

	if !h.mu.TryLock() {
		common.ErrorResponse(c, http.StatusConflict, ErrRunInProgress.Error())
		return
	}
	defer h.mu.Unlock()

	rc, err := h.open(c.Request.Context(), uri)
	if err != nil {
		h.log.Error("failed to open ingestion source",
			zap.Error(err),
			zap.String("source_uri", security.SanitizeForLog(uri)),
		)
		if uri != "" && errors.Is(err, fs.ErrNotExist) {
			common.ErrorResponse(c, http.StatusBadRequest, "ingestion source not found")
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to open ingestion source")
		return
	}
	defer rc.Close()

	result, err := h.runner.RunIngestion(c.Request.Context(), NewCSVSource(rc))
	if err != nil {
		if errors.Is(err, ErrHeaderMismatch) {
			common.ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		common.ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	common.CreatedResponse(c, result)
}

// RegisterRoutes registers ingestion routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	ing := rg.Group("/ingestion")
	{
		ing.POST("/runs", h.TriggerRun)
	}
}
