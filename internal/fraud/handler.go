package fraud

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/richxcame/fraud-screening/pkg/common"
	"github.com/richxcame/fraud-screening/pkg/pagination"
)

const (
	// DefaultFailedThreshold is the failed-count bound a cluster must exceed
	// when the request does not supply one.
	DefaultFailedThreshold = 5
	// DefaultTopAgentsLimit bounds the agent ranking when the request does
	// not supply a limit.
	DefaultTopAgentsLimit = 10
)

// FraudService defines the detector operations the HTTP layer depends on.
type FraudService interface {
	UsersMultipleLocations(ctx context.Context) ([]MultiLocationSignal, error)
	FailedTransactionsByLocation(ctx context.Context, threshold int) ([]FailedClusterSignal, error)
	TopAgentsPastYear(ctx context.Context, limit int) ([]TopAgentSignal, error)
}

// Handler handles HTTP requests for fraud detection signals.
type Handler struct {
	service FraudService
	log     *zap.Logger
}

// NewHandler creates a new fraud handler.
func NewHandler(service FraudService, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, log: log}
}

// GetMultiLocationUsers returns emails whose transactions span locations
// further apart than the detector's distance bound.
func (h *Handler) GetMultiLocationUsers(c *gin.Context) {
	signals, err := h.service.UsersMultipleLocations(c.Request.Context())
	if err != nil {
		h.log.Error("multi-location detection failed", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to detect multi-location users")
		return
	}

	page, meta := paginate(signals, pagination.ParseParams(c))
	common.SuccessResponseWithMeta(c, page, meta)
}

// GetFailedClusters returns grid cells holding more failed transactions than
// the threshold query parameter (DefaultFailedThreshold when absent).
func (h *Handler) GetFailedClusters(c *gin.Context) {
	threshold := DefaultFailedThreshold
	if raw := c.Query("threshold"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			common.ErrorResponse(c, http.StatusBadRequest, "threshold must be a non-negative integer")
			return
		}
		threshold = parsed
	}

	signals, err := h.service.FailedTransactionsByLocation(c.Request.Context(), threshold)
	if err != nil {
		h.log.Error("failed-cluster detection failed", zap.Error(err), zap.Int("threshold", threshold))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to detect failed-transaction clusters")
		return
	}

	page, meta := paginate(signals, pagination.ParseParams(c))
	common.SuccessResponseWithMeta(c, page, meta)
}

// GetTopAgents returns agents ranked by successful transaction volume over
// the past year. The limit query parameter bounds the ranking itself, so the
// response is not paginated.
func (h *Handler) GetTopAgents(c *gin.Context) {
	limit := DefaultTopAgentsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	signals, err := h.service.TopAgentsPastYear(c.Request.Context(), limit)
	if err != nil {
		if appErr, ok := err.(*common.AppError); ok {
			common.AppErrorResponse(c, appErr)
			return
		}
		h.log.Error("top-agent ranking failed", zap.Error(err), zap.Int("limit", limit))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to rank top agents")
		return
	}

	if signals == nil {
		signals = []TopAgentSignal{}
	}
	common.SuccessResponse(c, signals)
}

// RegisterRoutes registers fraud detection routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	fraud := rg.Group("/fraud")
	{
		fraud.GET("/multi-location-users", h.GetMultiLocationUsers)
		fraud.GET("/failed-clusters", h.GetFailedClusters)
		fraud.GET("/top-agents", h.GetTopAgents)
	}
}

// paginate windows a detector result for the response envelope. The returned
// slice is never nil so empty pages encode as [] rather than null.
func paginate[T any](items []T, params pagination.Params) ([]T, *common.Meta) {
	meta := &common.Meta{Limit: params.Limit, Offset: params.Offset, Total: int64(len(items))}

	start := params.Offset
	if start > len(items) {
		start = len(items)
	}
	end := start + params.Limit
	if end > len(items) {
		end = len(items)
	}

	window := items[start:end]
	if window == nil {
		window = []T{}
	}
	return window, meta
}
