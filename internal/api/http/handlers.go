package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/marketscript/backend/internal/infrastructure/config"
	"github.com/marketscript/backend/internal/infrastructure/logging"
	"github.com/marketscript/backend/internal/sandbox"
	"github.com/marketscript/backend/internal/shared/id"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	executor *sandbox.Executor
	limits   config.SandboxConfig
	log      *logging.Logger
}

// NewHandlers creates a new handler set.
func NewHandlers(executor *sandbox.Executor, limits config.SandboxConfig, log *logging.Logger) *Handlers {
	return &Handlers{
		executor: executor,
		limits:   limits,
		log:      log.Named("api"),
	}
}

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	Code string `json:"code" binding:"required"`
	// Optional per-run overrides, clamped to the configured maxima.
	TimeoutMS int `json:"timeout_ms,omitempty"`
	MemoryMB  int `json:"memory_mb,omitempty"`
}

// ExecuteResponse is the body of a completed run.
type ExecuteResponse struct {
	RunID      string      `json:"run_id"`
	Result     interface{} `json:"result"`
	DurationMS int64       `json:"duration_ms"`
}

// FailureResponse is the body of a failed run.
type FailureResponse struct {
	RunID      string           `json:"run_id,omitempty"`
	Error      *sandbox.Failure `json:"error"`
	DurationMS int64            `json:"duration_ms"`
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "marketscript",
		"version": "0.3.0",
	})
}

// Health handles detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	limits := h.executor.Limits()
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"sandbox": gin.H{
			"memory_limit_mb": limits.MemoryLimitMB,
			"timeout_ms":      limits.Timeout.Milliseconds(),
			"max_concurrent":  h.limits.MaxConcurrent,
		},
	})
}

// Execute runs one snippet in a fresh sandbox session.
func (h *Handlers) Execute(c *gin.Context) {
	reqID := id.NewRequestID()

	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"kind":    "BadRequest",
			"message": "invalid request body: " + err.Error(),
		}})
		return
	}
	if h.limits.MaxSnippetKB > 0 && int64(len(req.Code)) > h.limits.MaxSnippetKB*1024 {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": gin.H{
			"kind":    "BadRequest",
			"message": "snippet exceeds maximum size",
		}})
		return
	}

	outcome := h.executor.Execute(c.Request.Context(), req.Code, h.runLimits(req))

	h.log.Info("execute request finished",
		zap.String("request_id", reqID.String()),
		zap.String("run_id", outcome.RunID.String()),
		zap.String("state", outcome.State.String()),
		zap.Duration("duration", outcome.Duration),
	)

	if outcome.Failure != nil {
		c.JSON(failureStatus(outcome.Failure), FailureResponse{
			RunID:      outcome.RunID.String(),
			Error:      outcome.Failure,
			DurationMS: outcome.Duration.Milliseconds(),
		})
		return
	}

	c.JSON(http.StatusOK, ExecuteResponse{
		RunID:      outcome.RunID.String(),
		Result:     outcome.Value,
		DurationMS: outcome.Duration.Milliseconds(),
	})
}

// runLimits derives the per-run budget from request overrides, clamped to
// the configured maxima so a caller cannot exceed the service budget.
func (h *Handlers) runLimits(req ExecuteRequest) sandbox.Limits {
	limits := sandbox.Limits{}
	if req.TimeoutMS > 0 && req.TimeoutMS <= h.limits.TimeoutMS {
		limits.Timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	if req.MemoryMB > 0 && req.MemoryMB <= h.limits.MemoryLimitMB {
		limits.MemoryLimitMB = req.MemoryMB
	}
	return limits
}

// failureStatus maps the failure taxonomy onto HTTP status codes. The run
// failed, not the request, so client-caused failures map to 4xx.
func failureStatus(failure *sandbox.Failure) int {
	switch failure.Kind {
	case sandbox.FailureCompile, sandbox.FailureRuntime:
		return http.StatusUnprocessableEntity
	case sandbox.FailureTimeout:
		return http.StatusRequestTimeout
	case sandbox.FailureResource:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}
