package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketscript/backend/internal/capabilities"
	"github.com/marketscript/backend/internal/infrastructure/config"
	"github.com/marketscript/backend/internal/infrastructure/logging"
	"github.com/marketscript/backend/internal/providers/marketdata"
	"github.com/marketscript/backend/internal/sandbox"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	surface := capabilities.NewSurface(marketdata.NewStatic(marketdata.DefaultCatalog()))
	limits := config.SandboxConfig{
		MemoryLimitMB: 64,
		TimeoutMS:     2000,
		MaxConcurrent: 4,
		MaxSnippetKB:  64,
	}
	executor := sandbox.NewExecutor(surface, sandbox.Limits{
		MemoryLimitMB: limits.MemoryLimitMB,
		Timeout:       limits.Timeout(),
	}, sandbox.WithMaxConcurrent(limits.MaxConcurrent))

	handlers := NewHandlers(executor, limits, logging.NewNop())

	router := gin.New()
	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.POST("/execute", handlers.Execute)
	return router
}

func postExecute(t *testing.T, router *gin.Engine, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestExecuteCompletedRun(t *testing.T) {
	router := newTestRouter(t)

	w := postExecute(t, router, ExecuteRequest{
		Code: `(async () => {
			const price = await getTickerPrice("AAPL");
			const rate = await getExchangeRate("USD", "EUR");
			return price * rate;
		})()`,
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp ExecuteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.InDelta(t, 138.23, resp.Result, 0.001)
}

func TestExecuteNullResultIsNotAFailure(t *testing.T) {
	router := newTestRouter(t)

	w := postExecute(t, router, ExecuteRequest{
		Code: `(async () => await getTickerPrice("ZZZZ"))()`,
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp["result"])
	assert.NotContains(t, resp, "error")
}

func TestExecuteFailureResponses(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name       string
		code       string
		wantStatus int
		wantKind   string
	}{
		{
			name:       "compile error",
			code:       `(async ( => 1)()`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "CompileError",
		},
		{
			name:       "runtime error",
			code:       `(async () => { throw new Error("boom"); })()`,
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "RuntimeError",
		},
		{
			name:       "timeout",
			code:       `(async () => { while (true) {} })()`,
			wantStatus: http.StatusRequestTimeout,
			wantKind:   "TimeoutError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postExecute(t, router, ExecuteRequest{Code: tt.code, TimeoutMS: 200})
			require.Equal(t, tt.wantStatus, w.Code)

			var resp FailureResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantKind, string(resp.Error.Kind))
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestExecuteRejectsBadBodies(t *testing.T) {
	router := newTestRouter(t)

	w := postExecute(t, router, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteClampsOverrides(t *testing.T) {
	router := newTestRouter(t)

	// A timeout override above the configured maximum falls back to the
	// service budget rather than extending it.
	start := time.Now()
	w := postExecute(t, router, ExecuteRequest{
		Code:      `(async () => { while (true) {} })()`,
		TimeoutMS: 60_000,
	})
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusRequestTimeout, w.Code)
	assert.Less(t, elapsed, 10*time.Second)
}

func TestExecuteRejectsOversizedSnippet(t *testing.T) {
	router := newTestRouter(t)

	big := make([]byte, 65*1024)
	for i := range big {
		big[i] = ' '
	}
	w := postExecute(t, router, ExecuteRequest{Code: "(async () => 1)()" + string(big)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestHealthReportsBudget(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	sandboxInfo := resp["sandbox"].(map[string]interface{})
	assert.Equal(t, float64(64), sandboxInfo["memory_limit_mb"])
}
