package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/apierr"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/ctxutil"
)

func serve(t *testing.T, path string, h gin.HandlerFunc) (*httptest.ResponseRecorder, ErrorEnvelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{RequestID: "req-1"}))
		c.Next()
	})
	r.GET("/runs/:id", h)
	r.GET("/plain", h)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestRespondErrorUsesAPIErrorInChain(t *testing.T) {
	rec, env := serve(t, "/runs/run-9", func(c *gin.Context) {
		err := fmt.Errorf("load: %w", apierr.NotFound("run_not_found", errors.New("run run-9 not found")))
		RespondError(c, http.StatusInternalServerError, "run_lookup_failed", err)
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, APIError{Message: "run run-9 not found", Code: "run_not_found", RequestID: "req-1", RunID: "run-9"}, env.Error)
}

func TestRespondErrorDerivesMissingCode(t *testing.T) {
	rec, env := serve(t, "/plain", func(c *gin.Context) {
		RespondError(c, http.StatusUnprocessableEntity, "", nil)
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_content", env.Error.Code)
	assert.Equal(t, "Unprocessable Entity", env.Error.Message)
	assert.Empty(t, env.Error.RunID)
}

func TestRespondErrFallsBackTo500(t *testing.T) {
	rec, env := serve(t, "/plain", func(c *gin.Context) {
		RespondErr(c, errors.New("disk full"), "run_store_failed")
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "run_store_failed", env.Error.Code)
	assert.Equal(t, "disk full", env.Error.Message)
}

func TestAbortErrorStopsChain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	reached := false
	r.GET("/x", func(c *gin.Context) {
		AbortError(c, http.StatusUnauthorized, "", errors.New("missing or invalid token"))
	}, func(c *gin.Context) { reached = true })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)
}

func TestCodeForStatus(t *testing.T) {
	assert.Equal(t, "upstream_failed", CodeForStatus(http.StatusBadGateway))
	assert.Equal(t, "internal_error", CodeForStatus(http.StatusGatewayTimeout))
	assert.Equal(t, "request_failed", CodeForStatus(http.StatusConflict))
}
