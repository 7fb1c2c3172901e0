package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/clients/scopestack"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	httpH "github.com/scopestack-jon/scopestack-content-engine-sub000/internal/http/handlers"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/http/response"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/llm/mock"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/orchestrator"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/observability"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/runstore"
)

type fakePusher struct {
	pushed []scoping.GeneratedContent
	err    error
}

func (f *fakePusher) PushProject(_ context.Context, content scoping.GeneratedContent) (scopestack.PushResult, error) {
	if f.err != nil {
		return scopestack.PushResult{}, f.err
	}
	f.pushed = append(f.pushed, content)
	return scopestack.PushResult{ProjectID: "77", URL: "https://app.scopestack.example/projects/77"}, nil
}

type testEnv struct {
	router *gin.Engine
	store  *runstore.Memory
	pusher *fakePusher
}

func newTestEnv(t *testing.T, token string, withPusher bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	metrics := observability.NewMetrics()
	orch, err := orchestrator.New(orchestrator.NewComponents(mock.New(), cfg.Models, cfg.Pipeline, nil), cfg.Models, nil, metrics)
	require.NoError(t, err)
	store := runstore.NewMemory(16, time.Minute)
	research := httpH.NewResearchHandler(nil, orch, store, time.Hour)

	env := &testEnv{store: store, pusher: &fakePusher{}}
	var push *httpH.PushHandler
	if withPusher {
		push = httpH.NewPushHandler(research, env.pusher)
	} else {
		push = httpH.NewPushHandler(research, nil)
	}
	env.router = NewRouter(RouterConfig{
		Metrics:         metrics,
		MetricsEnabled:  true,
		MaxRequestBytes: 1 << 20,
		APIToken:        token,
		ResearchHandler: research,
		PushHandler:     push,
		HealthHandler:   httpH.NewHealthHandler("mock"),
	})
	return env
}

func (e *testEnv) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func parseEvents(t *testing.T, body string) []scoping.StreamingEvent {
	t.Helper()
	var out []scoping.StreamingEvent
	for _, chunk := range strings.Split(body, "\n\n") {
		if !strings.HasPrefix(chunk, "data: ") {
			continue
		}
		var ev scoping.StreamingEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(chunk, "data: ")), &ev))
		out = append(out, ev)
	}
	return out
}

func (e *testEnv) runResearch(t *testing.T) scoping.GeneratedContent {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/research", map[string]any{"input": "Migrate 500 users to Microsoft 365"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseEvents(t, rec.Body.String())
	require.NotEmpty(t, events)
	final := events[len(events)-1]
	require.Equal(t, scoping.EventComplete, final.Type, rec.Body.String())
	require.NotNil(t, final.Content)
	return *final.Content
}

func TestHealthcheck(t *testing.T) {
	env := newTestEnv(t, "", true)
	rec := env.do(http.MethodGet, "/healthcheck", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","engine":"mock"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestResearchStreamsAndStoresRun(t *testing.T) {
	env := newTestEnv(t, "", true)
	content := env.runResearch(t)

	assert.NotEmpty(t, content.RunID)
	assert.NotEmpty(t, content.Services)
	assert.Greater(t, content.TotalHours, 0.0)

	rec := env.do(http.MethodGet, "/api/runs/"+content.RunID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored scoping.GeneratedContent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, content.RunID, stored.RunID)
	assert.Equal(t, content.TotalHours, stored.TotalHours)
}

func TestResearchStreamEventOrder(t *testing.T) {
	env := newTestEnv(t, "", true)
	rec := env.do(http.MethodPost, "/api/research", map[string]any{
		"input":  "Deploy Cisco Meraki",
		"models": map[string]string{"analysis": "other/model"},
	})
	events := parseEvents(t, rec.Body.String())
	require.NotEmpty(t, events)

	assert.Equal(t, scoping.EventStep, events[0].Type)
	assert.Equal(t, scoping.StepResearch, events[0].StepID)
	assert.Equal(t, scoping.StatusInProgress, events[0].Status)
	prev := 0
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Progress, prev)
		prev = ev.Progress
		assert.NotEqual(t, scoping.EventError, ev.Type, ev.Error)
	}
	assert.Equal(t, 100, prev)
}

func TestResearchRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t, "", true)

	rec := env.do(http.MethodPost, "/api/research", map[string]any{"input": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing_input")

	req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")
}

func TestApplyIsStateless(t *testing.T) {
	env := newTestEnv(t, "", true)
	content := env.runResearch(t)

	rec := env.do(http.MethodPost, "/api/research/apply", map[string]any{
		"content":   content,
		"responses": map[string]any{"user_count": 1000, "mailbox_count": 950},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Services     []scoping.Service     `json:"services"`
		Calculations []scoping.Calculation `json:"calculations"`
		TotalHours   float64               `json:"totalHours"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Greater(t, out.TotalHours, content.TotalHours)
	assert.Len(t, out.Services, len(content.Services))
	assert.NotEmpty(t, out.Calculations)

	stored, err := env.store.Get(context.Background(), content.RunID)
	require.NoError(t, err)
	assert.Equal(t, content.TotalHours, stored.TotalHours)
}

func TestApplyRejectsInvalidContent(t *testing.T) {
	env := newTestEnv(t, "", true)

	rec := env.do(http.MethodPost, "/api/research/apply", map[string]any{"responses": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/research/apply", map[string]any{
		"content":   map[string]any{"technology": "x", "services": []any{}},
		"responses": map[string]any{},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_content")
}

func TestApplyRunUpdatesStoredRun(t *testing.T) {
	env := newTestEnv(t, "", true)
	content := env.runResearch(t)

	rec := env.do(http.MethodPost, "/api/runs/"+content.RunID+"/apply", map[string]any{
		"responses": map[string]any{"site_count": 12},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := env.store.Get(context.Background(), content.RunID)
	require.NoError(t, err)
	assert.Greater(t, stored.TotalHours, content.TotalHours)

	rec = env.do(http.MethodPost, "/api/runs/nope/apply", map[string]any{"responses": map[string]any{}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "run_not_found")
}

func TestPushRun(t *testing.T) {
	env := newTestEnv(t, "", true)
	content := env.runResearch(t)

	rec := env.do(http.MethodPost, "/api/runs/"+content.RunID+"/push", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"runId":"`+content.RunID+`","projectId":"77","url":"https://app.scopestack.example/projects/77"}`, rec.Body.String())
	require.Len(t, env.pusher.pushed, 1)

	env.pusher.err = errors.New("scopestack: status 500")
	rec = env.do(http.MethodPost, "/api/runs/"+content.RunID+"/push", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = env.do(http.MethodPost, "/api/runs/missing/push", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPushDisabled(t *testing.T) {
	env := newTestEnv(t, "", false)
	rec := env.do(http.MethodPost, "/api/runs/any/push", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "scopestack_disabled")
}

func TestAPITokenGuardsAPIRoutesOnly(t *testing.T) {
	env := newTestEnv(t, "s3cret", true)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/runs/x", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/runs/x", nil, "Authorization", "Bearer s3cret").Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthcheck", nil).Code)
}

func TestErrorBodiesCarryRequestAndRunIDs(t *testing.T) {
	env := newTestEnv(t, "", true)

	rec := env.do(http.MethodGet, "/api/runs/missing-run", nil, "X-Request-Id", "req-7")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body response.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run_not_found", body.Error.Code)
	assert.Equal(t, "missing-run", body.Error.RunID)
	assert.Equal(t, "req-7", body.Error.RequestID)

	rec = env.do(http.MethodGet, "/nowhere", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	body = response.ErrorEnvelope{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body.Error.Code)
	assert.Equal(t, "route not found", body.Error.Message)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, "", true)
	env.do(http.MethodGet, "/healthcheck", nil)

	rec := env.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scope_api_requests_total{method="GET",route="/healthcheck",status="200"} 1`)
}
