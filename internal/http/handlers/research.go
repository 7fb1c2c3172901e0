package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/config"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/http/response"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/modules/scoping/orchestrator"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/apierr"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/platform/logger"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/runstore"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/sse"
)

// Pipeline is the part of the orchestrator the handlers drive.
type Pipeline interface {
	Run(ctx context.Context, req orchestrator.Request, sink orchestrator.Sink) (scoping.GeneratedContent, error)
	ApplyResponses(content scoping.GeneratedContent, responses map[string]any) (scoping.GeneratedContent, error)
}

type ResearchHandler struct {
	log       *logger.Logger
	pipeline  Pipeline
	runs      runstore.Store
	heartbeat time.Duration
}

func NewResearchHandler(log *logger.Logger, pipeline Pipeline, runs runstore.Store, heartbeat time.Duration) *ResearchHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ResearchHandler{
		log:       log.With("handler", "ResearchHandler"),
		pipeline:  pipeline,
		runs:      runs,
		heartbeat: heartbeat,
	}
}

type researchRequest struct {
	Input   string                    `json:"input"`
	Models  config.ModelSet           `json:"models"`
	Prompts orchestrator.PromptExtras `json:"prompts"`
}

// POST /api/research
func (h *ResearchHandler) Research(c *gin.Context) {
	var body researchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(body.Input) == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_input", errors.New("input is required"))
		return
	}

	stream, err := sse.Open(c.Writer, h.heartbeat, h.log)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "streaming_unsupported", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	runID := uuid.NewString()
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer stream.Close()
		sink := func(ev scoping.StreamingEvent) {
			// Store before announcing so the run is readable once the
			// client sees complete.
			if ev.Type == scoping.EventComplete && ev.Content != nil {
				if err := h.runs.Save(ctx, *ev.Content); err != nil {
					h.log.Warn("failed to store run", "run_id", runID, "error", err.Error())
				}
			}
			stream.Send(ctx, ev)
		}
		_, _ = h.pipeline.Run(ctx, orchestrator.Request{
			Input:   body.Input,
			Models:  body.Models,
			Prompts: body.Prompts,
			RunID:   runID,
		}, sink)
	}()

	if err := stream.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		h.log.Debug("stream ended early", "run_id", runID, "error", err.Error())
	}
	cancel()
	<-done
}

type applyRequest struct {
	Content   *scoping.GeneratedContent `json:"content"`
	Responses map[string]any            `json:"responses"`
}

type applyResult struct {
	Services     []scoping.Service     `json:"services"`
	Calculations []scoping.Calculation `json:"calculations"`
	TotalHours   float64               `json:"totalHours"`
}

// POST /api/research/apply
func (h *ResearchHandler) Apply(c *gin.Context) {
	var body applyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if body.Content == nil {
		response.RespondError(c, http.StatusBadRequest, "missing_content", errors.New("content is required"))
		return
	}
	out, err := h.pipeline.ApplyResponses(*body.Content, body.Responses)
	if err != nil {
		response.RespondError(c, http.StatusUnprocessableEntity, "invalid_content", err)
		return
	}
	response.RespondOK(c, applyResult{Services: out.Services, Calculations: out.Calculations, TotalHours: out.TotalHours})
}

// GET /api/runs/:id
func (h *ResearchHandler) GetRun(c *gin.Context) {
	content, err := h.loadRun(c)
	if err != nil {
		response.RespondErr(c, err, "run_lookup_failed")
		return
	}
	response.RespondOK(c, content)
}

type applyRunRequest struct {
	Responses map[string]any `json:"responses"`
}

// POST /api/runs/:id/apply
func (h *ResearchHandler) ApplyRun(c *gin.Context) {
	var body applyRunRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	content, err := h.loadRun(c)
	if err != nil {
		response.RespondErr(c, err, "run_lookup_failed")
		return
	}
	out, err := h.pipeline.ApplyResponses(content, body.Responses)
	if err != nil {
		response.RespondError(c, http.StatusUnprocessableEntity, "invalid_content", err)
		return
	}
	if err := h.runs.Save(c.Request.Context(), out); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "run_store_failed", err)
		return
	}
	response.RespondOK(c, out)
}

func (h *ResearchHandler) loadRun(c *gin.Context) (scoping.GeneratedContent, error) {
	runID := strings.TrimSpace(c.Param("id"))
	if runID == "" {
		return scoping.GeneratedContent{}, apierr.BadRequest("invalid_run_id", errors.New("run id is required"))
	}
	content, err := h.runs.Get(c.Request.Context(), runID)
	if errors.Is(err, runstore.ErrNotFound) {
		return scoping.GeneratedContent{}, apierr.NotFound("run_not_found", fmt.Errorf("run %s not found", runID))
	}
	return content, err
}
