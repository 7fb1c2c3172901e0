package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/clients/scopestack"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/domain/scoping"
	"github.com/scopestack-jon/scopestack-content-engine-sub000/internal/http/response"
)

type Pusher interface {
	PushProject(ctx context.Context, content scoping.GeneratedContent) (scopestack.PushResult, error)
}

// PushHandler sends stored runs to ScopeStack. A nil pusher means the
// integration is not configured.
type PushHandler struct {
	research *ResearchHandler
	pusher   Pusher
}

func NewPushHandler(research *ResearchHandler, pusher Pusher) *PushHandler {
	return &PushHandler{research: research, pusher: pusher}
}

// POST /api/runs/:id/push
func (h *PushHandler) PushRun(c *gin.Context) {
	if h.pusher == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "scopestack_disabled", errors.New("ScopeStack push is not configured"))
		return
	}
	content, err := h.research.loadRun(c)
	if err != nil {
		response.RespondErr(c, err, "run_lookup_failed")
		return
	}
	res, err := h.pusher.PushProject(c.Request.Context(), content)
	if err != nil {
		h.research.log.Warn("push failed", "run_id", content.RunID, "error", err.Error())
		response.RespondError(c, http.StatusBadGateway, "push_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"runId": content.RunID, "projectId": res.ProjectID, "url": res.URL})
}
