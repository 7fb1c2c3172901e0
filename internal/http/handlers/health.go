package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	engine string
}

// NewHealthHandler reports engine as the completion backend in use.
func NewHealthHandler(engine string) *HealthHandler { return &HealthHandler{engine: engine} }

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "engine": h.engine})
}
