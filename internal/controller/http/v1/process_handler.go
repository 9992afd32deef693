package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/entity"
	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/usecase"
)

// ProcessHandler exposes the orchestrator entry point. It is called by the
// upload flow's clients and is also useful for administrative re-runs; the
// delayed-retry path goes through the queue consumer instead.
type ProcessHandler struct {
	Orchestrator usecase.DocumentProcessor
}

func NewProcessHandler(orch usecase.DocumentProcessor) *ProcessHandler {
	return &ProcessHandler{Orchestrator: orch}
}

func (h *ProcessHandler) Process(c *gin.Context) {
	var req usecase.ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if req.UserID == "" || req.Competencia == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "user_id and competencia are required"})
		return
	}

	result, err := h.Orchestrator.ProcessDocument(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrDocumentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, usecase.ErrSignedURL):
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, entity.ErrRetryConflict), errors.Is(err, entity.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
