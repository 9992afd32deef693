package v1

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/entity"
	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/usecase"
)

var competenciaRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

type UploadUseCase interface {
	SubmitUpload(ctx context.Context, req usecase.UploadRequest) (*entity.Document, error)
	RetryUpload(ctx context.Context, userID, documentID string, file []byte) (*entity.Document, error)
}

type DocumentQueryUseCase interface {
	List(ctx context.Context, userID, competencia string) ([]entity.Document, error)
	Status(ctx context.Context, userID, documentID string) (entity.ProcessingStatus, error)
	Delete(ctx context.Context, userID, documentID string) error
}

type DocumentHandler struct {
	Uploads UploadUseCase
	Queries DocumentQueryUseCase
}

func NewDocumentHandler(uploads UploadUseCase, queries DocumentQueryUseCase) *DocumentHandler {
	return &DocumentHandler{Uploads: uploads, Queries: queries}
}

func (h *DocumentHandler) Upload(c *gin.Context) {
	userID := c.GetString("user_id")

	competencia := c.PostForm("competencia")
	if !competenciaRe.MatchString(competencia) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "competencia must be YYYY-MM"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	fileBytes, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.Uploads.SubmitUpload(c.Request.Context(), usecase.UploadRequest{
		UserID:       userID,
		Competencia:  competencia,
		FileName:     fileHeader.Filename,
		DocumentType: c.PostForm("document_type"),
		Event:        c.PostForm("event"),
		File:         fileBytes,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrNoChartOfAccounts) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "upload blocked: configure a chart of accounts before sending documents",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"document_id":  doc.ID,
		"status":       doc.Status,
		"storage_path": doc.StoragePath,
		"file_name":    doc.FileName,
	})
}

// RetryUploadFile re-attempts only the blob write for an existing record,
// the retry affordance shown for failed entries in the upload list.
func (h *DocumentHandler) RetryUploadFile(c *gin.Context) {
	userID := c.GetString("user_id")
	documentID := c.Param("document_id")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	fileBytes, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.Uploads.RetryUpload(c.Request.Context(), userID, documentID, fileBytes)
	if err != nil {
		if errors.Is(err, usecase.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"document_id": doc.ID, "storage_path": doc.StoragePath})
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID := c.GetString("user_id")

	docs, err := h.Queries.List(c.Request.Context(), userID, c.Query("competencia"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *DocumentHandler) Status(c *gin.Context) {
	userID := c.GetString("user_id")
	documentID := c.Param("document_id")

	status, err := h.Queries.Status(c.Request.Context(), userID, documentID)
	if err != nil {
		if errors.Is(err, usecase.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"document_id": documentID, "status": status})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID := c.GetString("user_id")
	documentID := c.Param("document_id")

	err := h.Queries.Delete(c.Request.Context(), userID, documentID)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrDocumentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		case errors.Is(err, usecase.ErrDeleteNotAllowed):
			c.JSON(http.StatusConflict, gin.H{
				"error": "only failed documents or ones with retry attempts can be deleted",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.Status(http.StatusNoContent)
}
