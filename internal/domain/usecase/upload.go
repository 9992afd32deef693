package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/entity"
)

// ErrNoChartOfAccounts blocks uploads from users with an empty chart of
// accounts. This is a business rule, not a retryable failure.
var ErrNoChartOfAccounts = errors.New("user has no chart of accounts configured")

type BlobStore interface {
	Upload(ctx context.Context, key string, file []byte) error
}

type AccountsRepo interface {
	CountByUser(ctx context.Context, userID string) (int64, error)
}

type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, req ProcessRequest) (*ProcessResult, error)
}

type UploadRequest struct {
	UserID       string
	Competencia  string
	FileName     string
	DocumentType string
	Event        string
	File         []byte
}

// UploadSubmitter turns one accepted file into a blob write, a document
// record at not_processed and exactly one fresh orchestrator invocation.
type UploadSubmitter struct {
	Accounts     AccountsRepo
	Blob         BlobStore
	Documents    DocumentRepo
	Orchestrator DocumentProcessor
}

func NewUploadSubmitter(accounts AccountsRepo, blob BlobStore, docs DocumentRepo, orch DocumentProcessor) *UploadSubmitter {
	return &UploadSubmitter{
		Accounts:     accounts,
		Blob:         blob,
		Documents:    docs,
		Orchestrator: orch,
	}
}

func (u *UploadSubmitter) SubmitUpload(ctx context.Context, req UploadRequest) (*entity.Document, error) {
	count, err := u.Accounts.CountByUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("check chart of accounts: %w", err)
	}
	if count == 0 {
		return nil, ErrNoChartOfAccounts
	}

	storageName := uuid.New().String() + filepath.Ext(req.FileName)
	storagePath := req.UserID + "/" + req.Competencia + "/" + storageName

	if err := u.Blob.Upload(ctx, storagePath, req.File); err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}

	doc := &entity.Document{
		ID:           uuid.New().String(),
		UserID:       req.UserID,
		Competencia:  req.Competencia,
		StoragePath:  storagePath,
		FileName:     req.FileName,
		DocumentType: req.DocumentType,
		Status:       entity.StatusNotProcessed,
	}
	if err := u.Documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	// Once the record exists, processing failures are the orchestrator's
	// concern: it persists the outcome and schedules its own retries, so
	// the upload itself still succeeds.
	if _, err := u.Orchestrator.ProcessDocument(ctx, ProcessRequest{
		UserID:      req.UserID,
		Competencia: req.Competencia,
		FileURL:     storagePath,
		FileName:    req.FileName,
		Event:       req.Event,
	}); err != nil {
		log.Printf("initial processing of document %s failed: %v", doc.ID, err)
	}

	return doc, nil
}

// RetryUpload re-attempts only the blob write for an existing record. It
// never re-invokes the orchestrator: that belongs to the retry pipeline.
func (u *UploadSubmitter) RetryUpload(ctx context.Context, userID, documentID string, file []byte) (*entity.Document, error) {
	doc, err := u.Documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrDocumentNotFound, err)
		}
		return nil, err
	}
	if doc.UserID != userID {
		return nil, fmt.Errorf("%w: document belongs to another user", ErrDocumentNotFound)
	}
	if err := u.Blob.Upload(ctx, doc.StoragePath, file); err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}
	return doc, nil
}
