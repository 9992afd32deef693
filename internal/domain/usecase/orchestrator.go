package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/entity"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrSignedURL        = errors.New("failed to generate signed url")
	ErrExtractionFailed = errors.New("extraction webhook failed")
)

type DocumentRepo interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id string) (*entity.Document, error)
	FindByUpload(ctx context.Context, userID, competencia, storagePath string) (*entity.Document, error)
	SetStatus(ctx context.Context, id string, status entity.ProcessingStatus) error
	MarkProcessed(ctx context.Context, id string, extracted json.RawMessage, at time.Time) error
	RecordFailure(ctx context.Context, id string, expectedRetries int, status entity.ProcessingStatus, lastError string) error
	List(ctx context.Context, userID, competencia string) ([]entity.Document, error)
	Delete(ctx context.Context, id string) error
}

type NotificationRepo interface {
	Create(ctx context.Context, n *entity.Notification) error
}

type SignedURLProvider interface {
	GetPresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type ExtractionClient interface {
	Extract(ctx context.Context, req entity.ExtractionRequest) (json.RawMessage, error)
}

type RetryScheduler interface {
	ScheduleRetry(ctx context.Context, msg entity.RetryMessage) error
}

type StatusCache interface {
	SetStatus(ctx context.Context, documentID, status string) error
	GetStatus(ctx context.Context, documentID string) (string, error)
}

// ProcessRequest mirrors the orchestrator entry point. On fresh invocations
// FileURL carries the storage path of the just-uploaded blob; on retries
// DocumentID is set and FileURL is ignored in favor of the stored record.
type ProcessRequest struct {
	UserID      string `json:"user_id"`
	Competencia string `json:"competencia"`
	FileURL     string `json:"file_url"`
	FileName    string `json:"file_name"`
	Event       string `json:"event"`
	DocumentID  string `json:"document_id,omitempty"`
}

type ProcessResult struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	Retrying   bool            `json:"retrying,omitempty"`
	Attempt    int             `json:"attempt,omitempty"`
	DocumentID string          `json:"document_id,omitempty"`
}

// ProcessingOrchestrator drives one document through extraction with bounded
// automatic retry. Every attempt mints a fresh signed URL; a previously
// issued one may already be expired by the time a delayed retry fires.
type ProcessingOrchestrator struct {
	Documents     DocumentRepo
	Notifications NotificationRepo
	Blob          SignedURLProvider
	Extractor     ExtractionClient
	Scheduler     RetryScheduler
	Cache         StatusCache

	MaxRetries      int
	SignedURLExpiry time.Duration
}

func NewProcessingOrchestrator(
	docs DocumentRepo,
	notifs NotificationRepo,
	blob SignedURLProvider,
	extractor ExtractionClient,
	scheduler RetryScheduler,
	cache StatusCache,
	maxRetries int,
	signedURLExpiry time.Duration,
) *ProcessingOrchestrator {
	return &ProcessingOrchestrator{
		Documents:       docs,
		Notifications:   notifs,
		Blob:            blob,
		Extractor:       extractor,
		Scheduler:       scheduler,
		Cache:           cache,
		MaxRetries:      maxRetries,
		SignedURLExpiry: signedURLExpiry,
	}
}

func (o *ProcessingOrchestrator) ProcessDocument(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	doc, err := o.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	signedURL, err := o.Blob.GetPresignedURL(ctx, doc.StoragePath, o.SignedURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignedURL, err)
	}

	if err := o.Documents.SetStatus(ctx, doc.ID, entity.StatusProcessing); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}
	o.cacheStatus(ctx, doc.ID, entity.StatusProcessing)

	event := req.Event
	if event == "" {
		event = entity.DefaultEvent
	}

	extracted, err := o.Extractor.Extract(ctx, entity.ExtractionRequest{
		Event:       event,
		DocumentID:  doc.ID,
		UserID:      doc.UserID,
		Competencia: doc.Competencia,
		FileURL:     signedURL,
		StoragePath: doc.StoragePath,
		FileName:    doc.FileName,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return o.handleFailure(ctx, doc, event, fmt.Errorf("%w: %v", ErrExtractionFailed, err))
	}

	now := time.Now().UTC()
	if err := o.Documents.MarkProcessed(ctx, doc.ID, extracted, now); err != nil {
		return nil, fmt.Errorf("mark processed: %w", err)
	}
	o.cacheStatus(ctx, doc.ID, entity.StatusProcessed)

	return &ProcessResult{
		Success:    true,
		Data:       extracted,
		DocumentID: doc.ID,
	}, nil
}

// resolve fetches the document record: by id when this is a retry, otherwise
// by the (user, competencia, storage path) key of the fresh upload.
func (o *ProcessingOrchestrator) resolve(ctx context.Context, req ProcessRequest) (*entity.Document, error) {
	var (
		doc *entity.Document
		err error
	)
	if req.DocumentID != "" {
		doc, err = o.Documents.GetByID(ctx, req.DocumentID)
	} else {
		doc, err = o.Documents.FindByUpload(ctx, req.UserID, req.Competencia, req.FileURL)
	}
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrDocumentNotFound, err)
		}
		return nil, fmt.Errorf("resolve document: %w", err)
	}
	return doc, nil
}

func (o *ProcessingOrchestrator) handleFailure(ctx context.Context, doc *entity.Document, event string, cause error) (*ProcessResult, error) {
	attempt := doc.RetryCount + 1

	if attempt >= o.MaxRetries {
		if doc.RetryCount >= o.MaxRetries {
			// Stray invocation failing past the cap: keep the counter where
			// it is and just restate the terminal status.
			if err := o.Documents.SetStatus(ctx, doc.ID, entity.StatusError); err != nil {
				return nil, fmt.Errorf("restate terminal failure: %w", err)
			}
			o.cacheStatus(ctx, doc.ID, entity.StatusError)
			return &ProcessResult{
				Success:    false,
				Error:      fmt.Sprintf("max retries (%d) reached for document %s", o.MaxRetries, doc.FileName),
				Attempt:    doc.RetryCount,
				DocumentID: doc.ID,
			}, nil
		}

		finalMsg := fmt.Sprintf("extraction failed after %d attempts: %v", o.MaxRetries, cause)
		if err := o.Documents.RecordFailure(ctx, doc.ID, doc.RetryCount, entity.StatusError, finalMsg); err != nil {
			return nil, fmt.Errorf("record terminal failure: %w", err)
		}
		o.cacheStatus(ctx, doc.ID, entity.StatusError)
		o.notifyTerminalFailure(ctx, doc)
		return &ProcessResult{
			Success:    false,
			Error:      fmt.Sprintf("max retries (%d) reached for document %s", o.MaxRetries, doc.FileName),
			Attempt:    attempt,
			DocumentID: doc.ID,
		}, nil
	}

	lastError := fmt.Sprintf("attempt %d/%d: %v", attempt, o.MaxRetries, cause)
	if err := o.Documents.RecordFailure(ctx, doc.ID, doc.RetryCount, entity.StatusPendingRetry, lastError); err != nil {
		return nil, fmt.Errorf("record failed attempt: %w", err)
	}
	o.cacheStatus(ctx, doc.ID, entity.StatusPendingRetry)

	// Fire-and-forget: the response does not wait for the delayed retry, and
	// a scheduling failure is only logged.
	if err := o.Scheduler.ScheduleRetry(ctx, entity.RetryMessage{
		DocumentID:  doc.ID,
		UserID:      doc.UserID,
		Competencia: doc.Competencia,
		FileName:    doc.FileName,
		Event:       event,
		Attempt:     attempt,
	}); err != nil {
		log.Printf("failed to schedule retry for document %s: %v", doc.ID, err)
	}

	return &ProcessResult{
		Success:    false,
		Error:      lastError,
		Retrying:   true,
		Attempt:    attempt,
		DocumentID: doc.ID,
	}, nil
}

func (o *ProcessingOrchestrator) notifyTerminalFailure(ctx context.Context, doc *entity.Document) {
	n := &entity.Notification{
		UserID: doc.UserID,
		Message: fmt.Sprintf(
			"Não foi possível processar o documento %q (competência %s) após %d tentativas. Entre em contato com o suporte.",
			doc.FileName, doc.Competencia, o.MaxRetries,
		),
		Type: entity.NotificationTypeProcessingError,
	}
	if err := o.Notifications.Create(ctx, n); err != nil {
		log.Printf("failed to notify user %s about document %s: %v", doc.UserID, doc.ID, err)
	}
}

func (o *ProcessingOrchestrator) cacheStatus(ctx context.Context, documentID string, status entity.ProcessingStatus) {
	if o.Cache == nil {
		return
	}
	if err := o.Cache.SetStatus(ctx, documentID, string(status)); err != nil {
		log.Printf("failed to cache status for document %s: %v", documentID, err)
	}
}
