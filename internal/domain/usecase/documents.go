package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/entity"
)

// ErrDeleteNotAllowed guards manual deletion: only documents that failed
// terminally or already burned at least one retry may be removed.
var ErrDeleteNotAllowed = errors.New("document cannot be deleted in its current state")

type BlobRemover interface {
	Remove(ctx context.Context, key string) error
}

// DocumentQueries serves the portal's read side plus the manual delete
// action. Status reads go to the cache first and fall back to the record.
type DocumentQueries struct {
	Documents DocumentRepo
	Blob      BlobRemover
	Cache     StatusCache
}

func NewDocumentQueries(docs DocumentRepo, blob BlobRemover, cache StatusCache) *DocumentQueries {
	return &DocumentQueries{Documents: docs, Blob: blob, Cache: cache}
}

func (q *DocumentQueries) List(ctx context.Context, userID, competencia string) ([]entity.Document, error) {
	return q.Documents.List(ctx, userID, competencia)
}

func (q *DocumentQueries) Status(ctx context.Context, userID, documentID string) (entity.ProcessingStatus, error) {
	if q.Cache != nil {
		if status, err := q.Cache.GetStatus(ctx, documentID); err == nil && status != "" {
			return entity.ProcessingStatus(status), nil
		}
	}

	doc, err := q.Documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return "", fmt.Errorf("%w: %v", ErrDocumentNotFound, err)
		}
		return "", err
	}
	if doc.UserID != userID {
		return "", fmt.Errorf("%w: document belongs to another user", ErrDocumentNotFound)
	}

	if q.Cache != nil {
		if err := q.Cache.SetStatus(ctx, doc.ID, string(doc.Status)); err != nil {
			log.Printf("failed to backfill status cache for document %s: %v", doc.ID, err)
		}
	}
	return doc.Status, nil
}

func (q *DocumentQueries) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := q.Documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrDocumentNotFound, err)
		}
		return err
	}
	if doc.UserID != userID {
		return fmt.Errorf("%w: document belongs to another user", ErrDocumentNotFound)
	}
	if !doc.Deletable() {
		return ErrDeleteNotAllowed
	}

	if err := q.Blob.Remove(ctx, doc.StoragePath); err != nil {
		return fmt.Errorf("remove blob: %w", err)
	}
	return q.Documents.Delete(ctx, doc.ID)
}
