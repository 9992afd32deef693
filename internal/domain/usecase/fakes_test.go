package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/entity"
)

// In-memory fakes implementing the usecase-side interfaces. The document
// fake mirrors the repository's conditional retry-count update so the
// counter semantics under test match production behavior.

type fakeDocumentRepo struct {
	docs map[string]*entity.Document

	createErr error
}

func newFakeDocumentRepo(docs ...*entity.Document) *fakeDocumentRepo {
	repo := &fakeDocumentRepo{docs: make(map[string]*entity.Document)}
	for _, d := range docs {
		copied := *d
		repo.docs[d.ID] = &copied
	}
	return repo
}

func (r *fakeDocumentRepo) Create(_ context.Context, doc *entity.Document) error {
	if r.createErr != nil {
		return r.createErr
	}
	copied := *doc
	r.docs[doc.ID] = &copied
	return nil
}

func (r *fakeDocumentRepo) GetByID(_ context.Context, id string) (*entity.Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeDocumentRepo) FindByUpload(_ context.Context, userID, competencia, storagePath string) (*entity.Document, error) {
	for _, doc := range r.docs {
		if doc.UserID == userID && doc.Competencia == competencia && doc.StoragePath == storagePath {
			copied := *doc
			return &copied, nil
		}
	}
	return nil, entity.ErrNotFound
}

// SetStatus mirrors the repository's conditional transition check,
// including the explicit terminal-to-processing override for stray
// invocations.
func (r *fakeDocumentRepo) SetStatus(_ context.Context, id string, status entity.ProcessingStatus) error {
	doc, ok := r.docs[id]
	if !ok {
		return entity.ErrNotFound
	}
	if doc.Status != status && !doc.Status.CanTransition(status) {
		if !(doc.Status.Terminal() && status == entity.StatusProcessing) {
			return fmt.Errorf("%w: %s -> %s", entity.ErrInvalidTransition, doc.Status, status)
		}
	}
	doc.Status = status
	return nil
}

func (r *fakeDocumentRepo) MarkProcessed(_ context.Context, id string, extracted json.RawMessage, at time.Time) error {
	doc, ok := r.docs[id]
	if !ok {
		return entity.ErrNotFound
	}
	doc.Status = entity.StatusProcessed
	doc.RetryCount = 0
	doc.LastError = ""
	doc.ExtractedData = extracted
	doc.ProcessedAt = &at
	return nil
}

func (r *fakeDocumentRepo) RecordFailure(_ context.Context, id string, expectedRetries int, status entity.ProcessingStatus, lastError string) error {
	doc, ok := r.docs[id]
	if !ok {
		return entity.ErrNotFound
	}
	if doc.RetryCount != expectedRetries {
		return entity.ErrRetryConflict
	}
	doc.Status = status
	doc.RetryCount = expectedRetries + 1
	doc.LastError = lastError
	return nil
}

func (r *fakeDocumentRepo) List(_ context.Context, userID, competencia string) ([]entity.Document, error) {
	var out []entity.Document
	for _, doc := range r.docs {
		if doc.UserID != userID {
			continue
		}
		if competencia != "" && doc.Competencia != competencia {
			continue
		}
		out = append(out, *doc)
	}
	return out, nil
}

func (r *fakeDocumentRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.docs[id]; !ok {
		return entity.ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

type fakeBlob struct {
	presignCalls int
	presignErr   error
	uploads      map[string][]byte
	uploadErr    error
	removed      []string
	removeErr    error
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{uploads: make(map[string][]byte)}
}

func (b *fakeBlob) GetPresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	b.presignCalls++
	if b.presignErr != nil {
		return "", b.presignErr
	}
	return fmt.Sprintf("https://blob.local/%s?sig=%d", key, b.presignCalls), nil
}

func (b *fakeBlob) Upload(_ context.Context, key string, file []byte) error {
	if b.uploadErr != nil {
		return b.uploadErr
	}
	b.uploads[key] = file
	return nil
}

func (b *fakeBlob) Remove(_ context.Context, key string) error {
	if b.removeErr != nil {
		return b.removeErr
	}
	b.removed = append(b.removed, key)
	return nil
}

type fakeExtractor struct {
	requests []entity.ExtractionRequest
	// one entry per call; nil error means success with the paired payload
	responses []extractionOutcome
	// invoked mid-attempt, lets a test race the document record while the
	// webhook call is in flight
	onExtract func()
}

type extractionOutcome struct {
	data json.RawMessage
	err  error
}

func (e *fakeExtractor) Extract(_ context.Context, req entity.ExtractionRequest) (json.RawMessage, error) {
	e.requests = append(e.requests, req)
	if e.onExtract != nil {
		e.onExtract()
	}
	if len(e.responses) == 0 {
		return nil, nil
	}
	outcome := e.responses[0]
	if len(e.responses) > 1 {
		e.responses = e.responses[1:]
	}
	return outcome.data, outcome.err
}

type fakeScheduler struct {
	scheduled []entity.RetryMessage
	err       error
}

func (s *fakeScheduler) ScheduleRetry(_ context.Context, msg entity.RetryMessage) error {
	if s.err != nil {
		return s.err
	}
	s.scheduled = append(s.scheduled, msg)
	return nil
}

type fakeNotifications struct {
	created []entity.Notification
}

func (n *fakeNotifications) Create(_ context.Context, notif *entity.Notification) error {
	n.created = append(n.created, *notif)
	return nil
}

func (n *fakeNotifications) ListByUser(_ context.Context, userID string) ([]entity.Notification, error) {
	var out []entity.Notification
	for _, notif := range n.created {
		if notif.UserID == userID {
			out = append(out, notif)
		}
	}
	return out, nil
}

func (n *fakeNotifications) MarkRead(_ context.Context, userID, id string) error {
	for i := range n.created {
		if n.created[i].ID == id && n.created[i].UserID == userID {
			n.created[i].Read = true
			return nil
		}
	}
	return entity.ErrNotFound
}

type fakeStatusCache struct {
	statuses map[string]string
	setErr   error
}

func newFakeStatusCache() *fakeStatusCache {
	return &fakeStatusCache{statuses: make(map[string]string)}
}

func (c *fakeStatusCache) SetStatus(_ context.Context, documentID, status string) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.statuses[documentID] = status
	return nil
}

func (c *fakeStatusCache) GetStatus(_ context.Context, documentID string) (string, error) {
	return c.statuses[documentID], nil
}

type fakeAccounts struct {
	counts map[string]int64
	err    error
}

func (a *fakeAccounts) CountByUser(_ context.Context, userID string) (int64, error) {
	if a.err != nil {
		return 0, a.err
	}
	return a.counts[userID], nil
}
