package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/entity"
)

const (
	testUserID = "a7745bd5-a8ab-40a6-b776-a802ff75f9d9"
	testComp   = "2025-03"
	testPath   = testUserID + "/" + testComp + "/nota-fiscal.pdf"
)

func testDocument() *entity.Document {
	return &entity.Document{
		ID:          "d37c19e2-5a51-4f3e-9a1c-77cf00e07a41",
		UserID:      testUserID,
		Competencia: testComp,
		StoragePath: testPath,
		FileName:    "nota-fiscal.pdf",
		Status:      entity.StatusNotProcessed,
	}
}

type orchestratorFixture struct {
	docs      *fakeDocumentRepo
	notifs    *fakeNotifications
	blob      *fakeBlob
	extractor *fakeExtractor
	scheduler *fakeScheduler
	cache     *fakeStatusCache
	orch      *ProcessingOrchestrator
}

func newOrchestratorFixture(docs ...*entity.Document) *orchestratorFixture {
	f := &orchestratorFixture{
		docs:      newFakeDocumentRepo(docs...),
		notifs:    &fakeNotifications{},
		blob:      newFakeBlob(),
		extractor: &fakeExtractor{},
		scheduler: &fakeScheduler{},
		cache:     newFakeStatusCache(),
	}
	f.orch = NewProcessingOrchestrator(
		f.docs, f.notifs, f.blob, f.extractor, f.scheduler, f.cache,
		5, time.Hour,
	)
	return f
}

func freshRequest() ProcessRequest {
	return ProcessRequest{
		UserID:      testUserID,
		Competencia: testComp,
		FileURL:     testPath,
		FileName:    "nota-fiscal.pdf",
	}
}

func TestProcessDocument_Success(t *testing.T) {
	f := newOrchestratorFixture(testDocument())
	f.extractor.responses = []extractionOutcome{
		{data: json.RawMessage(`{"foo":1}`)},
	}

	result, err := f.orch.ProcessDocument(context.Background(), freshRequest())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.JSONEq(t, `{"foo":1}`, string(result.Data))

	doc, err := f.docs.GetByID(context.Background(), result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusProcessed, doc.Status)
	assert.Equal(t, 0, doc.RetryCount)
	assert.JSONEq(t, `{"foo":1}`, string(doc.ExtractedData))
	require.NotNil(t, doc.ProcessedAt)

	assert.Empty(t, f.scheduler.scheduled)
	assert.Empty(t, f.notifs.created)
	assert.Equal(t, string(entity.StatusProcessed), f.cache.statuses[doc.ID])
}

func TestProcessDocument_SuccessResetsCounterAfterFailures(t *testing.T) {
	doc := testDocument()
	doc.Status = entity.StatusPendingRetry
	doc.RetryCount = 3
	f := newOrchestratorFixture(doc)
	f.extractor.responses = []extractionOutcome{{data: nil}}

	result, err := f.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID: testUserID, Competencia: testComp, DocumentID: doc.ID,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	stored, _ := f.docs.GetByID(context.Background(), doc.ID)
	assert.Equal(t, entity.StatusProcessed, stored.Status)
	assert.Equal(t, 0, stored.RetryCount)
	assert.Empty(t, stored.LastError)
}

func TestProcessDocument_WebhookPayloadFields(t *testing.T) {
	f := newOrchestratorFixture(testDocument())
	f.extractor.responses = []extractionOutcome{{data: nil}}

	_, err := f.orch.ProcessDocument(context.Background(), freshRequest())
	require.NoError(t, err)

	require.Len(t, f.extractor.requests, 1)
	sent := f.extractor.requests[0]
	assert.Equal(t, entity.DefaultEvent, sent.Event)
	assert.Equal(t, testUserID, sent.UserID)
	assert.Equal(t, testComp, sent.Competencia)
	assert.Equal(t, testPath, sent.StoragePath)
	assert.Equal(t, "nota-fiscal.pdf", sent.FileName)
	assert.Contains(t, sent.FileURL, "sig=")

	_, tsErr := time.Parse(time.RFC3339, sent.Timestamp)
	assert.NoError(t, tsErr)
}

func TestProcessDocument_FirstFailureSchedulesRetry(t *testing.T) {
	f := newOrchestratorFixture(testDocument())
	f.extractor.responses = []extractionOutcome{
		{err: errors.New("extraction webhook returned status 500")},
	}

	result, err := f.orch.ProcessDocument(context.Background(), freshRequest())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.True(t, result.Retrying)
	assert.Equal(t, 1, result.Attempt)

	doc, _ := f.docs.GetByID(context.Background(), result.DocumentID)
	assert.Equal(t, entity.StatusPendingRetry, doc.Status)
	assert.Equal(t, 1, doc.RetryCount)
	assert.Contains(t, doc.LastError, "attempt 1/5")
	assert.Contains(t, doc.LastError, ErrExtractionFailed.Error())
	assert.Contains(t, result.Error, ErrExtractionFailed.Error())

	require.Len(t, f.scheduler.scheduled, 1)
	assert.Equal(t, doc.ID, f.scheduler.scheduled[0].DocumentID)
	assert.Equal(t, 1, f.scheduler.scheduled[0].Attempt)
	assert.Empty(t, f.notifs.created)
}

func TestProcessDocument_FiveFailuresTerminal(t *testing.T) {
	doc := testDocument()
	f := newOrchestratorFixture(doc)

	var lastResult *ProcessResult
	for i := 0; i < 5; i++ {
		f.extractor.responses = []extractionOutcome{
			{err: fmt.Errorf("extraction webhook returned status 500")},
		}
		req := ProcessRequest{UserID: testUserID, Competencia: testComp, DocumentID: doc.ID}
		if i == 0 {
			req = freshRequest()
		}
		var err error
		lastResult, err = f.orch.ProcessDocument(context.Background(), req)
		require.NoError(t, err)
	}

	stored, _ := f.docs.GetByID(context.Background(), doc.ID)
	assert.Equal(t, entity.StatusError, stored.Status)
	assert.Equal(t, 5, stored.RetryCount)
	assert.Contains(t, stored.LastError, "after 5 attempts")

	assert.False(t, lastResult.Success)
	assert.False(t, lastResult.Retrying)
	assert.Contains(t, lastResult.Error, "max retries")

	// Four retries scheduled, never a fifth.
	assert.Len(t, f.scheduler.scheduled, 4)

	require.Len(t, f.notifs.created, 1)
	notif := f.notifs.created[0]
	assert.Equal(t, testUserID, notif.UserID)
	assert.Equal(t, entity.NotificationTypeProcessingError, notif.Type)
	assert.Contains(t, notif.Message, "suporte")
}

func TestProcessDocument_CounterNeverExceedsMax(t *testing.T) {
	doc := testDocument()
	f := newOrchestratorFixture(doc)

	for i := 0; i < 8; i++ {
		f.extractor.responses = []extractionOutcome{{err: errors.New("boom")}}
		_, err := f.orch.ProcessDocument(context.Background(), ProcessRequest{
			UserID: testUserID, Competencia: testComp, DocumentID: doc.ID,
		})
		require.NoError(t, err)

		stored, _ := f.docs.GetByID(context.Background(), doc.ID)
		assert.LessOrEqual(t, stored.RetryCount, 5)
		assert.Equal(t, stored.Status == entity.StatusError, stored.RetryCount == 5)
	}

	// Only the one terminal notification, even across stray re-failures.
	assert.Len(t, f.notifs.created, 1)
}

func TestProcessDocument_FreshSignedURLPerAttempt(t *testing.T) {
	doc := testDocument()
	f := newOrchestratorFixture(doc)
	f.extractor.responses = []extractionOutcome{
		{err: errors.New("boom")},
		{data: nil},
	}

	_, err := f.orch.ProcessDocument(context.Background(), freshRequest())
	require.NoError(t, err)
	_, err = f.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID: testUserID, Competencia: testComp, DocumentID: doc.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, f.blob.presignCalls)
	require.Len(t, f.extractor.requests, 2)
	assert.NotEqual(t, f.extractor.requests[0].FileURL, f.extractor.requests[1].FileURL)
}

func TestProcessDocument_UnknownDocumentID(t *testing.T) {
	f := newOrchestratorFixture()

	result, err := f.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID:      testUserID,
		Competencia: testComp,
		DocumentID:  "0c9f4b41-0000-4000-8000-000000000000",
	})
	require.ErrorIs(t, err, ErrDocumentNotFound)
	assert.Nil(t, result)
	assert.Zero(t, f.blob.presignCalls)
	assert.Empty(t, f.scheduler.scheduled)
	assert.Empty(t, f.notifs.created)
}

func TestProcessDocument_SignedURLFailureIsFatal(t *testing.T) {
	doc := testDocument()
	f := newOrchestratorFixture(doc)
	f.blob.presignErr = errors.New("bucket unreachable")

	result, err := f.orch.ProcessDocument(context.Background(), freshRequest())
	require.ErrorIs(t, err, ErrSignedURL)
	assert.Nil(t, result)

	// No retry for a minting failure and no status mutation either.
	assert.Empty(t, f.scheduler.scheduled)
	stored, _ := f.docs.GetByID(context.Background(), doc.ID)
	assert.Equal(t, entity.StatusNotProcessed, stored.Status)
	assert.Zero(t, stored.RetryCount)
}

func TestProcessDocument_ScheduleFailureIsBestEffort(t *testing.T) {
	doc := testDocument()
	f := newOrchestratorFixture(doc)
	f.extractor.responses = []extractionOutcome{{err: errors.New("boom")}}
	f.scheduler.err = errors.New("queue unavailable")

	result, err := f.orch.ProcessDocument(context.Background(), freshRequest())
	require.NoError(t, err)
	assert.True(t, result.Retrying)

	stored, _ := f.docs.GetByID(context.Background(), doc.ID)
	assert.Equal(t, entity.StatusPendingRetry, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
}

func TestProcessDocument_StrayInvocationOnProcessedDocument(t *testing.T) {
	// The design does not defend against a stray extra invocation: it
	// reprocesses the record and overwrites the terminal state consistently.
	doc := testDocument()
	doc.Status = entity.StatusProcessed
	f := newOrchestratorFixture(doc)
	f.extractor.responses = []extractionOutcome{{data: json.RawMessage(`{"bar":2}`)}}

	result, err := f.orch.ProcessDocument(context.Background(), ProcessRequest{
		UserID: testUserID, Competencia: testComp, DocumentID: doc.ID,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	stored, _ := f.docs.GetByID(context.Background(), doc.ID)
	assert.Equal(t, entity.StatusProcessed, stored.Status)
	assert.JSONEq(t, `{"bar":2}`, string(stored.ExtractedData))
}

func TestProcessDocument_RetryConflictSurfaces(t *testing.T) {
	doc := testDocument()
	doc.RetryCount = 2
	f := newOrchestratorFixture(doc)
	f.extractor.responses = []extractionOutcome{{err: errors.New("boom")}}

	// Another invocation moves the counter while the webhook call is in
	// flight; the conditional update must lose, not clobber.
	f.extractor.onExtract = func() {
		f.docs.docs[doc.ID].RetryCount = 3
	}

	result, err := f.orch.ProcessDocument(context.Background(), freshRequest())
	require.ErrorIs(t, err, entity.ErrRetryConflict)
	assert.Nil(t, result)

	stored, _ := f.docs.GetByID(context.Background(), doc.ID)
	assert.Equal(t, 3, stored.RetryCount)
	assert.Empty(t, f.scheduler.scheduled)
}

func TestProcessDocument_CustomEventPropagates(t *testing.T) {
	f := newOrchestratorFixture(testDocument())
	f.extractor.responses = []extractionOutcome{{err: errors.New("boom")}}

	req := freshRequest()
	req.Event = "reprocessamento"
	_, err := f.orch.ProcessDocument(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, f.extractor.requests, 1)
	assert.Equal(t, "reprocessamento", f.extractor.requests[0].Event)
	require.Len(t, f.scheduler.scheduled, 1)
	assert.Equal(t, "reprocessamento", f.scheduler.scheduled[0].Event)
}
