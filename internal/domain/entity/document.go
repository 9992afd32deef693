package entity

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type ProcessingStatus string

const (
	StatusNotProcessed ProcessingStatus = "not_processed"
	StatusProcessing   ProcessingStatus = "processing"
	StatusProcessed    ProcessingStatus = "processed"
	StatusPendingRetry ProcessingStatus = "pending_retry"
	StatusError        ProcessingStatus = "error"
)

// ErrNotFound is returned by repositories when no matching record exists.
var ErrNotFound = errors.New("record not found")

// ErrRetryConflict is returned when a conditional retry-count update matches
// zero rows, i.e. another invocation already moved the counter.
var ErrRetryConflict = errors.New("retry count changed concurrently")

// ErrInvalidTransition is returned when a status update has no edge in the
// transition table.
var ErrInvalidTransition = errors.New("illegal status transition")

// transitions is the closed set of legal automatic status moves.
// processed and error are terminal: they have no outgoing edges.
var transitions = map[ProcessingStatus][]ProcessingStatus{
	StatusNotProcessed: {StatusProcessing},
	StatusProcessing:   {StatusProcessed, StatusPendingRetry, StatusError},
	StatusPendingRetry: {StatusProcessing},
}

func (s ProcessingStatus) CanTransition(to ProcessingStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ProcessingStatus) Terminal() bool {
	return s == StatusProcessed || s == StatusError
}

// TransitionSources returns the statuses allowed to move to the given one,
// plus the status itself: re-affirming the current status is not a
// transition. Update paths use this as the predicate of a conditional write.
func TransitionSources(to ProcessingStatus) []ProcessingStatus {
	sources := []ProcessingStatus{to}
	for from, nexts := range transitions {
		for _, next := range nexts {
			if next == to {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

type Document struct {
	ID            string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string           `gorm:"not null;type:uuid;index:idx_documents_upload" json:"user_id"`
	Competencia   string           `gorm:"not null;index:idx_documents_upload" json:"competencia"`
	StoragePath   string           `gorm:"not null;index:idx_documents_upload" json:"storage_path"`
	FileName      string           `gorm:"not null" json:"file_name"`
	DocumentType  string           `json:"document_type"`
	Status        ProcessingStatus `gorm:"column:status_processamento;not null;type:text" json:"status_processamento"`
	RetryCount    int              `gorm:"not null;default:0" json:"retry_count"`
	LastError     string           `json:"last_error,omitempty"`
	ExtractedData json.RawMessage  `gorm:"type:jsonb" json:"extracted_data,omitempty"`
	ProcessedAt   *time.Time       `json:"processed_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeletedAt     gorm.DeletedAt   `gorm:"index" json:"-"`
}

// Deletable reports whether the portal may remove this document: only
// terminally failed uploads or ones that already burned at least one retry.
func (d *Document) Deletable() bool {
	return d.Status == StatusError || d.RetryCount >= 1
}
