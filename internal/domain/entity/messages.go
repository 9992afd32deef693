package entity

import "encoding/json"

// DefaultEvent tags fresh bookkeeping uploads on the extraction webhook.
const DefaultEvent = "arquivos-brutos"

// RetryMessage is published to the delayed-retry queue when an extraction
// attempt fails. The processor service consumes it after the delay elapses
// and re-invokes the orchestrator with the carried document id.
type RetryMessage struct {
	DocumentID  string `json:"document_id"`
	UserID      string `json:"user_id"`
	Competencia string `json:"competencia"`
	FileName    string `json:"file_name"`
	Event       string `json:"event"`
	Attempt     int    `json:"attempt"`
}

// ExtractionRequest is the payload sent to the extraction webhook.
// FileURL is a freshly minted signed URL, valid for the current attempt
// only; StoragePath is the immutable blob key.
type ExtractionRequest struct {
	Event       string `json:"event"`
	DocumentID  string `json:"document_id"`
	UserID      string `json:"user_id"`
	Competencia string `json:"competencia"`
	FileURL     string `json:"file_url"`
	StoragePath string `json:"storage_path"`
	FileName    string `json:"file_name"`
	Timestamp   string `json:"timestamp"`
}

// ExtractionResponse is the webhook's reply body. Any 2xx counts as a
// successful extraction even when ExtractedData is absent.
type ExtractionResponse struct {
	ExtractedData json.RawMessage `json:"extracted_data"`
}
