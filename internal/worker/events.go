package worker

// ReindexTask asks the reindex consumer to re-run the ingestion pipeline
// for one registered document.
type ReindexTask struct {
	DocumentID    string `json:"document_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// IngestResultEvent announces the outcome of one pipeline run.
type IngestResultEvent struct {
	DocumentID       string   `json:"document_id"`
	OriginalFilename string   `json:"original_filename"`
	Status           string   `json:"status"`
	Category         string   `json:"category,omitempty"`
	StoredChunks     int      `json:"stored_chunks"`
	FailedSteps      []string `json:"failed_steps,omitempty"`
	CorrelationID    string   `json:"correlation_id,omitempty"`
}
