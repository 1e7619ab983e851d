package config

const (
	// TopicReindex is the NSQ topic for document reindex tasks.
	TopicReindex = "ingest.reindex"

	// TopicIngestResult is the NSQ topic for ingestion results (success/failure).
	TopicIngestResult = "ingest.result"
)
