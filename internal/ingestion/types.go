// Package ingestion defines the request/response types and Kafka event
// schema used by the record ingestion gateway: the HTTP-facing write path
// that sits in front of internal/recordstore and feeds internal/ingest.
package ingestion

// WriteRequest is the JSON body accepted by the record write HTTP endpoint.
// Value is the full replacement value for the record at the request's path;
// partial updates are not supported, matching internal/recordstore.Store.Put.
type WriteRequest struct {
	Value map[string]any `json:"value"`
}

// WriteResponse is returned to the caller after a record write or delete is
// accepted.
type WriteResponse struct {
	Path   string `json:"path"`
	Status string `json:"status"`
}

// RecordUpdate is the Kafka message payload produced after a record is
// persisted in (or removed from) the surrounding database and is ready for
// indexing. Field names mirror internal/ingest.RecordUpdate, the
// consumer-side counterpart that decodes this exact shape off the wire.
type RecordUpdate struct {
	Path     string         `json:"path"`
	OldValue map[string]any `json:"oldValue"`
	NewValue map[string]any `json:"newValue"`
}
