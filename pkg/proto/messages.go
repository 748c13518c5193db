// Package proto defines the message types exchanged over the JSON-over-TCP
// RPC layer (see pkg/rpc).
package proto

// ---------- Documents ----------

// Document is a stored document as seen by RPC clients.
type Document struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Length      int    `json:"length"`
	ContentHash string `json:"content_hash"`
	CreatedAt   int64  `json:"created_at"`
}

// AddDocumentRequest is the input to DocumentService.Add.
type AddDocumentRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// DocumentRequest identifies a document for DocumentService.Get and
// DocumentService.Remove.
type DocumentRequest struct {
	ID uint64 `json:"id"`
}

// RemoveDocumentResponse confirms a removal.
type RemoveDocumentResponse struct {
	Removed bool `json:"removed"`
}

// ---------- Search ----------

// SearchRequest is the input to SearchService.Search. A zero Limit uses
// the server default; Syntax is "plain" (default) or "boolean".
type SearchRequest struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
	Syntax string `json:"syntax,omitempty"`
}

// SearchResponse is the output of SearchService.Search.
type SearchResponse struct {
	Query     string         `json:"query"`
	TotalHits int            `json:"total_hits"`
	Results   []SearchResult `json:"results"`
	LatencyMs int64          `json:"latency_ms"`
}

// SearchResult is a single scored document in the result set.
type SearchResult struct {
	DocID uint64  `json:"doc_id"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// ---------- Index ----------

// StatsResponse contains index-level statistics.
type StatsResponse struct {
	Documents             int     `json:"documents"`
	Terms                 int     `json:"terms"`
	TotalLength           int64   `json:"total_length"`
	AverageDocumentLength float64 `json:"average_document_length"`
	Generation            uint64  `json:"generation"`
	IndexSizeBytes        int64   `json:"index_size_bytes"`
	LastCheckpoint        int64   `json:"last_checkpoint,omitempty"`
}

// CheckpointResponse reports the checkpoint file written, if any.
type CheckpointResponse struct {
	Written bool   `json:"written"`
	Path    string `json:"path,omitempty"`
}
