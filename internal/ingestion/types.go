// Package ingestion defines the request and response types of the document
// API.
package ingestion

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
)

// IngestRequest is the JSON body accepted by POST /api/v1/documents.
type IngestRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// IngestResponse is returned once a document is stored and searchable.
type IngestResponse struct {
	DocumentID uint64 `json:"document_id"`
	Status     string `json:"status"`
	Length     int    `json:"length"`
}

// DocumentSummary is a document without its body, used in listings.
type DocumentSummary struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Length      int       `json:"length"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// DocumentList is the response of GET /api/v1/documents.
type DocumentList struct {
	Documents []DocumentSummary `json:"documents"`
	Total     int               `json:"total"`
	Offset    int               `json:"offset"`
	Limit     int               `json:"limit"`
}

func Summarize(doc store.Document) DocumentSummary {
	return DocumentSummary{
		ID:          doc.ID,
		Title:       doc.Title,
		Length:      doc.Length,
		ContentHash: doc.ContentHash,
		CreatedAt:   doc.CreatedAt,
	}
}
