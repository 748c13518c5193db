package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	// maxRequestBytes admits a maximal body and title even when every byte
	// is JSON-escaped as \u00XX, or every title rune as a surrogate pair.
	maxRequestBytes = 6*validator.MaxBodyLength + 12*validator.MaxTitleLength + 1024
)

// Documents is the document side of the engine.
type Documents interface {
	AddDocument(ctx context.Context, title, body string) (store.Document, error)
	RemoveDocument(ctx context.Context, id uint64) error
	GetDocument(id uint64) (store.Document, error)
	Documents(offset, limit int) []store.Document
	DocumentCount() int
}

type Handler struct {
	docs    Documents
	tracker analytics.Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates the document API handler. tracker and m may be nil.
func New(docs Documents, tracker analytics.Tracker, m *metrics.Metrics) *Handler {
	if tracker == nil {
		tracker = analytics.Nop{}
	}
	return &Handler{
		docs:    docs,
		tracker: tracker,
		metrics: m,
		logger:  slog.Default().With("component", "ingestion-handler"),
	}
}

// Ingest serves POST /api/v1/documents.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.IngestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngestRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.docs.AddDocument(ctx, req.Title, req.Body)
	if err != nil {
		h.writeAppError(ctx, w, "ingestion failed", err)
		return
	}
	latency := time.Since(start)
	log.Info("document ingested",
		"doc_id", doc.ID,
		"length", doc.Length,
		"latency_ms", latency.Milliseconds(),
	)
	if h.metrics != nil {
		h.metrics.DocsIndexedTotal.Inc()
		h.metrics.IndexDocuments.Set(float64(h.docs.DocumentCount()))
	}
	h.tracker.Track(analytics.DocumentEvent{
		Type:       analytics.EventDocumentAdded,
		DocumentID: doc.ID,
		TokenCount: doc.Length,
		SizeBytes:  len(doc.Body),
		LatencyMs:  latency.Milliseconds(),
		Timestamp:  time.Now().UTC(),
		RequestID:  logger.RequestID(ctx),
	})
	h.writeJSON(w, http.StatusCreated, ingestion.IngestResponse{
		DocumentID: doc.ID,
		Status:     "indexed",
		Length:     doc.Length,
	})
}

// List serves GET /api/v1/documents?offset=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		h.writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, err := intParam(r, "limit", defaultListLimit)
	if err != nil || limit < 1 {
		h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	limit = min(limit, maxListLimit)

	docs := h.docs.Documents(offset, limit)
	summaries := make([]ingestion.DocumentSummary, 0, len(docs))
	for _, d := range docs {
		summaries = append(summaries, ingestion.Summarize(d))
	}
	h.writeJSON(w, http.StatusOK, ingestion.DocumentList{
		Documents: summaries,
		Total:     h.docs.DocumentCount(),
		Offset:    offset,
		Limit:     limit,
	})
}

// Get serves GET /api/v1/documents/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	doc, err := h.docs.GetDocument(id)
	if err != nil {
		h.writeAppError(r.Context(), w, "document lookup failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// Delete serves DELETE /api/v1/documents/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.docs.RemoveDocument(ctx, id); err != nil {
		h.writeAppError(ctx, w, "document removal failed", err)
		return
	}
	logger.FromContext(ctx).Info("document removed", "doc_id", id)
	if h.metrics != nil {
		h.metrics.DocsRemovedTotal.Inc()
		h.metrics.IndexDocuments.Set(float64(h.docs.DocumentCount()))
	}
	h.tracker.Track(analytics.DocumentEvent{
		Type:       analytics.EventDocumentRemoved,
		DocumentID: id,
		Timestamp:  time.Now().UTC(),
		RequestID:  logger.RequestID(ctx),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		h.writeError(w, http.StatusBadRequest, "document id must be a positive integer")
		return 0, false
	}
	return id, true
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func (h *Handler) writeAppError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(ctx).Error(msg, "error", err, "status_code", status)
		h.writeError(w, status, msg)
		return
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
