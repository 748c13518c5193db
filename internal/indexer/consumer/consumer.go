// Package consumer reads ingest events from Kafka and adds them to the
// engine, so producers can feed documents without going through the HTTP
// API.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

type Engine interface {
	AddDocument(ctx context.Context, title, body string) (store.Document, error)
	DocumentCount() int
}

// HandleMessage returns a Kafka MessageHandler that adds every ingest event
// to engine. Events that can never succeed (bad JSON, failed validation,
// duplicates) are logged and acknowledged; any other failure is returned
// so the message is not committed.
func HandleMessage(engine Engine, tracker analytics.Tracker, m *metrics.Metrics) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	if tracker == nil {
		tracker = analytics.Nop{}
	}
	return func(ctx context.Context, key []byte, value []byte) error {
		req, err := kafka.DecodeJSON[ingestion.IngestRequest](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if err := validator.ValidateIngestRequest(&req); err != nil {
			logger.Warn("dropping invalid ingest event", "key", string(key), "error", err)
			return nil
		}

		start := time.Now()
		doc, err := engine.AddDocument(ctx, req.Title, req.Body)
		if err != nil {
			if errors.Is(err, apperrors.ErrDuplicate) || errors.Is(err, apperrors.ErrInvalidArgument) {
				logger.Info("skipping ingest event", "key", string(key), "reason", err)
				return nil
			}
			return fmt.Errorf("indexing event %s: %w", key, err)
		}
		latency := time.Since(start)

		if m != nil {
			m.DocsIndexedTotal.Inc()
			m.IndexDocuments.Set(float64(engine.DocumentCount()))
		}
		tracker.Track(analytics.DocumentEvent{
			Type:       analytics.EventDocumentAdded,
			DocumentID: doc.ID,
			TokenCount: doc.Length,
			SizeBytes:  len(doc.Body),
			LatencyMs:  latency.Milliseconds(),
			Timestamp:  time.Now().UTC(),
			RequestID:  string(key),
		})
		logger.Info("document indexed",
			"doc_id", doc.ID,
			"key", string(key),
			"length", doc.Length,
		)
		return nil
	}
}
