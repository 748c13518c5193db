package analytics

import "time"

type EventType string

const (
	EventSearch          EventType = "search"
	EventCacheHit        EventType = "cache_hit"
	EventCacheMiss       EventType = "cache_miss"
	EventZeroResult      EventType = "zero_result"
	EventDocumentAdded   EventType = "document_added"
	EventDocumentRemoved EventType = "document_removed"
)

type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Syntax    string    `json:"syntax"`
	Terms     []string  `json:"terms"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

type DocumentEvent struct {
	Type       EventType `json:"type"`
	DocumentID uint64    `json:"document_id"`
	TokenCount int       `json:"token_count"`
	SizeBytes  int       `json:"size_bytes"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// SearchEventType classifies a completed search.
func SearchEventType(totalHits int, cacheHit bool) EventType {
	switch {
	case totalHits == 0:
		return EventZeroResult
	case cacheHit:
		return EventCacheHit
	default:
		return EventCacheMiss
	}
}

func (t EventType) isDocument() bool {
	return t == EventDocumentAdded || t == EventDocumentRemoved
}
