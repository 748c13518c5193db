// Package validator checks document requests before they reach the store.
// It enforces title and body length constraints and returns per-field
// error details.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
)

const (
	MaxTitleLength = 1024
	MaxBodyLength  = 1 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest checks the title and body lengths. An empty title
// is allowed; the body must contain something other than whitespace.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	if utf8.RuneCountInString(req.Title) > MaxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d characters", MaxTitleLength)
	}
	if strings.TrimSpace(req.Body) == "" {
		errs["body"] = "body is required and must not be empty"
	} else if len(req.Body) > MaxBodyLength {
		errs["body"] = fmt.Sprintf("body must be at most %d bytes", MaxBodyLength)
	}
	if !utf8.ValidString(req.Title) || !utf8.ValidString(req.Body) {
		errs["encoding"] = "title and body must be valid UTF-8"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
