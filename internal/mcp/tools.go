package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultLimit = 10

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"the search query"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	Syntax string `json:"syntax,omitempty" jsonschema:"plain (default) or boolean to honour AND, OR and NOT"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results   []SearchResultOutput `json:"results"`
	Count     int                  `json:"count"`
	TotalHits int                  `json:"total_hits"`
}

type SearchResultOutput struct {
	DocumentID uint64  `json:"document_id"`
	Title      string  `json:"title"`
	URI        string  `json:"uri"`
	Score      float64 `json:"score"`
}

// GetDocumentInput is the input schema for the get_document tool.
type GetDocumentInput struct {
	DocumentID uint64 `json:"document_id" jsonschema:"id of the document to fetch"`
}

// DocumentOutput is a full stored document.
type DocumentOutput struct {
	DocumentID uint64 `json:"document_id"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	Body       string `json:"body"`
	Length     int    `json:"length"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Rank stored documents against a query with BM25",
	}, s.handleSearch)
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_document",
		Description: "Fetch the title and body of a stored document",
	}, s.handleGetDocument)
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, s.maxResults)

	var boolean bool
	switch input.Syntax {
	case "", "plain":
	case "boolean":
		boolean = true
	default:
		return nil, SearchOutput{}, fmt.Errorf("unknown syntax %q", input.Syntax)
	}

	result, err := s.engine.Execute(ctx, s.engine.Plan(input.Query, boolean), limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results:   make([]SearchResultOutput, 0, len(result.Results)),
		Count:     len(result.Results),
		TotalHits: result.TotalHits,
	}
	for _, r := range result.Results {
		item := SearchResultOutput{
			DocumentID: r.DocID,
			URI:        documentURI(r.DocID),
			Score:      r.Score,
		}
		if doc, err := s.engine.GetDocument(r.DocID); err == nil {
			item.Title = doc.Title
		}
		output.Results = append(output.Results, item)
	}
	return nil, output, nil
}

func (s *Server) handleGetDocument(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input GetDocumentInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	doc, err := s.engine.GetDocument(input.DocumentID)
	if err != nil {
		return nil, DocumentOutput{}, err
	}
	return nil, DocumentOutput{
		DocumentID: doc.ID,
		Title:      doc.Title,
		URI:        documentURI(doc.ID),
		Body:       doc.Body,
		Length:     doc.Length,
	}, nil
}
