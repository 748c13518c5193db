// Package parser turns raw query strings into query plans.
//
// Plain queries match any term (OR). The boolean syntax understands the
// upper-case operators AND, OR and NOT; lower-case "and", "or" and "not"
// are ordinary terms. Without an explicit operator boolean queries
// default to AND, and the last AND/OR in the query decides the plan type.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer/tokenizer"
)

type QueryType int

const (
	QueryAND QueryType = iota
	QueryOR
)

func (t QueryType) String() string {
	if t == QueryOR {
		return "OR"
	}
	return "AND"
}

func (t QueryType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

type QueryPlan struct {
	Terms        []string  `json:"terms"`
	Type         QueryType `json:"type"`
	ExcludeTerms []string  `json:"exclude_terms,omitempty"`
	RawQuery     string    `json:"raw_query"`
}

// Empty reports whether the plan has no positive term to match.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

// Plain builds an OR plan over the distinct terms of query.
func Plain(tok *tokenizer.Tokenizer, query string) *QueryPlan {
	return &QueryPlan{
		Terms:        tokenizer.Distinct(tok.Terms(query)),
		Type:         QueryOR,
		ExcludeTerms: make([]string, 0),
		RawQuery:     query,
	}
}

// Parse builds a plan from the boolean query syntax.
func Parse(tok *tokenizer.Tokenizer, query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
		Type:         QueryAND,
		RawQuery:     query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	words := strings.Fields(query)
	excludeNext := false
	for i := 0; i < len(words); i++ {
		switch words[i] {
		case "AND":
			plan.Type = QueryAND
			continue
		case "OR":
			plan.Type = QueryOR
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		terms := tok.Terms(words[i])
		if len(terms) == 0 {
			continue
		}
		if excludeNext {
			plan.ExcludeTerms = append(plan.ExcludeTerms, terms...)
			excludeNext = false
		} else {
			plan.Terms = append(plan.Terms, terms...)
		}
	}
	plan.Terms = tokenizer.Distinct(plan.Terms)
	plan.ExcludeTerms = tokenizer.Distinct(plan.ExcludeTerms)
	return plan
}
