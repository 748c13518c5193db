// Package tokenizer provides text tokenisation for the search engine.
// By default it lower-cases input and splits on non-alphanumeric
// boundaries. Stop-word removal, Snowball stemming and a minimum term
// length can be switched on through Options.
package tokenizer

import (
	"fmt"
	"hash/crc32"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Options tunes normalisation. The zero value keeps every term exactly as
// lower-cased and split.
type Options struct {
	StopWords bool
	Stem      bool
	MinLength int
}

// Tokenizer is safe for concurrent use; it holds no mutable state.
type Tokenizer struct {
	opts Options
}

var plain = New(Options{})

func New(opts Options) *Tokenizer {
	if opts.MinLength < 1 {
		opts.MinLength = 1
	}
	return &Tokenizer{opts: opts}
}

// Signature identifies the normalisation this tokenizer applies. Two
// tokenizers with equal signatures produce identical terms for any input.
func (t *Tokenizer) Signature() uint32 {
	desc := fmt.Sprintf("stop=%t stem=%t min=%d", t.opts.StopWords, t.opts.Stem, t.opts.MinLength)
	return crc32.ChecksumIEEE([]byte(desc))
}

// Tokenize breaks text into lowercased Tokens using the default options.
func Tokenize(text string) []Token {
	return plain.Tokenize(text)
}

// Tokenize breaks text into normalised Tokens. Positions are consecutive
// ordinals of the emitted terms.
func (t *Tokenizer) Tokenize(text string) []Token {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, isBoundary)
	tokens := make([]Token, 0, len(words))
	pos := 0
	for _, word := range words {
		if t.opts.StopWords {
			if _, isStop := stopWords[word]; isStop {
				continue
			}
		}
		if t.opts.Stem {
			word = english.Stem(word, false)
		}
		if word == "" || len([]rune(word)) < t.opts.MinLength {
			continue
		}
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Terms returns only the term strings of Tokenize, in order.
func (t *Tokenizer) Terms(text string) []string {
	tokens := t.Tokenize(text)
	terms := make([]string, len(tokens))
	for i, tok := range tokens {
		terms[i] = tok.Term
	}
	return terms
}

// Distinct returns terms with duplicates removed, keeping first-seen order.
func Distinct(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

func isBoundary(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
