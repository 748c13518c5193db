package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{}},
		{"only separators", " ,.;--!! ", []string{}},
		{"lowercases and splits", "The Quick, brown FOX!", []string{"the", "quick", "brown", "fox"}},
		{"collapses separator runs", "rome---carthage...punic   wars", []string{"rome", "carthage", "punic", "wars"}},
		{"keeps digits", "xyzzy123 in 1066AD", []string{"xyzzy123", "in", "1066ad"}},
		{"unicode letters", "Zürich café", []string{"zürich", "café"}},
		{"single letters kept", "a b c", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(Options{}).Terms(tt.in))
		})
	}
}

func TestTokenizePositions(t *testing.T) {
	tokens := Tokenize("fox, fox; dog")
	assert.Equal(t, []Token{
		{Term: "fox", Position: 0},
		{Term: "fox", Position: 1},
		{Term: "dog", Position: 2},
	}, tokens)
}

func TestTokenizeIsDeterministic(t *testing.T) {
	text := "The Byzantine Empire, also referred to as the Eastern Roman Empire."
	assert.Equal(t, Tokenize(text), Tokenize(text))
}

func TestTokenizeOptions(t *testing.T) {
	t.Run("stop words removed", func(t *testing.T) {
		tok := New(Options{StopWords: true})
		assert.Equal(t, []string{"quick", "fox"}, tok.Terms("the quick and the fox"))
	})

	t.Run("stemming", func(t *testing.T) {
		tok := New(Options{Stem: true})
		assert.Equal(t, tok.Terms("running"), tok.Terms("runs"))
	})

	t.Run("minimum length", func(t *testing.T) {
		tok := New(Options{MinLength: 3})
		assert.Equal(t, []string{"cat", "sat"}, tok.Terms("a cat sat on it"))
	})
}

func TestDistinct(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, Distinct([]string{"b", "a", "b", "c", "a"}))
	assert.Empty(t, Distinct(nil))
}

func TestSignature(t *testing.T) {
	assert.Equal(t, New(Options{}).Signature(), New(Options{MinLength: 1}).Signature())
	assert.Equal(t, New(Options{Stem: true}).Signature(), New(Options{Stem: true}).Signature())
	assert.NotEqual(t, New(Options{}).Signature(), New(Options{Stem: true}).Signature())
	assert.NotEqual(t, New(Options{}).Signature(), New(Options{StopWords: true}).Signature())
	assert.NotEqual(t, New(Options{}).Signature(), New(Options{MinLength: 2}).Signature())
}
