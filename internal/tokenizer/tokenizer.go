// Package tokenizer turns free text into normalized search terms. The index
// and the query engine both go through this package so that scores computed
// on either side stay comparable.
package tokenizer

import (
	"strings"
	"unicode"
)

// Token is a normalized term together with its position in the full token
// stream of the source text.
type Token struct {
	Term     string
	Position int
}

// Tokenize lowercases text and splits it on runs of non-word runes. Letters,
// digits and underscores are word runes; everything else separates tokens.
// Empty tokens are never returned.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), isSeparator)
}

// Terms tokenizes text and drops stop words. Positions are taken from the
// unfiltered stream, so a stop word still advances the position counter.
func Terms(text string) []Token {
	words := Tokenize(text)
	out := make([]Token, 0, len(words))
	for pos, word := range words {
		if IsStopWord(word) {
			continue
		}
		out = append(out, Token{Term: word, Position: pos})
	}
	return out
}

// QueryTerms returns the distinct non-stop-word terms of a query in the order
// they first appear.
func QueryTerms(query string) []string {
	tokens := Terms(query)
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok.Term]; ok {
			continue
		}
		seen[tok.Term] = struct{}{}
		out = append(out, tok.Term)
	}
	return out
}

// IsStopWord reports whether term is in the English stop-word list.
func IsStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}
