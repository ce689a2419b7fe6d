package search

import (
	"strings"

	"github.com/JakeFAU/roosearch/internal/tokenizer"
)

// PlaceholderSnippet is shown when a document's text cannot be read back.
const PlaceholderSnippet = "No snippet available."

// DefaultSnippetWindow is the snippet length in tokens.
const DefaultSnippetWindow = 20

// Word is one token of a snippet. Match marks query terms for highlighting.
type Word struct {
	Word  string `json:"word"`
	Match bool   `json:"match"`
}

// Snippet is a window of a document's token stream. Ellipsis is set when the
// window stops before the end of the document.
type Snippet struct {
	Words    []Word `json:"words"`
	Ellipsis bool   `json:"ellipsis"`
	Text     string `json:"text"`
}

func placeholder() Snippet {
	return Snippet{Words: []Word{}, Text: PlaceholderSnippet}
}

// BuildSnippet picks the window of size tokens that holds the most distinct
// query terms. Among equally good windows it prefers one where the first
// match has a neighbour on both sides (or touches the document edge), then
// the earliest.
func BuildSnippet(text string, terms []string, size int) Snippet {
	if size <= 0 {
		size = DefaultSnippetWindow
	}
	words := tokenizer.Tokenize(text)
	query := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		query[t] = struct{}{}
	}

	start := bestWindow(words, query, size)
	end := min(start+size, len(words))
	out := Snippet{Words: make([]Word, 0, end-start), Ellipsis: end < len(words)}
	for _, w := range words[start:end] {
		_, match := query[w]
		out.Words = append(out.Words, Word{Word: w, Match: match})
	}
	out.Text = strings.Join(words[start:end], " ")
	if out.Ellipsis {
		out.Text += " ..."
	}
	return out
}

func bestWindow(words []string, query map[string]struct{}, size int) int {
	if len(words) <= size || len(query) == 0 {
		return 0
	}
	counts := make(map[string]int, len(query))
	distinct := 0
	add := func(w string, delta int) {
		if _, ok := query[w]; !ok {
			return
		}
		before := counts[w]
		counts[w] += delta
		switch {
		case before == 0 && counts[w] > 0:
			distinct++
		case before > 0 && counts[w] == 0:
			distinct--
		}
	}
	for _, w := range words[:size] {
		add(w, 1)
	}

	best, bestCount, bestContext := 0, distinct, hasContext(words, query, 0, size)
	for start := 1; start+size <= len(words); start++ {
		add(words[start-1], -1)
		add(words[start+size-1], 1)
		if distinct < bestCount {
			continue
		}
		framed := hasContext(words, query, start, size)
		if distinct > bestCount || (framed && !bestContext) {
			best, bestCount, bestContext = start, distinct, framed
		}
	}
	return best
}

// hasContext reports whether the first match in the window has a token on
// each side inside the window, or sits on the document boundary.
func hasContext(words []string, query map[string]struct{}, start, size int) bool {
	end := start + size
	for i := start; i < end; i++ {
		if _, ok := query[words[i]]; !ok {
			continue
		}
		left := i > start || i == 0
		right := i < end-1 || i == len(words)-1
		return left && right
	}
	return false
}
