// Package search answers ranked queries against an index.Store.
package search

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/roosearch/internal/index"
	"github.com/JakeFAU/roosearch/internal/ranker"
	"github.com/JakeFAU/roosearch/internal/tokenizer"
)

var (
	// ErrEmptyQuery is returned for a blank query string.
	ErrEmptyQuery = errors.New("query is required")
	// ErrInvalidInput is returned for structurally invalid paging arguments.
	ErrInvalidInput = errors.New("invalid search input")
)

// DefaultPageSize is used by callers that do not pick one.
const DefaultPageSize = 10

// Result is one ranked hit.
type Result struct {
	URL       string  `json:"url"`
	Title     string  `json:"title,omitempty"`
	Score     float64 `json:"score"`
	Snippet   Snippet `json:"snippet"`
	Positions []int   `json:"positions,omitempty"` // ascending token offsets of every query term match
}

// Results is one page of hits.
type Results struct {
	Results      []Result `json:"results"`
	TotalResults int      `json:"totalResults"`
	CurrentPage  int      `json:"currentPage"`
	TotalPages   int      `json:"totalPages"`
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSnippetWindow sets the snippet length in tokens.
func WithSnippetWindow(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.window = size
		}
	}
}

// Engine scores and paginates matches and builds snippets.
type Engine struct {
	store  *index.Store
	logger *zap.Logger
	window int
}

// New builds an Engine over store.
func New(store *index.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: zap.NewNop(),
		window: DefaultSnippetWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type candidate struct {
	url       string
	score     float64
	positions []int
}

// Search ranks every document containing at least one query term by
// rank(url) * (1 + sum of tf*idf), highest first with ties ordered by URL.
// A page outside [1, TotalPages] yields an empty slice.
func (e *Engine) Search(ctx context.Context, query string, page, pageSize int) (Results, error) {
	if strings.TrimSpace(query) == "" {
		return Results{}, ErrEmptyQuery
	}
	if pageSize < 1 {
		return Results{}, ErrInvalidInput
	}

	terms := tokenizer.QueryTerms(query)
	n := e.store.DocumentCount()
	relevance := make(map[string]float64)
	positions := make(map[string][]int)
	for _, term := range terms {
		postings := e.store.Postings(term)
		weights := ranker.Weigh(n, postings)
		for url := range weights.TF {
			relevance[url] += weights.Weight(url)
		}
		for _, p := range postings {
			positions[p.URL] = append(positions[p.URL], p.Position)
		}
	}
	candidates := make([]candidate, 0, len(relevance))
	for url, rel := range relevance {
		candidates = append(candidates, candidate{
			url:       url,
			score:     e.store.Rank(url) * (1 + rel),
			positions: positions[url],
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].url < candidates[j].url
	})

	total := len(candidates)
	out := Results{
		Results:      []Result{},
		TotalResults: total,
		CurrentPage:  page,
		TotalPages:   (total + pageSize - 1) / pageSize,
	}
	if page < 1 || page > out.TotalPages {
		return out, nil
	}
	start := (page - 1) * pageSize
	end := min(start+pageSize, total)
	for _, c := range candidates[start:end] {
		if err := ctx.Err(); err != nil {
			return Results{}, err
		}
		out.Results = append(out.Results, e.result(c, terms))
	}
	return out, nil
}

func (e *Engine) result(c candidate, terms []string) Result {
	res := Result{URL: c.url, Score: c.score, Positions: c.positions}
	slices.Sort(res.Positions)
	if doc, err := e.store.Document(c.url); err == nil {
		res.Title = doc.Title
	}
	text, err := e.store.Text(c.url)
	if err != nil {
		e.logger.Warn("snippet unavailable", zap.String("url", c.url), zap.Error(err))
		res.Snippet = placeholder()
		return res
	}
	res.Snippet = BuildSnippet(text, terms, e.window)
	return res
}

// Lucky returns up to n random indexed URLs with a zero score and the
// placeholder snippet.
func (e *Engine) Lucky(n int) Results {
	urls := e.store.RandomURLs(n)
	out := Results{Results: make([]Result, 0, len(urls)), TotalResults: len(urls)}
	if len(urls) > 0 {
		out.CurrentPage, out.TotalPages = 1, 1
	}
	for _, url := range urls {
		res := Result{URL: url, Snippet: placeholder()}
		if doc, err := e.store.Document(url); err == nil {
			res.Title = doc.Title
		}
		out.Results = append(out.Results, res)
	}
	return out
}
