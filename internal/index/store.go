// Package index owns the searchable state of the engine: the inverted index
// (term to postings), the document store (URL to compressed text and
// metadata), the inbound link graph, and the current PageRank vector.
//
// A Store is safe for concurrent use. Writes for different URLs run in
// parallel up to the final merge; writes for the same URL are serialized.
// Readers always receive copies, so a posting list is observed either before
// or after an append, never in between.
package index

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/roosearch/internal/tokenizer"
)

var (
	// ErrNotFound is returned when a URL has no document record.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidURL is returned when a write names an empty URL.
	ErrInvalidURL = errors.New("url is required")
	// ErrDecode marks snapshot or document payloads that cannot be decoded.
	ErrDecode = errors.New("decode failure")
)

// DefaultRank is the authority assumed for a URL with no computed rank.
const DefaultRank = 1.0

const urlLockStripes = 64

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used by the store.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for IndexedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the in-memory index. Construct it with New and release it with
// Close.
type Store struct {
	mu       sync.RWMutex
	postings map[string][]Posting
	docs     map[string]docRecord
	docTerms map[string][]string
	inbound  map[string]map[string]struct{}
	ranks    map[string]float64

	urlLocks   [urlLockStripes]sync.Mutex
	generation atomic.Uint64

	codec  *codec
	logger *zap.Logger
	now    func() time.Time
}

// New constructs an empty Store.
func New(opts ...Option) (*Store, error) {
	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	s := &Store{
		codec:  c,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.resetLocked()
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases compression resources. The store must not be used after.
func (s *Store) Close() {
	s.codec.close()
}

// IndexDocument tokenizes text, replaces any previous postings for url with
// the new ones, and stores the compressed text, word count and title.
func (s *Store) IndexDocument(url, title, text string) (Document, error) {
	if url == "" {
		return Document{}, ErrInvalidURL
	}
	lock := s.urlLock(url)
	lock.Lock()
	defer lock.Unlock()

	words := tokenizer.Tokenize(text)
	positions := make(map[string][]int)
	terms := make([]string, 0)
	for pos, word := range words {
		if tokenizer.IsStopWord(word) {
			continue
		}
		if _, ok := positions[word]; !ok {
			terms = append(terms, word)
		}
		positions[word] = append(positions[word], pos)
	}
	rec := docRecord{
		Text:      s.codec.compress([]byte(text)),
		WordCount: len(words),
		Title:     title,
		IndexedAt: s.now(),
	}

	s.mu.Lock()
	s.removePostingsLocked(url)
	for _, term := range terms {
		list := s.postings[term]
		for _, pos := range positions[term] {
			list = append(list, Posting{URL: url, Position: pos})
		}
		s.postings[term] = list
	}
	s.docs[url] = rec
	s.docTerms[url] = terms
	s.mu.Unlock()
	s.generation.Add(1)

	s.logger.Debug("document indexed",
		zap.String("url", url),
		zap.Int("words", rec.WordCount),
		zap.Int("terms", len(terms)),
	)
	return rec.document(url), nil
}

// removePostingsLocked drops every posting for url. Caller holds s.mu.
func (s *Store) removePostingsLocked(url string) {
	for _, term := range s.docTerms[url] {
		list := s.postings[term]
		kept := make([]Posting, 0, len(list))
		for _, p := range list {
			if p.URL != url {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			delete(s.postings, term)
			continue
		}
		s.postings[term] = kept
	}
	delete(s.docTerms, url)
}

// AddLinkEdge records that from links to to. Repeated edges are ignored.
func (s *Store) AddLinkEdge(from, to string) error {
	if from == "" || to == "" {
		return ErrInvalidURL
	}
	s.mu.Lock()
	set, ok := s.inbound[to]
	if !ok {
		set = make(map[string]struct{})
		s.inbound[to] = set
	}
	_, exists := set[from]
	if !exists {
		set[from] = struct{}{}
	}
	s.mu.Unlock()
	if !exists {
		s.generation.Add(1)
	}
	return nil
}

// Postings returns a copy of the posting list for term.
func (s *Store) Postings(term string) []Posting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.postings[term]
	if len(list) == 0 {
		return nil
	}
	out := make([]Posting, len(list))
	copy(out, list)
	return out
}

// Document returns the metadata stored for url.
func (s *Store) Document(url string) (Document, error) {
	s.mu.RLock()
	rec, ok := s.docs[url]
	s.mu.RUnlock()
	if !ok {
		return Document{}, fmt.Errorf("%s: %w", url, ErrNotFound)
	}
	return rec.document(url), nil
}

// Text decompresses and returns the stored text for url.
func (s *Store) Text(url string) (string, error) {
	s.mu.RLock()
	rec, ok := s.docs[url]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%s: %w", url, ErrNotFound)
	}
	raw, err := s.codec.decompress(rec.Text)
	if err != nil {
		return "", fmt.Errorf("document %s: %w: %w", url, ErrDecode, err)
	}
	return string(raw), nil
}

// URLs returns every indexed URL in lexical order.
func (s *Store) URLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.docs)
}

// Inbound returns the sorted set of URLs linking to url.
func (s *Store) Inbound(url string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.inbound[url])
}

// Rank returns the PageRank of url, or DefaultRank when none was computed.
func (s *Store) Rank(url string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.ranks[url]; ok {
		return r
	}
	return DefaultRank
}

// Ranks returns a copy of the rank vector.
func (s *Store) Ranks() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.ranks))
	for k, v := range s.ranks {
		out[k] = v
	}
	return out
}

// UpdateRanks holds the store exclusively while compute runs over a frozen
// copy of the link graph, then replaces the rank vector with its result. No
// index mutation can interleave with the computation.
func (s *Store) UpdateRanks(compute func(Graph) map[string]float64) {
	s.mu.Lock()
	graph := s.graphLocked()
	ranks := compute(graph)
	s.ranks = make(map[string]float64, len(ranks))
	for k, v := range ranks {
		s.ranks[k] = v
	}
	s.mu.Unlock()
	s.generation.Add(1)
}

// Graph returns a frozen copy of the link graph over indexed URLs.
func (s *Store) Graph() Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graphLocked()
}

func (s *Store) graphLocked() Graph {
	g := Graph{
		Nodes:   sortedKeys(s.docs),
		Inbound: make(map[string][]string, len(s.docs)),
	}
	for _, to := range g.Nodes {
		var from []string
		for src := range s.inbound[to] {
			if _, ok := s.docs[src]; ok {
				from = append(from, src)
			}
		}
		sort.Strings(from)
		g.Inbound[to] = from
	}
	return g
}

// DocumentCount returns the number of indexed documents.
func (s *Store) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// TermCount returns the number of distinct terms with postings.
func (s *Store) TermCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.postings)
}

// Stats summarizes the index size.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	links := 0
	for _, from := range s.inbound {
		links += len(from)
	}
	return Stats{
		TermCount:     len(s.postings),
		DocumentCount: len(s.docs),
		LinkCount:     links,
	}
}

// Generation changes whenever the index, link graph or ranks change. It is
// suitable as a cache-busting key.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// RandomURLs returns up to n distinct indexed URLs chosen uniformly at
// random.
func (s *Store) RandomURLs(n int) []string {
	if n <= 0 {
		return nil
	}
	urls := s.URLs()
	rand.Shuffle(len(urls), func(i, j int) { urls[i], urls[j] = urls[j], urls[i] })
	if n < len(urls) {
		urls = urls[:n]
	}
	return urls
}

// Reset empties the store.
func (s *Store) Reset() {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()
	s.generation.Add(1)
}

func (s *Store) resetLocked() {
	s.postings = make(map[string][]Posting)
	s.docs = make(map[string]docRecord)
	s.docTerms = make(map[string][]string)
	s.inbound = make(map[string]map[string]struct{})
	s.ranks = make(map[string]float64)
}

func (s *Store) urlLock(url string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(url))
	return &s.urlLocks[h.Sum32()%urlLockStripes]
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
