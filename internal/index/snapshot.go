package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const snapshotVersion = 1

// snapshotPayload is the decompressed layout of a snapshot file. Each key
// holds exactly one shape: postings are always lists, documents always live
// under documentStore.
type snapshotPayload struct {
	Version       int                  `json:"version"`
	InvertedIndex map[string][]Posting `json:"invertedIndex"`
	DocumentStore map[string]docRecord `json:"documentStore"`
	LinkGraph     map[string][]string  `json:"linkGraph"`
	PageRank      map[string]float64   `json:"pageRank"`
}

// Encode writes the compressed snapshot of the store to w. The store is held
// in read mode for the duration, so concurrent writers wait.
func (s *Store) Encode(w io.Writer) error {
	s.mu.RLock()
	payload := snapshotPayload{
		Version:       snapshotVersion,
		InvertedIndex: s.postings,
		DocumentStore: s.docs,
		LinkGraph:     make(map[string][]string, len(s.inbound)),
		PageRank:      s.ranks,
	}
	for to, from := range s.inbound {
		payload.LinkGraph[to] = sortedKeys(from)
	}
	raw, err := json.Marshal(payload)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if _, err := w.Write(s.codec.compress(raw)); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Decode replaces the store contents with the snapshot read from r. The new
// state is built aside and swapped in only when the whole payload decoded;
// on any failure the store is left empty and an ErrDecode error returned.
func (s *Store) Decode(r io.Reader) error {
	compressed, err := io.ReadAll(r)
	if err != nil {
		s.Reset()
		return fmt.Errorf("read snapshot: %w", err)
	}
	state, err := s.decodeState(compressed)
	if err != nil {
		s.Reset()
		return err
	}
	s.mu.Lock()
	s.postings = state.postings
	s.docs = state.docs
	s.docTerms = state.docTerms
	s.inbound = state.inbound
	s.ranks = state.ranks
	s.mu.Unlock()
	s.generation.Add(1)
	return nil
}

type storeState struct {
	postings map[string][]Posting
	docs     map[string]docRecord
	docTerms map[string][]string
	inbound  map[string]map[string]struct{}
	ranks    map[string]float64
}

func (s *Store) decodeState(compressed []byte) (storeState, error) {
	raw, err := s.codec.decompress(compressed)
	if err != nil {
		return storeState{}, fmt.Errorf("snapshot: %w: %w", ErrDecode, err)
	}
	var payload snapshotPayload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return storeState{}, fmt.Errorf("snapshot: %w: %w", ErrDecode, err)
	}
	if payload.Version != snapshotVersion {
		return storeState{}, fmt.Errorf("snapshot: %w: unsupported version %d", ErrDecode, payload.Version)
	}

	state := storeState{
		postings: make(map[string][]Posting, len(payload.InvertedIndex)),
		docs:     make(map[string]docRecord, len(payload.DocumentStore)),
		docTerms: make(map[string][]string, len(payload.DocumentStore)),
		inbound:  make(map[string]map[string]struct{}, len(payload.LinkGraph)),
		ranks:    make(map[string]float64, len(payload.PageRank)),
	}
	for url, rec := range payload.DocumentStore {
		if url == "" {
			return storeState{}, fmt.Errorf("snapshot: %w: document with empty url", ErrDecode)
		}
		state.docs[url] = rec
	}
	for term, list := range payload.InvertedIndex {
		if term == "" || len(list) == 0 {
			return storeState{}, fmt.Errorf("snapshot: %w: empty term or posting list", ErrDecode)
		}
		for _, p := range list {
			if _, ok := state.docs[p.URL]; !ok {
				return storeState{}, fmt.Errorf("snapshot: %w: posting for %q references unknown document %q",
					ErrDecode, term, p.URL)
			}
			terms := state.docTerms[p.URL]
			if len(terms) == 0 || terms[len(terms)-1] != term {
				state.docTerms[p.URL] = append(terms, term)
			}
		}
		state.postings[term] = append([]Posting(nil), list...)
	}
	for to, from := range payload.LinkGraph {
		set := make(map[string]struct{}, len(from))
		for _, src := range from {
			if src == "" {
				return storeState{}, fmt.Errorf("snapshot: %w: empty link source", ErrDecode)
			}
			set[src] = struct{}{}
		}
		state.inbound[to] = set
	}
	for url, rank := range payload.PageRank {
		state.ranks[url] = rank
	}
	return state, nil
}

// Snapshot writes the compressed store to path atomically: the payload is
// written to a temporary file in the same directory, synced, then renamed
// over path. The compressed bytes are returned for mirroring.
func (s *Store) Snapshot(path string) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return nil, err
	}
	s.logger.Info("snapshot saved", zap.String("path", path), zap.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

// Restore loads the snapshot at path. A missing file leaves the store empty
// and is not an error.
func (s *Store) Restore(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config.
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.Reset()
			s.logger.Info("no snapshot found, starting with an empty index", zap.String("path", path))
			return nil
		}
		s.Reset()
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	if err := s.Decode(f); err != nil {
		s.logger.Error("snapshot restore failed", zap.String("path", path), zap.Error(err))
		return err
	}
	s.logger.Info("snapshot restored", zap.String("path", path), zap.Int("documents", s.DocumentCount()))
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
