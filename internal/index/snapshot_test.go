package index

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T, s *Store) {
	t.Helper()
	docs := map[string]string{
		"http://a/": "rocket science for everyone",
		"http://b/": "the rocket lands on the moon",
		"http://c/": "moon cheese",
	}
	for u, text := range docs {
		_, err := s.IndexDocument(u, "title "+u, text)
		require.NoError(t, err)
	}
	require.NoError(t, s.AddLinkEdge("http://a/", "http://b/"))
	require.NoError(t, s.AddLinkEdge("http://c/", "http://b/"))
	s.UpdateRanks(func(Graph) map[string]float64 {
		return map[string]float64{"http://a/": 0.2, "http://b/": 0.6, "http://c/": 0.2}
	})
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	src := newTestStore(t)
	seedStore(t, src)
	path := filepath.Join(t.TempDir(), "data", "index.zst")
	data, err := src.Snapshot(path)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, data, onDisk)
	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	require.Empty(t, leftovers)

	dst := newTestStore(t)
	require.NoError(t, dst.Restore(path))
	require.Equal(t, src.Stats(), dst.Stats())
	require.Equal(t, src.URLs(), dst.URLs())
	require.Equal(t, src.Ranks(), dst.Ranks())
	require.Equal(t, src.Graph(), dst.Graph())
	for _, term := range []string{"rocket", "moon", "cheese", "science"} {
		require.Equal(t, src.Postings(term), dst.Postings(term), term)
	}
	text, err := dst.Text("http://b/")
	require.NoError(t, err)
	require.Equal(t, "the rocket lands on the moon", text)
	doc, err := dst.Document("http://c/")
	require.NoError(t, err)
	require.Equal(t, "title http://c/", doc.Title)

	// Re-indexing after restore must still replace postings.
	_, err = dst.IndexDocument("http://c/", "", "no dairy here")
	require.NoError(t, err)
	require.Equal(t, []Posting{{URL: "http://b/", Position: 5}}, dst.Postings("moon"))
}

func TestSnapshotPayloadLayout(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seedStore(t, s)
	var buf bytes.Buffer
	require.NoError(t, s.Encode(&buf))

	raw, err := s.codec.decompress(buf.Bytes())
	require.NoError(t, err)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"invertedIndex", "documentStore", "linkGraph", "pageRank", "version"} {
		require.Contains(t, fields, key)
	}
	var docs map[string]map[string]any
	require.NoError(t, json.Unmarshal(fields["documentStore"], &docs))
	require.IsType(t, "", docs["http://a/"]["encodedText"], "binary text is base64 encoded")
}

func TestRestoreMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seedStore(t, s)
	require.NoError(t, s.Restore(filepath.Join(t.TempDir(), "absent.zst")))
	require.Zero(t, s.DocumentCount())
	require.Zero(t, s.TermCount())
}

func TestRestoreCorruptLeavesStoreEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload func(s *Store) []byte
	}{
		{
			name:    "not compressed",
			payload: func(*Store) []byte { return []byte("garbage") },
		},
		{
			name:    "not json",
			payload: func(s *Store) []byte { return s.codec.compress([]byte("{{{")) },
		},
		{
			name: "wrong version",
			payload: func(s *Store) []byte {
				return s.codec.compress([]byte(`{"version":99}`))
			},
		},
		{
			name: "mixed shapes under one key",
			payload: func(s *Store) []byte {
				return s.codec.compress([]byte(`{"version":1,"invertedIndex":{"rocket":{"url":"http://a/"}}}`))
			},
		},
		{
			name: "dangling posting",
			payload: func(s *Store) []byte {
				return s.codec.compress([]byte(
					`{"version":1,"invertedIndex":{"rocket":[{"url":"http://gone/","position":0}]}}`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestStore(t)
			seedStore(t, s)
			path := filepath.Join(t.TempDir(), "index.zst")
			require.NoError(t, os.WriteFile(path, tt.payload(s), 0o600))

			err := s.Restore(path)
			require.ErrorIs(t, err, ErrDecode)
			require.Zero(t, s.DocumentCount())
			require.Zero(t, s.TermCount())
			require.Empty(t, s.Ranks())
		})
	}
}

func TestSnapshotWriteFailureKeepsIndex(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	seedStore(t, s)
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := s.Snapshot(filepath.Join(blocker, "index.zst"))
	require.Error(t, err)
	require.Equal(t, 3, s.DocumentCount())
}
