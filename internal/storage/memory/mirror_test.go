package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMirrorPutObject(t *testing.T) {
	t.Parallel()

	m := NewMirror()
	uri, err := m.PutObject(context.Background(), "snapshots/index.zst", "application/zstd", bytes.NewReader([]byte("payload")))
	require.NoError(t, err)
	require.Equal(t, "mem://snapshots/index.zst", uri)

	data, ok := m.Object("snapshots/index.zst")
	require.True(t, ok)
	require.Equal(t, []byte("payload"), data)
	data[0] = 'X'
	again, _ := m.Object("snapshots/index.zst")
	require.Equal(t, []byte("payload"), again)
	require.Equal(t, 1, m.Len())

	_, err = m.PutObject(context.Background(), " ", "", bytes.NewReader(nil))
	require.Error(t, err)
	_, ok = m.Object("missing")
	require.False(t, ok)
}
