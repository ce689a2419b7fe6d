package frontier

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrontierFIFOAndDedup(t *testing.T) {
	t.Parallel()

	f := New()
	require.Equal(t, 2, f.Enqueue("http://a", "http://b", "http://a", ""))
	require.Equal(t, 2, f.Len())

	require.Equal(t, []string{"http://a"}, f.DispatchBatch(1))
	require.True(t, f.Seen("http://a"))
	require.Zero(t, f.Enqueue("http://a"), "dispatched URLs must not be queued again")

	require.Equal(t, 1, f.Enqueue("http://c"))
	require.Equal(t, []string{"http://b", "http://c"}, f.DispatchBatch(10))
	require.Empty(t, f.DispatchBatch(3))
	require.Nil(t, f.DispatchBatch(0))
	require.Equal(t, 3, f.SeenCount())
}

func TestFrontierMarkSeenDropsQueuedCopy(t *testing.T) {
	t.Parallel()

	f := New()
	f.Enqueue("http://a", "http://b")
	require.True(t, f.MarkSeen("http://a"))
	require.False(t, f.MarkSeen("http://a"))
	require.False(t, f.MarkSeen(""))
	require.Equal(t, []string{"http://b"}, f.DispatchBatch(5))
}

func TestFrontierDropPendingKeepsSeen(t *testing.T) {
	t.Parallel()

	f := New()
	f.Enqueue("http://a", "http://b", "http://c")
	require.Equal(t, []string{"http://a"}, f.DispatchBatch(1))

	require.Equal(t, 2, f.DropPending())
	require.Zero(t, f.Len())
	require.Empty(t, f.DispatchBatch(5))
	require.Zero(t, f.DropPending())

	require.Equal(t, 1, f.Enqueue("http://a", "http://b"))
	require.Equal(t, []string{"http://b"}, f.DispatchBatch(5))
	require.Equal(t, 2, f.SeenCount())
}

func TestFrontierConcurrentDispatchExactlyOnce(t *testing.T) {
	t.Parallel()

	f := New()
	const distinct = 200
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < distinct; i++ {
				f.Enqueue(fmt.Sprintf("http://host/%d", i))
			}
		}()
	}
	wg.Wait()

	var (
		mu     sync.Mutex
		counts = make(map[string]int)
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				batch := f.DispatchBatch(3)
				if len(batch) == 0 {
					return
				}
				mu.Lock()
				for _, u := range batch {
					counts[u]++
				}
				mu.Unlock()
				// Rediscovering a URL after dispatch must be a no-op.
				f.Enqueue(batch...)
			}
		}()
	}
	wg.Wait()

	require.Len(t, counts, distinct)
	for u, n := range counts {
		require.Equalf(t, 1, n, "url %s dispatched %d times", u, n)
	}
}
