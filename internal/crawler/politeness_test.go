package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPolitePause(t *testing.T) {
	t.Parallel()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		delay   time.Duration
		want    bool
		atLeast time.Duration
		atMost  time.Duration
	}{
		{name: "zero delay", ctx: context.Background(), delay: 0, want: true, atMost: time.Second},
		{name: "waits", ctx: context.Background(), delay: 20 * time.Millisecond, want: true, atLeast: 20 * time.Millisecond, atMost: 5 * time.Second},
		{name: "canceled", ctx: canceled, delay: 5 * time.Second, want: false, atMost: time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			start := time.Now()
			require.Equal(t, tt.want, politePause(tt.ctx, tt.delay))
			elapsed := time.Since(start)
			require.GreaterOrEqual(t, elapsed, tt.atLeast)
			require.Less(t, elapsed, tt.atMost)
		})
	}
}
