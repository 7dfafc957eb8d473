package session

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/imagedb/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestNewGeneratorSeedsSmallValues(t *testing.T) {
	testlog.Start(t)

	for i := 0; i < 50; i++ {
		g := NewGenerator()
		require.Less(t, g.CurrentTimestamp(), uint32(seedRange))
		require.LessOrEqual(t, g.NextSequence(), uint32(seedRange))
	}
}

func TestNextSequenceIncrements(t *testing.T) {
	testlog.Start(t)

	g := NewGenerator(WithStart(10, 0))
	require.Equal(t, uint32(11), g.NextSequence())
	require.Equal(t, uint32(12), g.NextSequence())
}

func TestCurrentTimestampDoesNotAdvance(t *testing.T) {
	testlog.Start(t)

	g := NewGenerator(WithStart(0, 500))
	require.Equal(t, uint32(500), g.CurrentTimestamp())
	require.Equal(t, uint32(500), g.CurrentTimestamp())
	require.Equal(t, uint32(501), g.Tick())
	require.Equal(t, uint32(501), g.CurrentTimestamp())
}

func TestOverflowResetsToSeed(t *testing.T) {
	testlog.Start(t)

	g := NewGenerator(
		WithSeedFunc(func() uint32 { return 7 }),
		WithStart(math.MaxUint32, math.MaxUint32),
	)
	require.Equal(t, uint32(7), g.NextSequence())
	require.Equal(t, uint32(8), g.NextSequence())
	require.Equal(t, uint32(7), g.Tick())

	g = NewGenerator(WithStart(math.MaxUint32-1, 0))
	require.Equal(t, uint32(math.MaxUint32), g.NextSequence())
}

func TestNextSequenceConcurrentNoLostUpdates(t *testing.T) {
	testlog.Start(t)

	g := NewGenerator(WithStart(0, 0))
	const workers, per = 16, 500

	var mu sync.Mutex
	seen := make(map[uint32]struct{}, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uint32, 0, per)
			for i := 0; i < per; i++ {
				local = append(local, g.NextSequence())
			}
			mu.Lock()
			for _, v := range local {
				seen[v] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, workers*per)
	require.Equal(t, uint32(workers*per+1), g.NextSequence())
}

func TestRunTicksUntilCancelled(t *testing.T) {
	testlog.Start(t)

	g := NewGenerator(WithStart(0, 100), WithInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	require.Eventually(t, func() bool { return g.CurrentTimestamp() > 100 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("generator did not stop")
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)

	cfg := Config{ReadTimeout: -1}.WithDefaults()
	def := DefaultConfig()
	require.Equal(t, def.ConnectTimeout, cfg.ConnectTimeout)
	require.Equal(t, time.Duration(-1), cfg.ReadTimeout)
	require.True(t, Deadline(cfg.ReadTimeout).IsZero())
	require.False(t, Deadline(cfg.WriteTimeout).IsZero())
	require.Equal(t, def.Limits, cfg.Limits)
}
