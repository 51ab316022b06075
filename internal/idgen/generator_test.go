package idgen_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zhukov-alex/snowflake/internal/idgen"
)

// mockClock is a settable clock for deterministic tests.
type mockClock struct {
	mu  sync.Mutex
	now int64
}

func (m *mockClock) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockClock) Set(now int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// frozenClock returns base for the first frozenReads reads and base+1 after.
type frozenClock struct {
	base        int64
	frozenReads int
	reads       int
}

func (f *frozenClock) Now() int64 {
	f.reads++
	if f.reads > f.frozenReads {
		return f.base + 1
	}
	return f.base
}

func ptr[T any](v T) *T { return &v }

func testConfig(serverID, workerID uint64) idgen.Config {
	return idgen.Config{
		ServerID: ptr(serverID),
		WorkerID: ptr(workerID),
	}
}

func TestGenerator_ConcreteLayout(t *testing.T) {
	clock := &mockClock{now: idgen.DefaultEpoch + 1000}
	g, err := idgen.New(zaptest.NewLogger(t), idgen.Config{
		Epoch:        ptr(int64(1288834974657)),
		ServerID:     ptr(uint64(1)),
		WorkerID:     ptr(uint64(1)),
		SequenceBits: ptr(uint(12)),
		ServerIDBits: ptr(uint(5)),
		WorkerIDBits: ptr(uint(5)),
	}, idgen.WithClock(clock))
	require.NoError(t, err)

	id, err := g.NextID()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000<<22|0<<10|1<<5|1), id)
}

func TestGenerator_NextReturnsEncodedFields(t *testing.T) {
	clock := &mockClock{now: idgen.DefaultEpoch + 5000}
	g, err := idgen.New(zaptest.NewLogger(t), testConfig(3, 7), idgen.WithClock(clock))
	require.NoError(t, err)

	first, err := g.Next()
	require.NoError(t, err)
	second, err := g.Next()
	require.NoError(t, err)

	assert.Equal(t, idgen.DefaultEpoch+5000, first.Timestamp)
	assert.Equal(t, uint64(0), first.Sequence)
	assert.Equal(t, uint64(1), second.Sequence)
	assert.Equal(t, first, g.Layout().Decompose(first.Value))
	assert.Equal(t, second, g.Layout().Decompose(second.Value))
	assert.Equal(t, uint64(3), second.ServerID)
	assert.Equal(t, uint64(7), second.WorkerID)
}

func TestGenerator_NewMillisecondResetsSequence(t *testing.T) {
	clock := &mockClock{now: idgen.DefaultEpoch + 10}
	g, err := idgen.New(zaptest.NewLogger(t), testConfig(1, 1), idgen.WithClock(clock))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := g.Next()
		require.NoError(t, err)
	}
	clock.Set(idgen.DefaultEpoch + 11)

	id, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id.Sequence)
	assert.Equal(t, idgen.DefaultEpoch+11, id.Timestamp)
}

func TestGenerator_SequenceWraparound(t *testing.T) {
	const seqBits = 12
	perMillis := 1 << seqBits
	base := idgen.DefaultEpoch + 42

	// one read in New, one per id in the frozen millisecond, one that wraps
	clock := &frozenClock{base: base, frozenReads: 1 + perMillis + 1}
	cfg := testConfig(1, 1)
	cfg.SequenceBits = ptr(uint(seqBits))

	g, err := idgen.New(zaptest.NewLogger(t), cfg, idgen.WithClock(clock))
	require.NoError(t, err)

	seen := make(map[[2]uint64]struct{}, perMillis+1)
	for i := 0; i < perMillis; i++ {
		id, err := g.Next()
		require.NoError(t, err)
		assert.Equal(t, base, id.Timestamp)
		assert.Equal(t, uint64(i), id.Sequence)
		seen[[2]uint64{uint64(id.Timestamp), id.Sequence}] = struct{}{}
	}

	rolled, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, base+1, rolled.Timestamp)
	assert.Equal(t, uint64(0), rolled.Sequence)

	_, reused := seen[[2]uint64{uint64(rolled.Timestamp), rolled.Sequence}]
	assert.False(t, reused, "timestamp/sequence pair reused")
}

func TestGenerator_ClockRewindRefused(t *testing.T) {
	clock := &mockClock{now: idgen.DefaultEpoch + 2000}
	g, err := idgen.New(zaptest.NewLogger(t), testConfig(1, 1), idgen.WithClock(clock))
	require.NoError(t, err)

	before, err := g.Next()
	require.NoError(t, err)

	clock.Set(idgen.DefaultEpoch + 1995)
	_, err = g.NextID()

	var rewind *idgen.ClockRewindError
	require.True(t, errors.As(err, &rewind))
	assert.Equal(t, 5*time.Millisecond, rewind.Skew)
	assert.True(t, idgen.IsClockRewind(err))

	// state is untouched: the next id in the same millisecond continues the sequence
	clock.Set(idgen.DefaultEpoch + 2000)
	after, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, before.Sequence+1, after.Sequence)
	assert.Greater(t, after.Value, before.Value)
}

func TestGenerator_ClockRewindBoundedWait(t *testing.T) {
	clock := &mockClock{now: idgen.DefaultEpoch + 2000}
	var slept []time.Duration
	sleep := func(d time.Duration) {
		slept = append(slept, d)
		clock.Set(idgen.DefaultEpoch + 2001)
	}

	cfg := testConfig(1, 1)
	cfg.MaxClockBackward = 10 * time.Millisecond
	g, err := idgen.New(zaptest.NewLogger(t), cfg, idgen.WithClock(clock), idgen.WithSleep(sleep))
	require.NoError(t, err)

	_, err = g.Next()
	require.NoError(t, err)

	clock.Set(idgen.DefaultEpoch + 1997)
	id, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{3 * time.Millisecond}, slept)
	assert.Equal(t, idgen.DefaultEpoch+2001, id.Timestamp)

	// beyond the bound there is no wait
	slept = nil
	clock.Set(idgen.DefaultEpoch + 1000)
	_, err = g.Next()
	assert.True(t, idgen.IsClockRewind(err))
	assert.Empty(t, slept)
}

func TestGenerator_ClockRewindWaitStillBehind(t *testing.T) {
	clock := &mockClock{now: idgen.DefaultEpoch + 2000}
	cfg := testConfig(1, 1)
	cfg.MaxClockBackward = 10 * time.Millisecond
	g, err := idgen.New(zaptest.NewLogger(t), cfg, idgen.WithClock(clock), idgen.WithSleep(func(time.Duration) {}))
	require.NoError(t, err)

	_, err = g.Next()
	require.NoError(t, err)

	clock.Set(idgen.DefaultEpoch + 1998)
	_, err = g.Next()

	var rewind *idgen.ClockRewindError
	require.True(t, errors.As(err, &rewind))
	assert.Equal(t, 2*time.Millisecond, rewind.Skew)
}

func TestGenerator_MasksOversizedIDs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	clock := &mockClock{now: idgen.DefaultEpoch + 1}

	serverMask := uint64(1)<<idgen.DefaultServerIDBits - 1
	workerMask := uint64(1)<<idgen.DefaultWorkerIDBits - 1

	g, err := idgen.New(zap.New(core), testConfig(serverMask+5, workerMask+2), idgen.WithClock(clock))
	require.NoError(t, err)

	id, err := g.Next()
	require.NoError(t, err)

	decoded := g.Layout().Decompose(id.Value)
	assert.Equal(t, (serverMask+5)&serverMask, decoded.ServerID)
	assert.Equal(t, (workerMask+2)&workerMask, decoded.WorkerID)
	assert.Equal(t, 1, logs.FilterMessageSnippet("server_id is too long").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("worker_id is too long").Len())
}

func TestGenerator_StrictIDsRejectsOversized(t *testing.T) {
	cfg := testConfig(32, 1)
	cfg.StrictIDs = true

	_, err := idgen.New(zaptest.NewLogger(t), cfg)

	var cfgErr *idgen.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "server_id", cfgErr.Field)
}

func TestGenerator_ConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   idgen.Config
		field string
	}{
		{
			name:  "missing server id",
			cfg:   idgen.Config{},
			field: "server_id",
		},
		{
			name: "too many bits",
			cfg: idgen.Config{
				ServerID:     ptr(uint64(1)),
				SequenceBits: ptr(uint(22)),
				ServerIDBits: ptr(uint(21)),
				WorkerIDBits: ptr(uint(21)),
			},
			field: "bits",
		},
		{
			name: "epoch in the future",
			cfg: idgen.Config{
				ServerID: ptr(uint64(1)),
				Epoch:    ptr(time.Now().Add(time.Hour).UnixMilli()),
			},
			field: "epoch",
		},
		{
			name: "negative clock backward",
			cfg: idgen.Config{
				ServerID:         ptr(uint64(1)),
				MaxClockBackward: -time.Millisecond,
			},
			field: "max_clock_backward",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := idgen.New(zaptest.NewLogger(t), tc.cfg)

			var cfgErr *idgen.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}

	_, err := idgen.New(zaptest.NewLogger(t), idgen.Config{})
	assert.ErrorIs(t, err, idgen.ErrServerIDRequired)
}

func TestGenerator_MaximumBitsAccepted(t *testing.T) {
	cfg := idgen.Config{
		ServerID:     ptr(uint64(1)),
		WorkerID:     ptr(uint64(1)),
		SequenceBits: ptr(uint(21)),
		ServerIDBits: ptr(uint(21)),
		WorkerIDBits: ptr(uint(21)),
	}
	clock := &mockClock{now: idgen.DefaultEpoch}
	g, err := idgen.New(zaptest.NewLogger(t), cfg, idgen.WithClock(clock))
	require.NoError(t, err)
	assert.Equal(t, uint(0), g.Layout().TimestampBits())
}

func TestGenerator_TimestampOverflowAtConstruction(t *testing.T) {
	cfg := idgen.Config{
		ServerID:     ptr(uint64(1)),
		WorkerID:     ptr(uint64(1)),
		SequenceBits: ptr(uint(20)),
		ServerIDBits: ptr(uint(20)),
		WorkerIDBits: ptr(uint(20)),
	}
	clock := &mockClock{now: idgen.DefaultEpoch + 8}

	_, err := idgen.New(zaptest.NewLogger(t), cfg, idgen.WithClock(clock))
	var cfgErr *idgen.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "bits", cfgErr.Field)
	assert.ErrorIs(t, err, idgen.ErrTimestampOverflow)
}

func TestGenerator_TimestampOverflowRefusesToMint(t *testing.T) {
	cfg := idgen.Config{
		ServerID:     ptr(uint64(1)),
		WorkerID:     ptr(uint64(1)),
		SequenceBits: ptr(uint(20)),
		ServerIDBits: ptr(uint(20)),
		WorkerIDBits: ptr(uint(20)),
	}
	clock := &mockClock{now: idgen.DefaultEpoch + 1}
	core, logs := observer.New(zap.ErrorLevel)

	g, err := idgen.New(zap.New(core), cfg, idgen.WithClock(clock))
	require.NoError(t, err)
	require.Equal(t, idgen.DefaultEpoch+7, g.Layout().MaxTimestamp())

	first, err := g.NextID()
	require.NoError(t, err)

	clock.Set(idgen.DefaultEpoch + 7)
	last, err := g.NextID()
	require.NoError(t, err)
	assert.Greater(t, last, first)

	clock.Set(idgen.DefaultEpoch + 9)
	_, err = g.NextID()
	assert.ErrorIs(t, err, idgen.ErrTimestampOverflow)
	assert.Equal(t, 1, logs.FilterMessage("timestamp out of layout range").Len())

	// refusal leaves state intact
	clock.Set(idgen.DefaultEpoch + 7)
	again, err := g.NextID()
	require.NoError(t, err)
	assert.Greater(t, again, last)
}

func TestGenerator_DefaultWorkerID(t *testing.T) {
	g, err := idgen.New(zaptest.NewLogger(t), idgen.Config{ServerID: ptr(uint64(1))})
	require.NoError(t, err)
	assert.LessOrEqual(t, g.WorkerID(), g.Layout().WorkerIDMask())
}

func TestGenerator_NextN(t *testing.T) {
	g, err := idgen.New(zaptest.NewLogger(t), testConfig(1, 1))
	require.NoError(t, err)

	ids, err := g.NextN(100)
	require.NoError(t, err)
	require.Len(t, ids, 100)
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i].Value, ids[i-1].Value)
	}

	_, err = g.NextN(0)
	assert.Error(t, err)
}

func TestGenerator_SequentialUniqueness(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 10M id run in short mode")
	}

	g, err := idgen.New(zaptest.NewLogger(t), testConfig(1, 1))
	require.NoError(t, err)

	// strictly increasing implies distinct
	var prev uint64
	for i := 0; i < 10_000_000; i++ {
		id, err := g.NextID()
		if err != nil {
			t.Fatalf("id %d: %v", i, err)
		}
		if id <= prev {
			t.Fatalf("id %d not increasing: %d <= %d", i, id, prev)
		}
		prev = id
	}
}

func TestGenerator_Concurrency(t *testing.T) {
	g, err := idgen.New(zaptest.NewLogger(t), testConfig(1, 1))
	require.NoError(t, err)

	const (
		numGoroutines = 50
		numIDs        = 2000
	)

	var (
		mu   sync.Mutex
		seen = make(map[uint64]struct{}, numGoroutines*numIDs)
		wg   sync.WaitGroup
	)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uint64, 0, numIDs)
			for j := 0; j < numIDs; j++ {
				id, err := g.NextID()
				if err != nil {
					t.Errorf("concurrent generation failed: %v", err)
					return
				}
				local = append(local, id)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				if _, dup := seen[id]; dup {
					t.Errorf("duplicate id generated: %d", id)
				}
				seen[id] = struct{}{}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, numGoroutines*numIDs)
}
