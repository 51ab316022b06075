// Package idgen mints 64-bit Snowflake ids from a server id, a worker id
// and a millisecond clock.
package idgen

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Source is what the transports need from a generator.
type Source interface {
	Next() (ID, error)
	NextN(n int) ([]ID, error)
	Layout() Layout
}

// Generator produces unique, time-ordered ids. It is safe for concurrent use.
type Generator struct {
	layout      Layout
	serverID    uint64
	workerID    uint64
	maxBackward time.Duration
	clock       Clock
	sleep       func(time.Duration)
	metrics     *metrics
	logger      *zap.Logger

	mu            sync.Mutex
	lastTimestamp int64
	sequence      uint64
}

type Option func(*Generator)

func WithClock(c Clock) Option {
	return func(g *Generator) { g.clock = c }
}

// WithSleep replaces time.Sleep in the clock rewind wait.
func WithSleep(fn func(time.Duration)) Option {
	return func(g *Generator) { g.sleep = fn }
}

// WithMetrics registers the generator's prometheus collectors.
func WithMetrics(register bool) Option {
	return func(g *Generator) { g.metrics = initMetrics(register) }
}

// New validates cfg and builds a generator. Server and worker ids wider than
// their bit fields are masked down and logged, unless cfg.StrictIDs is set.
func New(logger *zap.Logger, cfg Config, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Generator{
		layout:      cfg.Layout(),
		maxBackward: cfg.MaxClockBackward,
		clock:       SystemClock{},
		sleep:       time.Sleep,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = initMetrics(false)
	}

	now := g.clock.Now()
	if g.layout.Epoch > now {
		return nil, &ConfigError{
			Field: "epoch",
			Err:   fmt.Errorf("epoch %d is in the future (now %d)", g.layout.Epoch, now),
		}
	}
	if limit := g.layout.MaxTimestamp(); now > limit {
		return nil, &ConfigError{
			Field: "bits",
			Err: fmt.Errorf("%w: %d timestamp bits end at %d, now %d",
				ErrTimestampOverflow, g.layout.TimestampBits(), limit, now),
		}
	}

	workerID := uint64(unix.Getpid())
	if cfg.WorkerID != nil {
		workerID = *cfg.WorkerID
	}

	var err error
	if g.serverID, err = g.fitID("server_id", *cfg.ServerID, g.layout.ServerIDMask(), cfg.StrictIDs); err != nil {
		return nil, err
	}
	if g.workerID, err = g.fitID("worker_id", workerID, g.layout.WorkerIDMask(), cfg.StrictIDs); err != nil {
		return nil, err
	}

	logger.Info("id generator ready",
		zap.Int64("epoch", g.layout.Epoch),
		zap.Uint64("server_id", g.serverID),
		zap.Uint64("worker_id", g.workerID),
		zap.Uint("sequence_bits", g.layout.SequenceBits),
		zap.Uint("server_id_bits", g.layout.ServerIDBits),
		zap.Uint("worker_id_bits", g.layout.WorkerIDBits),
		zap.Uint("timestamp_bits", g.layout.TimestampBits()),
	)
	return g, nil
}

func (g *Generator) fitID(field string, v, mask uint64, strict bool) (uint64, error) {
	if v <= mask {
		return v, nil
	}
	if strict {
		return 0, &ConfigError{Field: field, Err: fmt.Errorf("%d does not fit in mask %d", v, mask)}
	}
	g.logger.Warn(field+" is too long, should be cut off",
		zap.Uint64(field, v),
		zap.Uint64("mask", mask),
		zap.Uint64("effective", v&mask),
	)
	return v & mask, nil
}

func (g *Generator) Layout() Layout   { return g.layout }
func (g *Generator) ServerID() uint64 { return g.serverID }
func (g *Generator) WorkerID() uint64 { return g.workerID }

// NextID returns the next id.
func (g *Generator) NextID() (uint64, error) {
	id, err := g.Next()
	if err != nil {
		return 0, err
	}
	return id.Value, nil
}

// Next returns the next id along with the fields encoded in it.
func (g *Generator) Next() (ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.next()
}

// NextN returns n ids minted under a single lock acquisition.
func (g *Generator) NextN(n int) ([]ID, error) {
	if n <= 0 {
		return nil, fmt.Errorf("count must be > 0, got %d", n)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]ID, 0, n)
	for i := 0; i < n; i++ {
		id, err := g.next()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// next must be called with g.mu held.
func (g *Generator) next() (ID, error) {
	now := g.clock.Now()

	if now < g.lastTimestamp {
		var err error
		if now, err = g.waitForClock(now); err != nil {
			return ID{}, err
		}
	}

	if err := g.checkRange(now); err != nil {
		return ID{}, err
	}

	if now == g.lastTimestamp {
		prev := g.sequence
		g.sequence = (g.sequence + 1) & g.layout.SequenceMask()
		if g.sequence == 0 {
			g.metrics.sequenceExhausted.Inc()
			for now <= g.lastTimestamp {
				now = g.clock.Now()
			}
			if err := g.checkRange(now); err != nil {
				g.sequence = prev
				return ID{}, err
			}
		}
	} else {
		g.sequence = 0
	}

	g.lastTimestamp = now
	g.metrics.ids.Inc()

	return ID{
		Value:     g.layout.Compose(now, g.sequence, g.serverID, g.workerID),
		Timestamp: now,
		Sequence:  g.sequence,
		ServerID:  g.serverID & g.layout.ServerIDMask(),
		WorkerID:  g.workerID & g.layout.WorkerIDMask(),
	}, nil
}

// checkRange refuses timestamps past the layout's timestamp field.
func (g *Generator) checkRange(now int64) error {
	limit := g.layout.MaxTimestamp()
	if now <= limit {
		return nil
	}
	g.logger.Error("timestamp out of layout range",
		zap.Int64("now", now),
		zap.Int64("max_timestamp", limit),
		zap.Uint("timestamp_bits", g.layout.TimestampBits()),
	)
	return fmt.Errorf("%w: now %d, max %d", ErrTimestampOverflow, now, limit)
}

// waitForClock sleeps once for a rewind no larger than maxBackward and
// re-reads the clock. State is left untouched when it gives up.
func (g *Generator) waitForClock(now int64) (int64, error) {
	skew := time.Duration(g.lastTimestamp-now) * time.Millisecond
	if skew <= g.maxBackward {
		g.metrics.clockRewindWaits.Inc()
		g.sleep(skew)
		now = g.clock.Now()
		if now >= g.lastTimestamp {
			return now, nil
		}
		skew = time.Duration(g.lastTimestamp-now) * time.Millisecond
	}

	g.metrics.clockRewinds.Inc()
	g.logger.Warn("clock moved backwards",
		zap.Int64("last_timestamp", g.lastTimestamp),
		zap.Int64("now", now),
		zap.Duration("skew", skew),
	)
	return 0, &ClockRewindError{Skew: skew}
}
