// Package audit ships a log of issued ids to an output in batches, off the
// issuing path.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/zhukov-alex/snowflake/internal/idgen"
	"github.com/zhukov-alex/snowflake/internal/output"
	"github.com/zhukov-alex/snowflake/internal/record"
)

// Recorder is told about every id handed out. Record must not block.
type Recorder interface {
	Record(ids ...idgen.ID)
}

// Service defines the interface for the audit service.
type Service interface {
	Recorder
	Start(ctx context.Context) error
	Close(ctx context.Context) error
}

// Discard is the Recorder used when auditing is disabled.
type Discard struct{}

func (Discard) Record(...idgen.ID) {}

type ServiceImpl struct {
	cfg       Config
	key       string
	output    output.Output
	inCh      chan idgen.ID
	outCh     chan output.Batch
	metrics   *metrics
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
	logger    *zap.Logger
}

// New creates an audit service. key identifies the generator and is used as
// the partitioning key of every shipped batch.
func New(logger *zap.Logger, cfg Config, key string, out output.Output, registerMetrics bool) *ServiceImpl {
	return &ServiceImpl{
		cfg:     cfg,
		key:     key,
		output:  out,
		inCh:    make(chan idgen.ID, cfg.BufferSize),
		outCh:   make(chan output.Batch, 1),
		metrics: initMetrics(registerMetrics),
		logger:  logger,
	}
}

func (s *ServiceImpl) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.logger.Info("starting audit service",
		zap.String("key", s.key),
		zap.Int("batch_size", s.cfg.BatchSize),
		zap.Duration("flush_interval", s.cfg.FlushInterval),
	)

	s.wg.Add(2)
	go func() { defer s.wg.Done(); s.dispatchLoop() }()
	go func() { defer s.wg.Done(); s.run() }()

	return nil
}

// Record queues ids for auditing, dropping what does not fit in the buffer.
func (s *ServiceImpl) Record(ids ...idgen.ID) {
	for _, id := range ids {
		select {
		case s.inCh <- id:
		default:
			s.metrics.dropped.Inc()
		}
	}
}

func (s *ServiceImpl) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.logger.Info("audit service shutting down...")

		if s.cancel != nil {
			s.cancel()
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			s.logger.Info("audit service shutdown complete.")
		case <-ctx.Done():
			err = ctx.Err()
			s.logger.Warn("audit service shutdown timeout", zap.Error(err))
		}
	})
	return err
}

func (s *ServiceImpl) run() {
	logger := s.logger.With(zap.String("method", "run"))
	defer close(s.outCh)

	tickerChan, ticker := makeTickerChan(s.cfg.FlushInterval)
	if ticker != nil {
		defer ticker.Stop()
	}

	var batch []output.Message

	flush := func() bool {
		if len(batch) == 0 {
			return true
		}
		select {
		case s.outCh <- output.Batch{Messages: batch, Key: s.key}:
			batch = nil
			return true
		case <-s.ctx.Done():
			return false
		}
	}

	for {
		select {
		case id := <-s.inCh:
			payload, err := json.Marshal(record.FromID(id))
			if err != nil {
				logger.Error("marshal audit record", zap.Error(err))
				continue
			}
			batch = append(batch, output.Message{
				ID:      record.FormatID(id.Value),
				Payload: payload,
			})

			if len(batch) >= s.cfg.BatchSize && !flush() {
				logger.Warn("discarding pending audit records", zap.Int("count", len(batch)))
				return
			}

		case <-tickerChan:
			if !flush() {
				logger.Warn("discarding pending audit records", zap.Int("count", len(batch)))
				return
			}

		case <-s.ctx.Done():
			if pending := len(batch) + len(s.inCh); pending > 0 {
				logger.Warn("discarding pending audit records", zap.Int("count", pending))
			}
			return
		}
	}
}

func (s *ServiceImpl) dispatchLoop() {
	logger := s.logger.With(zap.String("method", "dispatchLoop"))

	var curBatch *output.Batch
	var retryDelay time.Duration
	const maxDelay = 3 * time.Second

	for {
		if curBatch == nil {
			select {
			case <-s.ctx.Done():
				return
			case b, ok := <-s.outCh:
				if !ok {
					return
				}
				curBatch = &b
				retryDelay = 0
			}
			continue
		}

		select {
		case <-s.ctx.Done():
			return
		default:
		}

		stopBatchTimer := s.metrics.batchTimer()
		if err := s.output.SendBatch(s.ctx, *curBatch); err != nil {
			logger.Error("send audit batch failed", zap.Error(err), zap.Int("size", len(curBatch.Messages)))
			s.metrics.sendErrors.Inc()
			retryDelay = nextBackoff(retryDelay, maxDelay)
			select {
			case <-time.After(retryDelay):
				continue
			case <-s.ctx.Done():
				return
			}
		}
		stopBatchTimer()
		logger.Debug("audit batch sent", zap.Int("size", len(curBatch.Messages)))

		curBatch = nil
	}
}
