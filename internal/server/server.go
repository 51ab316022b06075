// Package server exposes an id source over HTTP, gRPC and a framed TCP
// protocol.
package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhukov-alex/snowflake/internal/audit"
	"github.com/zhukov-alex/snowflake/internal/idgen"
)

type Server interface {
	Serve(ctx context.Context, src idgen.Source) error
	Close(ctx context.Context) error
}

var ErrBadCount = errors.New("bad id count")

// Options are shared by every transport.
type Options struct {
	MaxBatch int
	Recorder audit.Recorder
	Metrics  *Metrics
}

func (o Options) withDefaults() Options {
	if o.MaxBatch <= 0 {
		o.MaxBatch = DefaultMaxBatch
	}
	if o.Recorder == nil {
		o.Recorder = audit.Discard{}
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics(false)
	}
	return o
}

// issuer mints ids from a source and reports them to the audit recorder.
type issuer struct {
	src       idgen.Source
	rec       audit.Recorder
	maxBatch  int
	metrics   *Metrics
	transport string
}

func newIssuer(src idgen.Source, opts Options, transport string) *issuer {
	return &issuer{
		src:       src,
		rec:       opts.Recorder,
		maxBatch:  opts.MaxBatch,
		metrics:   opts.Metrics,
		transport: transport,
	}
}

func (i *issuer) one() (idgen.ID, error) {
	id, err := i.src.Next()
	if err != nil {
		i.metrics.incError(i.transport, err)
		return idgen.ID{}, err
	}
	i.rec.Record(id)
	i.metrics.issued.WithLabelValues(i.transport).Inc()
	return id, nil
}

func (i *issuer) many(n int) ([]idgen.ID, error) {
	if n < 1 || n > i.maxBatch {
		err := fmt.Errorf("%w: %d, must be within [1, %d]", ErrBadCount, n, i.maxBatch)
		i.metrics.incError(i.transport, err)
		return nil, err
	}
	ids, err := i.src.NextN(n)
	if err != nil {
		i.metrics.incError(i.transport, err)
		return nil, err
	}
	i.rec.Record(ids...)
	i.metrics.issued.WithLabelValues(i.transport).Add(float64(len(ids)))
	return ids, nil
}
