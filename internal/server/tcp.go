package server

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhukov-alex/snowflake/internal/idgen"
)

const transportTCP = "tcp"

// Status byte sent ahead of every TCP response.
const (
	StatusOK          byte = 0x00
	StatusBadRequest  byte = 0x01
	StatusClockRewind byte = 0x02
	StatusInternal    byte = 0x03
)

var countBufPool = sync.Pool{
	New: func() any { return make([]byte, 4) },
}

var respBufPool = sync.Pool{
	New: func() any { return make([]byte, 0, 1+8*256) },
}

// TCPServer speaks a framed binary protocol. A request is a 4-byte
// little-endian id count; the response is a status byte followed, on
// success, by count 8-byte big-endian ids.
type TCPServer struct {
	cfg       *TCPConfig
	opts      Options
	metrics   *Metrics
	listener  net.Listener
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	ready     chan struct{}
	logger    *zap.Logger
}

func NewTCPServer(logger *zap.Logger, cfg *TCPConfig, opts Options) *TCPServer {
	opts = opts.withDefaults()
	return &TCPServer{
		cfg:     cfg,
		opts:    opts,
		metrics: opts.Metrics,
		ready:   make(chan struct{}),
		logger:  logger,
	}
}

func (s *TCPServer) Serve(ctx context.Context, src idgen.Source) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := net.Listen("tcp", s.cfg.BindAddr)
	if err != nil {
		close(s.ready)
		return err
	}
	s.listener = listener
	close(s.ready)

	go func() {
		<-s.ctx.Done()
		_ = listener.Close()
	}()

	iss := newIssuer(src, s.opts, transportTCP)
	sem := make(chan struct{}, s.cfg.MaxConnections)
	s.logger.Info("TCP server started", zap.String("addr", listener.Addr().String()))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.ctx.Err() != nil {
				return nil // graceful shutdown
			}

			s.logger.Error("tcp accept failed", zap.Error(err))
			s.metrics.incTransportError(transportTCP)
			continue
		}

		select {
		case sem <- struct{}{}:
			s.wg.Add(1)
			go func(c net.Conn) {
				defer func() {
					<-sem
					s.wg.Done()
				}()
				s.handleTCPConn(c, iss)
			}(conn)
		default:
			s.logger.Warn("too many connections - rejecting client")
			conn.Close()
		}
	}
}

// Addr waits for Serve to bind and returns the address, or nil if binding
// failed.
func (s *TCPServer) Addr() net.Addr {
	<-s.ready
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *TCPServer) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.logger.Info("TCPServer shutting down...")

		if s.cancel != nil {
			s.cancel()
		}
		if s.listener != nil {
			if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
				err = cerr
			}
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			s.logger.Info("TCPServer shutdown complete")
		case <-ctx.Done():
			err = ctx.Err()
			s.logger.Warn("TCPServer shutdown timeout", zap.Error(err))
		}
	})
	return err
}

func (s *TCPServer) handleTCPConn(conn net.Conn, iss *issuer) {
	defer conn.Close()

	logger := s.logger.With(zap.String("method", "handleTCPConn"))

	for {
		select {
		case <-s.ctx.Done():
			logger.Info("context canceled - closing connection")
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))

		countBuf := countBufPool.Get().([]byte)
		_, err := io.ReadFull(conn, countBuf)
		count := binary.LittleEndian.Uint32(countBuf)
		countBufPool.Put(countBuf)

		if err != nil {
			if os.IsTimeout(err) {
				logger.Warn("timeout reading count")
				s.metrics.incTransportError(transportTCP)
			} else if err != io.EOF {
				logger.Error("read count error", zap.Error(err))
				s.metrics.incTransportError(transportTCP)
			}
			return
		}

		startTime := time.Now()

		resp := respBufPool.Get().([]byte)[:0]
		ids, err := iss.many(int(count))
		if err != nil {
			resp = append(resp, statusFor(err))
		} else {
			resp = append(resp, StatusOK)
			for _, id := range ids {
				resp = binary.BigEndian.AppendUint64(resp, id.Value)
			}
		}

		_ = conn.SetWriteDeadline(time.Now().Add(1 * time.Second))
		_, werr := conn.Write(resp)
		respBufPool.Put(resp)
		if werr != nil {
			logger.Error("failed to write response", zap.Error(werr))
			s.metrics.incTransportError(transportTCP)
			return
		}

		s.metrics.latency.WithLabelValues(transportTCP).Observe(time.Since(startTime).Seconds())
	}
}

func statusFor(err error) byte {
	switch {
	case errors.Is(err, ErrBadCount):
		return StatusBadRequest
	case idgen.IsClockRewind(err):
		return StatusClockRewind
	default:
		return StatusInternal
	}
}
