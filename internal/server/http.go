package server

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/zhukov-alex/snowflake/internal/idgen"
	"github.com/zhukov-alex/snowflake/internal/record"
)

const transportHTTP = "http"

type HTTPServer struct {
	cfg     *HTTPConfig
	opts    Options
	app     *fiber.App
	issuer  *issuer
	layout  idgen.Layout
	logger  *zap.Logger
	metrics *Metrics
}

func NewHTTPServer(logger *zap.Logger, cfg *HTTPConfig, opts Options) *HTTPServer {
	opts = opts.withDefaults()
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
	})

	return &HTTPServer{
		cfg:     cfg,
		opts:    opts,
		app:     app,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

func (s *HTTPServer) Serve(ctx context.Context, src idgen.Source) error {
	s.mount(src)

	go func() {
		<-ctx.Done()
		_ = s.app.Shutdown()
	}()

	s.logger.Info("HTTP server started", zap.String("addr", s.cfg.BindAddr))
	return s.app.Listen(s.cfg.BindAddr)
}

func (s *HTTPServer) Close(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down...")
	return s.app.ShutdownWithContext(ctx)
}

func (s *HTTPServer) mount(src idgen.Source) {
	s.issuer = newIssuer(src, s.opts, transportHTTP)
	s.layout = src.Layout()

	s.app.Use(recover.New())
	s.app.Use(s.logRequests)

	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	s.app.Get("/id", s.handleID)
	s.app.Get("/ids", s.handleIDs)
	s.app.Get("/decode/:id", s.handleDecode)
}

func (s *HTTPServer) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.metrics.latency.WithLabelValues(transportHTTP).Observe(time.Since(start).Seconds())

	s.logger.Debug("http request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("latency", time.Since(start)),
	)
	return err
}

func (s *HTTPServer) handleID(c *fiber.Ctx) error {
	id, err := s.issuer.one()
	if err != nil {
		return s.sendError(c, err)
	}

	rec := record.FromID(id)
	if c.Query("format") == "text" {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(rec.Text())
	}
	return c.JSON(rec)
}

func (s *HTTPServer) handleIDs(c *fiber.Ctx) error {
	count := 1
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return s.sendJSONError(c, fiber.StatusBadRequest, "count must be an integer")
		}
		count = n
	}

	ids, err := s.issuer.many(count)
	if err != nil {
		return s.sendError(c, err)
	}
	return c.JSON(record.FromIDs(ids))
}

func (s *HTTPServer) handleDecode(c *fiber.Ctx) error {
	v, err := record.ParseID(c.Params("id"))
	if err != nil {
		return s.sendJSONError(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(record.Decode(s.layout.Decompose(v)))
}

func (s *HTTPServer) sendError(c *fiber.Ctx, err error) error {
	var rewind *idgen.ClockRewindError
	switch {
	case errors.As(err, &rewind):
		retry := int(math.Ceil(rewind.Skew.Seconds()))
		if retry < 1 {
			retry = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
		return s.sendJSONError(c, fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrBadCount):
		return s.sendJSONError(c, fiber.StatusBadRequest, err.Error())
	default:
		s.logger.Error("id generation failed", zap.Error(err))
		return s.sendJSONError(c, fiber.StatusInternalServerError, "id generation failed")
	}
}

func (s *HTTPServer) sendJSONError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}
