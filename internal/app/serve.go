package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhukov-alex/snowflake/internal/audit"
	"github.com/zhukov-alex/snowflake/internal/config"
	"github.com/zhukov-alex/snowflake/internal/idgen"
	"github.com/zhukov-alex/snowflake/internal/logger"
	"github.com/zhukov-alex/snowflake/internal/metrics"
	"github.com/zhukov-alex/snowflake/internal/output"
	"github.com/zhukov-alex/snowflake/internal/server"
)

const EnvStage = "ENVIRONMENT"

func DevMode() bool {
	return strings.ToLower(os.Getenv(EnvStage)) != "prod"
}

func ServeCmd(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(viper.GetViper())
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	l, err := logger.New(cfg.Logger, DevMode())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer l.Sync()

	collectMetrics := cfg.MetricsAddr != ""
	var metricsCloser func(ctx context.Context) error
	if collectMetrics {
		metricsSrv, cl := metrics.New(l, cfg.MetricsAddr, nil)
		metricsSrv.Start()
		metricsCloser = cl
	}

	clock, closeClock, err := newClock(l, cfg.Generator.Clock)
	if err != nil {
		return fmt.Errorf("clock init error: %w", err)
	}
	defer closeClock()

	gen, err := idgen.New(l, cfg.Generator.Config,
		idgen.WithClock(clock),
		idgen.WithMetrics(collectMetrics),
	)
	if err != nil {
		return fmt.Errorf("generator init error: %w", err)
	}
	auditSvc, err := newAudit(ctx, l, cfg.Audit, gen, collectMetrics)
	if err != nil {
		return fmt.Errorf("audit init error: %w", err)
	}

	opts := server.Options{
		MaxBatch: cfg.Server.MaxBatch,
		Recorder: auditSvc,
		Metrics:  server.NewMetrics(collectMetrics),
	}

	var servers []server.Server
	if cfg.Server.HTTP != nil {
		servers = append(servers, server.NewHTTPServer(l, cfg.Server.HTTP, opts))
	}
	if cfg.Server.GRPC != nil {
		servers = append(servers, server.NewGRPCServer(l, cfg.Server.GRPC, opts))
	}
	if cfg.Server.TCP != nil {
		servers = append(servers, server.NewTCPServer(l, cfg.Server.TCP, opts))
	}

	for _, srv := range servers {
		go func(srv server.Server) {
			if err := srv.Serve(ctx, gen); err != nil {
				l.Error("server error", zap.Error(err))
				stop()
			}
		}(srv)
	}

	<-ctx.Done()
	l.Info("Shutdown signal received")

	clCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	sg, sctx := errgroup.WithContext(clCtx)
	for _, srv := range servers {
		srv := srv
		sg.Go(func() error { return srv.Close(sctx) })
	}
	if err := sg.Wait(); err != nil {
		l.Error("error shutting down servers", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(clCtx)
	g.Go(func() error { return auditSvc.Close(gctx) })
	if collectMetrics {
		g.Go(func() error { return metricsCloser(gctx) })
	}

	if err := g.Wait(); err != nil {
		l.Error("shutdown errors", zap.Error(err))
	} else {
		l.Info("Shutdown complete")
	}

	return nil
}

func newClock(l *zap.Logger, cfg config.ClockConfig) (idgen.Clock, func(), error) {
	switch cfg.Type {
	case "system":
		return idgen.SystemClock{}, func() {}, nil
	case "redis":
		if cfg.Redis == nil {
			return nil, nil, fmt.Errorf("redis clock config is missing")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.Timeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}

		closer := func() {
			if err := client.Close(); err != nil {
				l.Warn("redis close failed", zap.Error(err))
			}
		}
		return idgen.NewRedisClock(l, client, cfg.Redis.Timeout), closer, nil
	default:
		return nil, nil, fmt.Errorf("unsupported clock type: %s", cfg.Type)
	}
}

// auditService is what the shutdown path needs from an audit recorder.
type auditService interface {
	audit.Recorder
	Close(ctx context.Context) error
}

type discardService struct{ audit.Discard }

func (discardService) Close(context.Context) error { return nil }

func newAudit(ctx context.Context, l *zap.Logger, cfg audit.Config, gen *idgen.Generator, collectMetrics bool) (auditService, error) {
	if !cfg.Enabled {
		return discardService{}, nil
	}

	outp, err := func() (output.Output, error) {
		switch cfg.Output.Type {
		case "kafka":
			if cfg.Output.Kafka == nil {
				return nil, fmt.Errorf("kafka config is missing")
			}
			return output.NewKafkaBroker(l, cfg.Output.Kafka)
		default:
			return nil, fmt.Errorf("unsupported output type: %s", cfg.Output.Type)
		}
	}()
	if err != nil {
		return nil, fmt.Errorf("output init error: %w", err)
	}

	key := fmt.Sprintf("%d-%d", gen.ServerID(), gen.WorkerID())
	svc := audit.New(l, cfg, key, outp, collectMetrics)
	if err := svc.Start(ctx); err != nil {
		_ = outp.Close(context.Background())
		return nil, fmt.Errorf("failed to start audit: %w", err)
	}
	return &auditCloser{ServiceImpl: svc, out: outp}, nil
}

// auditCloser drains the audit service before closing its output.
type auditCloser struct {
	*audit.ServiceImpl
	out output.Output
}

func (a *auditCloser) Close(ctx context.Context) error {
	err := a.ServiceImpl.Close(ctx)
	if cerr := a.out.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
