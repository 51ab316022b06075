package server

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/zhukov-alex/snowflake/internal/idgen"
	"github.com/zhukov-alex/snowflake/internal/record"
)

const (
	transportGRPC = "grpc"

	grpcServiceName = "snowflake.v1.IDGenerator"
	nextIDMethod    = "/" + grpcServiceName + "/NextID"
	nextIDsMethod   = "/" + grpcServiceName + "/NextIDs"
)

// IDGeneratorServer is the gRPC surface. Messages are protobuf well-known
// types: a record is a Struct with the string fields id, server_id,
// worker_id and timestamp.
type IDGeneratorServer interface {
	NextID(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	NextIDs(context.Context, *wrapperspb.UInt32Value) (*structpb.ListValue, error)
}

var idGeneratorServiceDesc = grpc.ServiceDesc{
	ServiceName: grpcServiceName,
	HandlerType: (*IDGeneratorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "NextID", Handler: nextIDHandler},
		{MethodName: "NextIDs", Handler: nextIDsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "snowflake/v1/idgen.proto",
}

func RegisterIDGeneratorServer(s grpc.ServiceRegistrar, srv IDGeneratorServer) {
	s.RegisterService(&idGeneratorServiceDesc, srv)
}

func nextIDHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IDGeneratorServer).NextID(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: nextIDMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IDGeneratorServer).NextID(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func nextIDsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.UInt32Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IDGeneratorServer).NextIDs(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: nextIDsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IDGeneratorServer).NextIDs(ctx, req.(*wrapperspb.UInt32Value))
	}
	return interceptor(ctx, in, info, handler)
}

// IDGeneratorClient calls an IDGeneratorServer.
type IDGeneratorClient struct {
	cc grpc.ClientConnInterface
}

func NewIDGeneratorClient(cc grpc.ClientConnInterface) *IDGeneratorClient {
	return &IDGeneratorClient{cc: cc}
}

func (c *IDGeneratorClient) NextID(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, nextIDMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IDGeneratorClient) NextIDs(ctx context.Context, count uint32, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, nextIDsMethod, wrapperspb.UInt32(count), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type GRPCServer struct {
	cfg     *GRPCConfig
	opts    Options
	metrics *Metrics
	logger  *zap.Logger
	server  *grpc.Server
}

func NewGRPCServer(logger *zap.Logger, cfg *GRPCConfig, opts Options) *GRPCServer {
	opts = opts.withDefaults()
	s := &GRPCServer{
		cfg:     cfg,
		opts:    opts,
		metrics: opts.Metrics,
		logger:  logger,
	}
	s.server = grpc.NewServer(
		grpc.ConnectionTimeout(cfg.ReadTimeout),
		grpc.UnaryInterceptor(s.observe),
	)
	return s
}

func (s *GRPCServer) Serve(ctx context.Context, src idgen.Source) error {
	RegisterIDGeneratorServer(s.server, &idGeneratorService{
		issuer: newIssuer(src, s.opts, transportGRPC),
		logger: s.logger,
	})

	lis, err := net.Listen("tcp", s.cfg.BindAddr)
	if err != nil {
		return err
	}
	s.logger.Info("gRPC server started", zap.String("addr", s.cfg.BindAddr))

	go func() {
		<-ctx.Done()
		s.server.GracefulStop()
	}()

	err = s.server.Serve(lis)
	if err == grpc.ErrServerStopped {
		return nil
	}
	return err
}

func (s *GRPCServer) Close(ctx context.Context) error {
	s.logger.Info("gRPC server shutting down...")
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return ctx.Err()
	}
}

func (s *GRPCServer) observe(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.metrics.latency.WithLabelValues(transportGRPC).Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Debug("grpc request failed", zap.String("method", info.FullMethod), zap.Error(err))
	}
	return resp, err
}

type idGeneratorService struct {
	issuer *issuer
	logger *zap.Logger
}

func (i *idGeneratorService) NextID(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	id, err := i.issuer.one()
	if err != nil {
		return nil, i.status(err)
	}
	return recordStruct(record.FromID(id)), nil
}

func (i *idGeneratorService) NextIDs(_ context.Context, in *wrapperspb.UInt32Value) (*structpb.ListValue, error) {
	ids, err := i.issuer.many(int(in.GetValue()))
	if err != nil {
		return nil, i.status(err)
	}

	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(ids))}
	for _, id := range ids {
		out.Values = append(out.Values, structpb.NewStructValue(recordStruct(record.FromID(id))))
	}
	return out, nil
}

func (i *idGeneratorService) status(err error) error {
	switch {
	case idgen.IsClockRewind(err):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, ErrBadCount):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		i.logger.Error("id generation failed", zap.Error(err))
		return status.Error(codes.Internal, "id generation failed")
	}
}

func recordStruct(r record.Record) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":        structpb.NewStringValue(r.ID),
		"server_id": structpb.NewStringValue(r.ServerID),
		"worker_id": structpb.NewStringValue(r.WorkerID),
		"timestamp": structpb.NewStringValue(r.Timestamp),
	}}
}

// RecordFromStruct is the inverse of the server's encoding.
func RecordFromStruct(s *structpb.Struct) record.Record {
	f := s.GetFields()
	return record.Record{
		ID:        f["id"].GetStringValue(),
		ServerID:  f["server_id"].GetStringValue(),
		WorkerID:  f["worker_id"].GetStringValue(),
		Timestamp: f["timestamp"].GetStringValue(),
	}
}
