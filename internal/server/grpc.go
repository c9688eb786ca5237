// Package server exposes the RFQ service over HTTP and gRPC.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/rfq-tracker/internal/common"
	"github.com/joseph-ayodele/rfq-tracker/internal/service"
)

const (
	NormalizerServiceName = "rfq.v1.Normalizer"
	NormalizeFullMethod   = "/" + NormalizerServiceName + "/Normalize"

	// Request metadata keys.
	VariantMetadataKey = "rfq-variant"
	TenantMetadataKey  = "rfq-tenant"
	// WarningTrailerKey carries one soft miss per value.
	WarningTrailerKey = "rfq-warning-bin"
)

// NormalizerServer validates documents carried as google.protobuf.Struct.
type NormalizerServer interface {
	Normalize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var normalizerServiceDesc = grpc.ServiceDesc{
	ServiceName: NormalizerServiceName,
	HandlerType: (*NormalizerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Normalize", Handler: normalizeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rfq/v1/normalizer.proto",
}

func normalizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(NormalizerServer).Normalize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: NormalizeFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(NormalizerServer).Normalize(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func RegisterNormalizerServer(s grpc.ServiceRegistrar, srv NormalizerServer) {
	s.RegisterService(&normalizerServiceDesc, srv)
}

// NormalizerClient calls rfq.v1.Normalizer.
type NormalizerClient struct {
	cc grpc.ClientConnInterface
}

func NewNormalizerClient(cc grpc.ClientConnInterface) *NormalizerClient {
	return &NormalizerClient{cc: cc}
}

func (c *NormalizerClient) Normalize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, NormalizeFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizerService implements NormalizerServer on top of the RFQ service.
type NormalizerService struct {
	svc    *service.RFQService
	logger *slog.Logger
}

func NewNormalizerService(svc *service.RFQService, logger *slog.Logger) *NormalizerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NormalizerService{svc: svc, logger: logger}
}

func (s *NormalizerService) Normalize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil || len(in.GetFields()) == 0 {
		return nil, common.InvalidArgumentError("document is required")
	}
	variant := firstMetadata(ctx, VariantMetadataKey)
	if tenant := firstMetadata(ctx, TenantMetadataKey); tenant != "" {
		ctx = common.WithTenant(ctx, tenant)
	}

	raw, err := protojson.Marshal(in)
	if err != nil {
		return nil, common.InvalidArgumentErrorf("encode document: %v", err)
	}
	res, err := s.svc.Normalize(ctx, variant, raw)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	if len(res.Warnings) > 0 {
		md := metadata.MD{}
		for _, w := range res.Warnings {
			md.Append(WarningTrailerKey, w)
		}
		if err := grpc.SetTrailer(ctx, md); err != nil {
			s.logger.Warn("grpc.normalize.trailer_failed", "error", err)
		}
	}
	if err := res.Err(); err != nil {
		return nil, common.ToStatus(err)
	}

	docJSON, err := json.Marshal(res.Document)
	if err != nil {
		return nil, common.InternalErrorf("encode result: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(docJSON, out); err != nil {
		return nil, common.InternalErrorf("decode result: %v", err)
	}
	return out, nil
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

// DecodeWarnings reads the soft misses a Normalize call left in its trailer.
func DecodeWarnings(trailer metadata.MD) []string {
	return trailer.Get(WarningTrailerKey)
}

// NewGRPCServer builds a server with the normalizer, health and reflection
// services registered. The returned health server is already SERVING.
func NewGRPCServer(svc *service.RFQService, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(logger)))
	RegisterNormalizerServer(srv, NewNormalizerService(svc, logger))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(NormalizerServiceName, healthpb.HealthCheckResponse_SERVING)

	reflection.Register(srv)
	return srv, hs
}

func unaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		level := slog.LevelInfo
		if code := status.Code(err); code != codes.OK && code != codes.InvalidArgument {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "grpc.request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
