package server

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func dialBufconn(t *testing.T) *grpc.ClientConn {
	t.Helper()
	svc, _ := newTestService(t, "")
	srv, _ := NewGRPCServer(svc, quietLogger())

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGRPCNormalize_OK(t *testing.T) {
	client := NewNormalizerClient(dialBufconn(t))
	ctx := metadata.AppendToOutgoingContext(context.Background(),
		VariantMetadataKey, "quotation",
		TenantMetadataKey, "acme",
	)

	var trailer metadata.MD
	out, err := client.Normalize(ctx, mustStruct(t, map[string]any{
		"fullText": "Quotation 7",
		"metadata": map[string]any{"vendorCode": "X1"},
		"items": []any{
			map[string]any{"description": "Pump", "quantity": 2, "unitPrice": "1.250,00"},
		},
	}), grpc.Trailer(&trailer))
	require.NoError(t, err)

	doc := out.AsMap()
	assert.Equal(t, "quotation", doc["variant"])
	meta := doc["metadata"].(map[string]any)
	assert.Equal(t, "USD", meta["currency"])
	item := doc["items"].([]any)[0].(map[string]any)
	assert.InDelta(t, 2500, item["totalPrice"], 1e-9)
	assert.InDelta(t, 2500, doc["totals"].(map[string]any)["subtotal"], 1e-9)

	warnings := DecodeWarnings(trailer)
	require.NotEmpty(t, warnings)
	assert.Contains(t, strings.Join(warnings, "\n"), "metadata.vendorCode")
}

func TestGRPCNormalize_InvalidArgument(t *testing.T) {
	client := NewNormalizerClient(dialBufconn(t))

	_, err := client.Normalize(context.Background(), mustStruct(t, map[string]any{
		"fullText": "",
		"items":    []any{},
	}))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "fullText")

	_, err = client.Normalize(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, "document is required", status.Convert(err).Message())

	ctx := metadata.AppendToOutgoingContext(context.Background(), VariantMetadataKey, "invoice")
	_, err = client.Normalize(ctx, mustStruct(t, map[string]any{"fullText": "x"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCHealth(t *testing.T) {
	conn := dialBufconn(t)
	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{
		Service: NormalizerServiceName,
	})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
