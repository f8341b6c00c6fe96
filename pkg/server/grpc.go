package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/dasmlab/pagetrans/pkg/service"
)

// CodecName is the gRPC content-subtype of the JSON codec. Clients select it
// with grpc.CallContentSubtype(CodecName).
const CodecName = "json"

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pagetrans.v1.PageTranslation"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec marshals the plain Go request and response messages as JSON.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string { return CodecName }

// PageTranslationServer is the server API of pagetrans.v1.PageTranslation.
type PageTranslationServer interface {
	Translate(context.Context, *service.TranslateRequest) (*service.TranslateResponse, error)
	TranslatePage(context.Context, *service.TranslatePageRequest) (*service.TranslatePageResponse, error)
}

// RegisterPageTranslationServer registers srv with s.
func RegisterPageTranslationServer(s grpc.ServiceRegistrar, srv PageTranslationServer) {
	s.RegisterService(&pageTranslationServiceDesc, srv)
}

var pageTranslationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PageTranslationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Translate", Handler: translateHandler},
		{MethodName: "TranslatePage", Handler: translatePageHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func translateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(service.TranslateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PageTranslationServer).Translate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Translate"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PageTranslationServer).Translate(ctx, req.(*service.TranslateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func translatePageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(service.TranslatePageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PageTranslationServer).TranslatePage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/TranslatePage"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PageTranslationServer).TranslatePage(ctx, req.(*service.TranslatePageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// PageTranslationClient calls pagetrans.v1.PageTranslation using the JSON codec.
type PageTranslationClient struct {
	cc grpc.ClientConnInterface
}

// NewPageTranslationClient wraps an established connection.
func NewPageTranslationClient(cc grpc.ClientConnInterface) *PageTranslationClient {
	return &PageTranslationClient{cc: cc}
}

// Translate calls the Translate method.
func (c *PageTranslationClient) Translate(ctx context.Context, in *service.TranslateRequest, opts ...grpc.CallOption) (*service.TranslateResponse, error) {
	out := new(service.TranslateResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Translate", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// TranslatePage calls the TranslatePage method.
func (c *PageTranslationClient) TranslatePage(ctx context.Context, in *service.TranslatePageRequest, opts ...grpc.CallOption) (*service.TranslatePageResponse, error) {
	out := new(service.TranslatePageResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/TranslatePage", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// defaultingServer fills in the registry's default provider when a request
// names none.
type defaultingServer struct {
	svc       *service.TranslationService
	providers ProviderCatalog
}

func (d defaultingServer) Translate(ctx context.Context, req *service.TranslateRequest) (*service.TranslateResponse, error) {
	if req != nil && req.Provider == nil && req.ProviderID == "" && d.providers != nil {
		req.ProviderID = d.providers.DefaultID()
	}
	return d.svc.Translate(ctx, req)
}

func (d defaultingServer) TranslatePage(ctx context.Context, req *service.TranslatePageRequest) (*service.TranslatePageResponse, error) {
	if req != nil && req.Provider == nil && req.ProviderID == "" && d.providers != nil {
		req.ProviderID = d.providers.DefaultID()
	}
	return d.svc.TranslatePage(ctx, req)
}

// NewGRPCServer builds a gRPC server exposing svc, the standard health
// service and reflection. The caller owns Serve and shutdown.
func NewGRPCServer(svc *service.TranslationService, providers ProviderCatalog, logger *logrus.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = logrus.New()
	}

	// Clients ping every 30s; allow up to one ping per 15s.
	serverOpts := []grpc.ServerOption{
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             15 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  30 * time.Second,
			Timeout:               10 * time.Second,
		}),
		grpc.ChainUnaryInterceptor(loggingInterceptor(logger)),
	}
	serverOpts = append(serverOpts, opts...)

	s := grpc.NewServer(serverOpts...)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	RegisterPageTranslationServer(s, defaultingServer{svc: svc, providers: providers})
	reflection.Register(s)

	return s, healthServer
}

func loggingInterceptor(logger *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		entry := logger.WithFields(logrus.Fields{
			"method":      info.FullMethod,
			"code":        status.Code(err).String(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if err != nil {
			entry.WithError(err).Warn("gRPC call failed")
		} else {
			entry.Debug("gRPC call completed")
		}
		return resp, err
	}
}
