package transportgrpc

import (
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/fares7elsadek/Readly/internal/core/port"
	grpcinterceptors "github.com/fares7elsadek/Readly/internal/transport/grpc/interceptors"
	"github.com/fares7elsadek/Readly/internal/transport/grpc/server"
)

// ServerDependencies encapsulates services required by the gRPC server layer.
type ServerDependencies struct {
	Verifier port.TokenVerifier
	Accounts server.AccountLookup
	Metrics  *grpcinterceptors.GRPCMetrics
	Tracing  *grpcinterceptors.TracingOptions
	Logger   *zap.Logger
	// PublicMethods skip bearer token handling in addition to the health and validation endpoints.
	PublicMethods []string
}

// Server bundles the gRPC server with its health service.
type Server struct {
	GRPC   *grpc.Server
	Health *health.Server
	logger *zap.Logger
}

// NewServer wires the Readly gRPC services behind the metrics and authentication interceptors.
func NewServer(deps ServerDependencies) (*Server, error) {
	if deps.Verifier == nil {
		return nil, errors.New("token verifier is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	public := append([]string{
		grpc_health_v1.Health_Check_FullMethodName,
		grpc_health_v1.Health_Watch_FullMethodName,
		server.ValidateFullMethod,
	}, deps.PublicMethods...)
	auth := grpcinterceptors.NewAuthInterceptor(deps.Verifier, grpcinterceptors.AuthOptions{
		Logger:       logger,
		AllowMethods: public,
	})

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(deps.Metrics.UnaryServerInterceptor(), auth.Unary()),
		grpc.ChainStreamInterceptor(deps.Metrics.StreamServerInterceptor(), auth.Stream()),
	}
	if deps.Tracing != nil {
		opts = append(opts, grpcinterceptors.TracingServerOption(*deps.Tracing))
	}
	s := grpc.NewServer(opts...)

	server.RegisterTokenValidationServer(s, server.NewTokenValidationServer(deps.Verifier))
	if deps.Accounts != nil {
		server.RegisterAccountServer(s, server.NewAccountServer(deps.Accounts))
	}

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus(server.TokenValidationServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(s)

	return &Server{GRPC: s, Health: healthServer, logger: logger}, nil
}

// Serve blocks serving on lis until Stop or GracefulStop.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	if err := s.GRPC.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// GracefulStop marks the services as not serving and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.Health.Shutdown()
	s.GRPC.GracefulStop()
}
