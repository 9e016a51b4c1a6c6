package interceptors

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/core/port"
)

const authorizationKey = "authorization"

// AuthOptions fine-tunes interceptor behaviour.
type AuthOptions struct {
	// AllowMethods are full method names that skip token handling entirely.
	AllowMethods []string
	Logger       *zap.Logger
}

// AuthInterceptor validates optional bearer access tokens carried in the
// authorization metadata and attaches the principal to the context.
type AuthInterceptor struct {
	verifier port.TokenVerifier
	logger   *zap.Logger
	allow    map[string]struct{}
}

// NewAuthInterceptor constructs a new AuthInterceptor instance.
func NewAuthInterceptor(verifier port.TokenVerifier, opts AuthOptions) *AuthInterceptor {
	allow := make(map[string]struct{}, len(opts.AllowMethods))
	for _, method := range opts.AllowMethods {
		if method = strings.TrimSpace(method); method != "" {
			allow[method] = struct{}{}
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AuthInterceptor{verifier: verifier, logger: logger, allow: allow}
}

// Unary returns the unary server interceptor.
func (ai *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := ai.authenticate(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// Stream returns the stream server interceptor.
func (ai *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := ai.authenticate(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &principalStream{ServerStream: ss, ctx: ctx})
	}
}

func (ai *AuthInterceptor) authenticate(ctx context.Context, method string) (context.Context, error) {
	if ai == nil || ai.verifier == nil {
		return ctx, nil
	}
	if _, ok := ai.allow[method]; ok {
		return ctx, nil
	}

	raw, present := authorizationFromMetadata(ctx)
	if !present {
		return ctx, nil
	}

	token, ok := bearerToken(raw)
	if !ok {
		return nil, ai.reject(method, domain.TokenMalformed)
	}

	claims, err := ai.verifier.Verify(token)
	if err != nil {
		reason, ok := domain.TokenFailureOf(err)
		if !ok {
			reason = domain.TokenMalformed
		}
		return nil, ai.reject(method, reason)
	}
	if claims.Kind != domain.SessionKindAccess {
		return nil, ai.reject(method, domain.TokenWrongKind)
	}

	return domain.ContextWithPrincipal(ctx, domain.PrincipalFromClaims(*claims)), nil
}

func (ai *AuthInterceptor) reject(method string, reason domain.TokenFailure) error {
	ai.logger.Debug("gRPC bearer token rejected",
		zap.String("method", method),
		zap.String("reason", string(reason)),
	)
	return status.Errorf(codes.Unauthenticated, "invalid access token: %s", reason)
}

// RequirePrincipal returns the caller principal or an Unauthenticated status.
func RequirePrincipal(ctx context.Context) (domain.Principal, error) {
	principal, ok := domain.PrincipalFromContext(ctx)
	if !ok {
		return domain.Principal{}, status.Error(codes.Unauthenticated, "authentication required")
	}
	return principal, nil
}

func authorizationFromMetadata(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	for _, v := range md.Get(authorizationKey) {
		if v = strings.TrimSpace(v); v != "" {
			return v, true
		}
	}
	return "", false
}

func bearerToken(value string) (string, bool) {
	scheme, token, found := strings.Cut(value, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// principalStream overrides the stream context with the authenticated one.
type principalStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *principalStream) Context() context.Context {
	return s.ctx
}
