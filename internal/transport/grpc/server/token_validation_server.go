package server

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/core/port"
)

const (
	TokenValidationServiceName = "readly.auth.v1.TokenValidation"
	ValidateFullMethod         = "/" + TokenValidationServiceName + "/Validate"
)

// TokenValidationService lets other Readly services check access tokens without holding the signing secret.
type TokenValidationService interface {
	Validate(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error)
}

// TokenValidationServer answers Validate with a verdict struct. Invalid tokens
// are reported in the payload, not as RPC errors.
type TokenValidationServer struct {
	verifier port.TokenVerifier
}

// NewTokenValidationServer constructs a TokenValidationServer instance.
func NewTokenValidationServer(verifier port.TokenVerifier) *TokenValidationServer {
	return &TokenValidationServer{verifier: verifier}
}

// Validate verifies an access token and returns its principal.
func (s *TokenValidationServer) Validate(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	token := strings.TrimSpace(req.GetValue())
	if token == "" {
		return verdict(false, "token is required", nil)
	}

	claims, err := s.verifier.Verify(token)
	if err != nil {
		reason, ok := domain.TokenFailureOf(err)
		if !ok {
			reason = domain.TokenMalformed
		}
		return verdict(false, string(reason), nil)
	}
	if claims.Kind != domain.SessionKindAccess {
		return verdict(false, string(domain.TokenWrongKind), nil)
	}

	principal := domain.PrincipalFromClaims(*claims)
	return verdict(true, "", map[string]any{
		"subject":     principal.Subject,
		"identity_id": principal.IdentityID,
		"authorities": stringsToAny(principal.Authorities),
		"expires_at":  claims.ExpiresAt.Unix(),
	})
}

func verdict(valid bool, reason string, fields map[string]any) (*structpb.Struct, error) {
	out := map[string]any{"valid": valid}
	if reason != "" {
		out["error"] = reason
	}
	for k, v := range fields {
		out[k] = v
	}
	return structpb.NewStruct(out)
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func validateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenValidationService).Validate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ValidateFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenValidationService).Validate(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// TokenValidationServiceDesc describes the readly.auth.v1.TokenValidation service.
var TokenValidationServiceDesc = grpc.ServiceDesc{
	ServiceName: TokenValidationServiceName,
	HandlerType: (*TokenValidationService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Validate", Handler: validateHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterTokenValidationServer registers srv on s.
func RegisterTokenValidationServer(s grpc.ServiceRegistrar, srv TokenValidationService) {
	s.RegisterService(&TokenValidationServiceDesc, srv)
}
