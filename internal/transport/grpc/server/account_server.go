package server

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/transport/grpc/interceptors"
	"github.com/fares7elsadek/Readly/internal/usecase"
)

const (
	AccountServiceName = "readly.auth.v1.Account"
	MeFullMethod       = "/" + AccountServiceName + "/Me"
)

// AccountLookup resolves the identity behind a principal.
type AccountLookup interface {
	Account(ctx context.Context, principal domain.Principal) (*usecase.IdentitySummary, error)
}

// AccountService is the gRPC twin of GET /api/v1/account/me.
type AccountService interface {
	Me(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error)
}

// AccountServer serves the authenticated caller's account summary.
type AccountServer struct {
	accounts AccountLookup
}

func NewAccountServer(accounts AccountLookup) *AccountServer {
	return &AccountServer{accounts: accounts}
}

func (s *AccountServer) Me(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	principal, err := interceptors.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := s.accounts.Account(ctx, principal)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidToken):
			return nil, status.Error(codes.Unauthenticated, "identity no longer exists")
		default:
			return nil, status.Error(codes.Internal, "account lookup failed")
		}
	}

	return structpb.NewStruct(map[string]any{
		"id":    summary.ID,
		"email": summary.Email,
		"roles": stringsToAny(summary.Roles),
	})
}

func meHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AccountService).Me(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MeFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AccountService).Me(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// AccountServiceDesc describes the readly.auth.v1.Account service.
var AccountServiceDesc = grpc.ServiceDesc{
	ServiceName: AccountServiceName,
	HandlerType: (*AccountService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Me", Handler: meHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterAccountServer registers srv on s.
func RegisterAccountServer(s grpc.ServiceRegistrar, srv AccountService) {
	s.RegisterService(&AccountServiceDesc, srv)
}
