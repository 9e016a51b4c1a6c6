package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/usecase"
)

type verifierFunc func(string) (*domain.TokenClaims, error)

func (f verifierFunc) Verify(raw string) (*domain.TokenClaims, error) { return f(raw) }

func TestValidateReportsPrincipal(t *testing.T) {
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	srv := NewTokenValidationServer(verifierFunc(func(string) (*domain.TokenClaims, error) {
		return &domain.TokenClaims{
			Subject:     "identity-1",
			Kind:        domain.SessionKindAccess,
			IdentityID:  "identity-1",
			Authorities: []string{"USER"},
			ExpiresAt:   expires,
		}, nil
	}))

	out, err := srv.Validate(context.Background(), wrapperspb.String("token"))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	fields := out.AsMap()
	if fields["valid"] != true || fields["subject"] != "identity-1" {
		t.Fatalf("unexpected verdict %v", fields)
	}
	if fields["expires_at"] != float64(expires.Unix()) {
		t.Fatalf("unexpected expires_at %v", fields["expires_at"])
	}
}

func TestValidateReportsFailureReason(t *testing.T) {
	srv := NewTokenValidationServer(verifierFunc(func(string) (*domain.TokenClaims, error) {
		return nil, domain.InvalidToken(domain.TokenExpired, nil)
	}))

	out, err := srv.Validate(context.Background(), wrapperspb.String("token"))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if out.AsMap()["valid"] != false || out.AsMap()["error"] != "expired" {
		t.Fatalf("unexpected verdict %v", out.AsMap())
	}

	out, _ = srv.Validate(context.Background(), wrapperspb.String("  "))
	if out.AsMap()["error"] != "token is required" {
		t.Fatalf("unexpected verdict for blank token %v", out.AsMap())
	}
}

type accountFunc func(context.Context, domain.Principal) (*usecase.IdentitySummary, error)

func (f accountFunc) Account(ctx context.Context, p domain.Principal) (*usecase.IdentitySummary, error) {
	return f(ctx, p)
}

func TestAccountMeMapsErrors(t *testing.T) {
	principalCtx := domain.ContextWithPrincipal(context.Background(), domain.Principal{IdentityID: "identity-1"})

	cases := []struct {
		name string
		ctx  context.Context
		err  error
		code codes.Code
	}{
		{name: "anonymous", ctx: context.Background(), code: codes.Unauthenticated},
		{name: "identity gone", ctx: principalCtx, err: domain.InvalidToken(domain.TokenNotFound, nil), code: codes.Unauthenticated},
		{name: "database down", ctx: principalCtx, err: domain.Infrastructure("lookup identity", errors.New("boom")), code: codes.Internal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewAccountServer(accountFunc(func(context.Context, domain.Principal) (*usecase.IdentitySummary, error) {
				return nil, tc.err
			}))
			_, err := srv.Me(tc.ctx, &emptypb.Empty{})
			if status.Code(err) != tc.code {
				t.Fatalf("expected %v, got %v", tc.code, err)
			}
		})
	}
}
