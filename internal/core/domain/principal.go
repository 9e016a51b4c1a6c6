package domain

import "context"

// Principal is the caller identity established from a validated access token.
type Principal struct {
	Subject     string
	IdentityID  string
	Authorities []string
}

// HasAuthority reports whether the principal was granted the named authority.
func (p Principal) HasAuthority(name string) bool {
	for _, a := range p.Authorities {
		if a == name {
			return true
		}
	}
	return false
}

// PrincipalFromClaims builds a principal out of access token claims.
func PrincipalFromClaims(claims TokenClaims) Principal {
	identityID := claims.IdentityID
	if identityID == "" {
		identityID = claims.Subject
	}
	authorities := make([]string, len(claims.Authorities))
	copy(authorities, claims.Authorities)
	return Principal{
		Subject:     claims.Subject,
		IdentityID:  identityID,
		Authorities: authorities,
	}
}

type principalContextKey struct{}

// ContextWithPrincipal returns a derived context carrying the principal.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal attached by the authentication interceptor.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
