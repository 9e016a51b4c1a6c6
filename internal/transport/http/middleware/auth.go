package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/core/port"
	appLogger "github.com/fares7elsadek/Readly/internal/infra/logger"
)

const (
	// PrincipalKey is the gin key holding the authenticated domain.Principal.
	PrincipalKey = "principal"

	bearerScheme = "Bearer"
)

// DefaultExemptPrefixes are the path prefixes that never require a bearer token.
var DefaultExemptPrefixes = []string{"/api/v1/auth/", "/docs", "/healthz", "/readyz", "/metrics"}

// AuthOptions configures Authenticate.
type AuthOptions struct {
	ExemptPrefixes []string
	Logger         *zap.Logger
}

// errorEnvelope mirrors handlers.Response for failures written by middleware.
type errorEnvelope struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	TraceID   string    `json:"trace_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorEnvelope{
		Success:   false,
		Error:     message,
		TraceID:   GetTraceID(c),
		Timestamp: time.Now().UTC(),
	})
}

// SessionTokenMessage is the client-facing text for a rejected access or refresh token.
func SessionTokenMessage(reason domain.TokenFailure) string {
	switch reason {
	case domain.TokenExpired:
		return "Token expired"
	case domain.TokenBadSignature:
		return "Invalid token signature"
	case domain.TokenMalformed:
		return "Malformed token"
	case domain.TokenWrongKind:
		return "Invalid token type"
	case domain.TokenNotFound:
		return "User not found"
	default:
		return "Authentication token is invalid or expired. Please log in again."
	}
}

// Authenticate validates an optional bearer access token and attaches the
// resulting principal to the request context. Requests without an
// Authorization header continue anonymously; any presented token that fails
// validation is rejected with 401.
func Authenticate(verifier port.TokenVerifier, opts AuthOptions) gin.HandlerFunc {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	exempt := opts.ExemptPrefixes
	if exempt == nil {
		exempt = DefaultExemptPrefixes
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range exempt {
			if prefix != "" && strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token, ok := BearerToken(header)
		if !ok {
			rejectToken(c, log, domain.TokenMalformed)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			reason, ok := domain.TokenFailureOf(err)
			if !ok {
				reason = domain.TokenMalformed
			}
			rejectToken(c, log, reason)
			return
		}
		if claims.Kind != domain.SessionKindAccess {
			rejectToken(c, log, domain.TokenWrongKind)
			return
		}

		principal := domain.PrincipalFromClaims(*claims)
		c.Request = c.Request.WithContext(domain.ContextWithPrincipal(c.Request.Context(), principal))
		c.Set(PrincipalKey, principal)
		GetRequestContext(c).Subject = principal.Subject

		c.Next()
	}
}

func rejectToken(c *gin.Context, log *zap.Logger, reason domain.TokenFailure) {
	log.Debug("bearer token rejected",
		zap.String("reason", string(reason)),
		zap.String("path", c.Request.URL.Path),
		zap.String("trace_id", GetTraceID(c)),
		zap.String("client_ip", appLogger.MaskIP(c.ClientIP())),
	)
	abortWithError(c, http.StatusUnauthorized, SessionTokenMessage(reason))
}

// BearerToken extracts the credential from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// RequireAuthenticated rejects requests that carry no principal.
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := PrincipalFrom(c); !ok {
			abortWithError(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		c.Next()
	}
}

// RequireAuthority rejects principals lacking every one of the named authorities.
func RequireAuthority(authorities ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		for _, authority := range authorities {
			if principal.HasAuthority(authority) {
				c.Next()
				return
			}
		}
		abortWithError(c, http.StatusForbidden, "Insufficient permissions")
	}
}

// PrincipalFrom returns the principal attached by Authenticate.
func PrincipalFrom(c *gin.Context) (domain.Principal, bool) {
	return domain.PrincipalFromContext(c.Request.Context())
}
