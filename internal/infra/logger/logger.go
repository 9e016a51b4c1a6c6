package logger

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fares7elsadek/Readly/internal/core/domain"
)

var (
	mu   sync.RWMutex
	base = zap.NewNop()
	once sync.Once
)

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

// TraceIDKey is used to store the client-facing trace identifier on the context.
type TraceIDKey struct{}

// New builds the process logger once and installs it for WithContext.
// Production uses JSON output; every other environment uses the colored console encoder.
func New(env string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		if env != "production" {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}

		var built *zap.Logger
		built, err = cfg.Build(zap.Fields(zap.String("service", "readly-auth")))
		if err == nil {
			Set(built)
		}
	})

	return L(), err
}

// Set replaces the logger returned by L and WithContext.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	base = l
	mu.Unlock()
}

// L returns the installed logger, a no-op logger until New or Set runs.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// WithContext attaches request scoped fields to the logger.
func WithContext(ctx context.Context) *zap.Logger {
	l := L()
	if ctx == nil {
		return l
	}

	fields := make([]zap.Field, 0, 3)
	if id, ok := ctx.Value(RequestIDKey{}).(string); ok && id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id, ok := ctx.Value(TraceIDKey{}).(string); ok && id != "" {
		fields = append(fields, zap.String("trace_id", id))
	}
	if principal, ok := domain.PrincipalFromContext(ctx); ok {
		fields = append(fields, zap.String("subject", principal.Subject))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// MaskEmail keeps the first character of the local part and the domain.
// Example: reader@example.com -> r*****@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	local, domainPart, found := strings.Cut(email, "@")
	if !found || local == "" {
		return "***"
	}
	runes := []rune(local)
	return string(runes[0]) + strings.Repeat("*", len(runes)-1) + "@" + domainPart
}

// MaskIP keeps the first two IPv4 octets or the first four IPv6 groups.
// Example: 192.168.1.100 -> 192.168.*.*
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	if parts := strings.Split(ip, "."); len(parts) == 4 {
		return parts[0] + "." + parts[1] + ".*.*"
	}
	if parts := strings.Split(ip, ":"); len(parts) >= 4 {
		return strings.Join(parts[:4], ":") + ":*:*:*:*"
	}

	return "***"
}

// MaskToken keeps the first six characters of an opaque credential for correlation.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:6] + "***"
}
