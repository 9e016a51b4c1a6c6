package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fares7elsadek/Readly/internal/transport/http/middleware"
	"github.com/fares7elsadek/Readly/internal/usecase"
)

// Response is the envelope every Readly endpoint answers with.
type Response struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	TraceID   string    `json:"trace_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidationErrorResponse extends the envelope with per-field messages.
type ValidationErrorResponse struct {
	Response
	Fields map[string]string `json:"fields,omitempty"`
}

func respondOK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		TraceID:   middleware.GetTraceID(c),
		Timestamp: time.Now().UTC(),
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, newErrorResponse(c, message))
}

func newErrorResponse(c *gin.Context, message string) Response {
	return Response{
		Success:   false,
		Error:     message,
		TraceID:   middleware.GetTraceID(c),
		Timestamp: time.Now().UTC(),
	}
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse acknowledges a registration awaiting email verification.
type RegisterResponse struct {
	ID                    string    `json:"id"`
	Email                 string    `json:"email"`
	VerificationExpiresAt time.Time `json:"verification_expires_at"`
}

// LoginRequest is the credential payload.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries a refresh token in the body. The Authorization header is accepted too.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// VerifyEmailRequest carries a verification token in the body. The token query parameter is accepted too.
type VerifyEmailRequest struct {
	Token string `json:"token"`
}

// ResendVerificationRequest asks for a fresh verification mail.
type ResendVerificationRequest struct {
	Email string `json:"email"`
}

// UserInfo is the identity summary returned to clients.
type UserInfo struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	User         UserInfo `json:"user"`
}

func newUserInfo(s usecase.IdentitySummary) UserInfo {
	roles := s.Roles
	if roles == nil {
		roles = []string{}
	}
	return UserInfo{ID: s.ID, Email: s.Email, Roles: roles}
}

func newTokenResponse(r *usecase.AuthResult) TokenResponse {
	return TokenResponse{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresIn:    r.ExpiresIn,
		User:         newUserInfo(r.Identity),
	}
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
