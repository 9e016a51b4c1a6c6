package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/infra/logger"
	"github.com/fares7elsadek/Readly/internal/transport/http/middleware"
	"github.com/fares7elsadek/Readly/internal/usecase"
)

// AuthService is the subset of usecase.AuthService the HTTP layer depends on.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*usecase.RegistrationResult, error)
	VerifyEmail(ctx context.Context, rawToken string) error
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*usecase.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*usecase.AuthResult, error)
	Logout(ctx context.Context, accessToken string)
	Account(ctx context.Context, principal domain.Principal) (*usecase.IdentitySummary, error)
}

// AuthHandler exposes the /api/v1/auth endpoints.
type AuthHandler struct {
	auth        AuthService
	loginWindow time.Duration
}

// AuthHandlerOption configures optional AuthHandler behaviour.
type AuthHandlerOption func(*AuthHandler)

// WithLoginWindow sets the Retry-After hint sent when login is throttled.
func WithLoginWindow(window time.Duration) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.loginWindow = window
	}
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth AuthService, opts ...AuthHandlerOption) *AuthHandler {
	h := &AuthHandler{auth: auth}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// AuthRouteMiddleware lets callers put rate limits in front of individual endpoints.
type AuthRouteMiddleware struct {
	Register []gin.HandlerFunc
	Login    []gin.HandlerFunc
	Refresh  []gin.HandlerFunc
	Resend   []gin.HandlerFunc
}

// RegisterRoutes binds the authentication endpoints on r.
func (h *AuthHandler) RegisterRoutes(r gin.IRoutes, mw AuthRouteMiddleware) {
	r.POST("/register", chain(mw.Register, h.Register)...)
	r.POST("/login", chain(mw.Login, h.Login)...)
	r.POST("/refresh-token", chain(mw.Refresh, h.Refresh)...)
	r.GET("/verify-email", h.VerifyEmail)
	r.POST("/verify-email", h.VerifyEmail)
	r.POST("/resend-verification", chain(mw.Resend, h.ResendVerification)...)
	r.POST("/logout", h.Logout)
}

func chain(before []gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(before)+1)
	out = append(out, before...)
	return append(out, handler)
}

// Register godoc
// @Summary Register a new account
// @Description Creates a disabled account and sends an email verification link.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration payload"
// @Success 201 {object} Response{data=RegisterResponse}
// @Failure 400 {object} ValidationErrorResponse
// @Failure 409 {object} Response
// @Failure 429 {object} middleware.ProblemDetails
// @Failure 500 {object} Response
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid registration payload")
		return
	}

	result, err := h.auth.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, "Registration successful! Please check your email to verify your account.", RegisterResponse{
		ID:                    result.IdentityID,
		Email:                 result.Email,
		VerificationExpiresAt: result.VerificationExpiresAt,
	})
}

// Login godoc
// @Summary Authenticate with email and password
// @Description Returns an access and refresh token pair for a verified account.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login payload"
// @Success 200 {object} Response{data=TokenResponse}
// @Failure 400 {object} Response
// @Failure 401 {object} Response "Invalid email or password"
// @Failure 403 {object} Response "Account not verified"
// @Failure 429 {object} Response "Too many failed attempts"
// @Failure 500 {object} Response
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrTooManyAttempts) {
			if seconds := retryAfterSeconds(h.loginWindow); seconds > 0 {
				c.Header("Retry-After", strconv.Itoa(seconds))
			}
		}
		RespondWithMappedError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "Login successful", newTokenResponse(result))
}

// Refresh godoc
// @Summary Exchange a refresh token for a new token pair
// @Description Accepts the refresh token in the body or as a Bearer Authorization header. The presented refresh token stays valid until it expires.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RefreshRequest false "Refresh payload"
// @Success 200 {object} Response{data=TokenResponse}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/auth/refresh-token [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid refresh payload")
		return
	}

	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		token, _ = middleware.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		respondError(c, http.StatusBadRequest, "Refresh token is required")
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		RespondWithMappedError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "Token refreshed successfully", newTokenResponse(result))
}

// bindOptionalJSON decodes the body into dst when one was sent. Chunked bodies
// report ContentLength -1, so only an empty stream counts as absent.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// VerifyEmail godoc
// @Summary Verify an email address
// @Description Consumes the single-use token from the verification link and enables the account.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param token query string false "Verification token"
// @Param request body VerifyEmailRequest false "Verification payload"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/auth/verify-email [get]
// @Router /api/v1/auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" && c.Request.Method == http.MethodPost {
		var req VerifyEmailRequest
		if err := bindOptionalJSON(c, &req); err == nil {
			token = strings.TrimSpace(req.Token)
		}
	}
	if token == "" {
		respondError(c, http.StatusBadRequest, "Verification token is required")
		return
	}

	if err := h.auth.VerifyEmail(c.Request.Context(), token); err != nil {
		respondWithTokenUse(c, err, verificationToken)
		return
	}

	respondOK(c, http.StatusOK, "Email verified successfully! You can now log in.", nil)
}

// ResendVerification godoc
// @Summary Resend the verification email
// @Description Issues a fresh verification link for an unverified account. Always answers 202 for well-formed requests.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body ResendVerificationRequest true "Resend payload"
// @Success 202 {object} Response
// @Failure 400 {object} ValidationErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Failure 500 {object} Response
// @Router /api/v1/auth/resend-verification [post]
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid resend payload")
		return
	}

	if err := h.auth.ResendVerification(c.Request.Context(), req.Email); err != nil {
		RespondWithMappedError(c, err)
		return
	}

	respondOK(c, http.StatusAccepted, "If the account exists and is not yet verified, a new verification email has been sent.", nil)
}

// Logout godoc
// @Summary Log out
// @Description Stateless logout. Always succeeds; clients discard their tokens.
// @Tags Authentication
// @Produce json
// @Success 200 {object} Response
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token, _ := middleware.BearerToken(c.GetHeader("Authorization"))
	h.auth.Logout(c.Request.Context(), token)
	respondOK(c, http.StatusOK, "Logged out successfully", nil)
}

// AccountHandler serves endpoints about the authenticated caller.
type AccountHandler struct {
	auth AuthService
}

// NewAccountHandler constructs AccountHandler.
func NewAccountHandler(auth AuthService) *AccountHandler {
	return &AccountHandler{auth: auth}
}

// Me godoc
// @Summary Current account
// @Description Returns the identity behind the presented access token.
// @Tags Account
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=UserInfo}
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Failure 500 {object} Response
// @Router /api/v1/account/me [get]
func (h *AccountHandler) Me(c *gin.Context) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	summary, err := h.auth.Account(c.Request.Context(), principal)
	if err != nil {
		logger.WithContext(c.Request.Context()).Debug("account lookup failed", zap.Error(err))
		RespondWithMappedError(c, err)
		return
	}

	respondOK(c, http.StatusOK, "", newUserInfo(*summary))
}
