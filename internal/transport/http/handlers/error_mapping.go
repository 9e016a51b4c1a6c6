package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/infra/logger"
	"github.com/fares7elsadek/Readly/internal/transport/http/middleware"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// tokenUse selects how invalid-token failures are reported.
type tokenUse int

const (
	sessionToken tokenUse = iota
	verificationToken
)

var authErrorCases = []ErrorCase{
	{Err: domain.ErrDuplicateEmail, Status: http.StatusConflict, Message: "An account with this email already exists"},
	{Err: domain.ErrBadCredentials, Status: http.StatusUnauthorized, Message: "Invalid email or password"},
	{Err: domain.ErrAccountDisabled, Status: http.StatusForbidden, Message: "Account not verified. Please check your email for verification link."},
	{Err: domain.ErrTooManyAttempts, Status: http.StatusTooManyRequests, Message: "Too many failed login attempts. Please try again later."},
}

// RespondWithMappedError writes the envelope for err, trying the domain
// taxonomy first and then the caller's cases. Unknown errors become 500.
func RespondWithMappedError(c *gin.Context, err error, cases ...ErrorCase) {
	respondWithTokenUse(c, err, sessionToken, cases...)
}

func respondWithTokenUse(c *gin.Context, err error, use tokenUse, cases ...ErrorCase) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Response: newErrorResponse(c, "Validation failed"),
			Fields:   validation.Fields,
		})
		return
	}

	if reason, ok := domain.TokenFailureOf(err); ok {
		if use == verificationToken {
			respondError(c, http.StatusBadRequest, verificationTokenMessage(reason))
			return
		}
		respondError(c, http.StatusUnauthorized, middleware.SessionTokenMessage(reason))
		return
	}

	for _, group := range [][]ErrorCase{cases, authErrorCases} {
		for _, cs := range group {
			if cs.Err != nil && errors.Is(err, cs.Err) {
				respondError(c, cs.Status, cs.Message)
				return
			}
		}
	}

	_ = c.Error(err)
	logger.WithContext(c.Request.Context()).Error("request failed",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	respondError(c, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.")
}

func verificationTokenMessage(reason domain.TokenFailure) string {
	switch reason {
	case domain.TokenAlreadyConsumed:
		return "Verification token has already been used"
	case domain.TokenExpired:
		return "Verification token has expired"
	case domain.TokenWrongKind:
		return "Token is not an email verification token"
	default:
		return "Invalid verification token"
	}
}

// retryAfterSeconds is sent with throttled login responses.
func retryAfterSeconds(window time.Duration) int {
	if window <= 0 {
		return 0
	}
	return int(window.Round(time.Second) / time.Second)
}
