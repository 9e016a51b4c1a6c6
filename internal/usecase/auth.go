package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fares7elsadek/Readly/internal/core/domain"
	"github.com/fares7elsadek/Readly/internal/core/port"
	"github.com/fares7elsadek/Readly/internal/infra/logger"
	"github.com/fares7elsadek/Readly/internal/repository"
)

// TokenTypeBearer is reported to clients alongside issued session tokens.
const TokenTypeBearer = "Bearer"

// Outcome labels reported through port.AuthMetrics.
const (
	outcomeSuccess        = "success"
	outcomeBadCredentials = "bad_credentials"
	outcomeDisabled       = "disabled"
	outcomeThrottled      = "throttled"
	outcomeInvalidToken   = "invalid_token"
	outcomeError          = "error"
)

// AuthConfig carries the lifetimes applied by AuthService.
type AuthConfig struct {
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	VerificationTokenTTL time.Duration
}

func (c AuthConfig) validate() error {
	switch {
	case c.AccessTokenTTL <= 0:
		return errors.New("access token ttl must be positive")
	case c.RefreshTokenTTL <= 0:
		return errors.New("refresh token ttl must be positive")
	case c.VerificationTokenTTL <= 0:
		return errors.New("verification token ttl must be positive")
	}
	return nil
}

// AuthDependencies lists the collaborators of AuthService. Throttle, Metrics and Logger are optional.
type AuthDependencies struct {
	Identities  port.IdentityRepository
	UnitOfWork  port.UnitOfWork
	Lifecycle   *TokenLifecycle
	Credentials *CredentialVerifier
	Hasher      port.PasswordHasher
	Policy      port.PasswordPolicyValidator
	Signer      port.TokenSigner
	Verifier    port.TokenVerifier
	Dispatcher  port.VerificationDispatcher
	Throttle    *LoginThrottle
	Metrics     port.AuthMetrics
	Logger      *zap.Logger
}

// IdentitySummary is the client-facing view of an identity.
type IdentitySummary struct {
	ID    string
	Email string
	Roles []string
}

// AuthResult is returned by Login and Refresh.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	// ExpiresIn is the access token lifetime in seconds. Clients should treat it as a hint.
	ExpiresIn int64
	Identity  IdentitySummary
}

// RegistrationResult acknowledges a new registration.
type RegistrationResult struct {
	IdentityID            string
	Email                 string
	VerificationExpiresAt time.Time
}

// AuthService coordinates registration, email verification, login, refresh and logout.
type AuthService struct {
	cfg         AuthConfig
	identities  port.IdentityRepository
	uow         port.UnitOfWork
	lifecycle   *TokenLifecycle
	credentials *CredentialVerifier
	hasher      port.PasswordHasher
	policy      port.PasswordPolicyValidator
	signer      port.TokenSigner
	verifier    port.TokenVerifier
	dispatcher  port.VerificationDispatcher
	throttle    *LoginThrottle
	metrics     port.AuthMetrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(cfg AuthConfig, deps AuthDependencies) (*AuthService, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("auth config: %w", err)
	}
	if deps.Identities == nil || deps.UnitOfWork == nil || deps.Lifecycle == nil ||
		deps.Credentials == nil || deps.Hasher == nil || deps.Signer == nil ||
		deps.Verifier == nil || deps.Dispatcher == nil {
		return nil, errors.New("auth service: missing required dependency")
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = port.NopAuthMetrics{}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &AuthService{
		cfg:         cfg,
		identities:  deps.Identities,
		uow:         deps.UnitOfWork,
		lifecycle:   deps.Lifecycle,
		credentials: deps.Credentials,
		hasher:      deps.Hasher,
		policy:      deps.Policy,
		signer:      deps.Signer,
		verifier:    deps.Verifier,
		dispatcher:  deps.Dispatcher,
		throttle:    deps.Throttle,
		metrics:     metrics,
		logger:      log,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the time source used for identity timestamps.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now == nil {
		return s
	}
	clone := *s
	clone.now = now
	return &clone
}

// Register creates a disabled, locked identity and hands off a verification mail.
// The mail outcome never affects the result.
func (s *AuthService) Register(ctx context.Context, email, password string) (*RegistrationResult, error) {
	normalized := domain.NormalizeEmail(email)
	if err := validateRegistration(normalized, password, s.policy); err != nil {
		return nil, err
	}

	exists, err := s.identities.ExistsByEmail(ctx, normalized)
	if err != nil {
		return nil, domain.Infrastructure("check email", err)
	}
	if exists {
		return nil, domain.ErrDuplicateEmail
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, domain.Infrastructure("hash password", err)
	}

	now := s.now()
	identity := domain.Identity{
		ID:           uuid.NewString(),
		Email:        normalized,
		PasswordHash: hash,
		Enabled:      false,
		Locked:       true,
		Roles:        []string{domain.RoleUser},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var (
		token *domain.SingleUseToken
		raw   string
	)
	err = s.uow.RunInTx(ctx, func(stores port.Stores) error {
		if err := stores.Identities.Create(ctx, identity); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return domain.ErrDuplicateEmail
			}
			return domain.Infrastructure("create identity", err)
		}

		var createErr error
		token, raw, createErr = s.lifecycle.WithRepository(stores.Tokens).
			CreateSingleUse(ctx, identity.ID, domain.TokenKindEmailVerification, s.cfg.VerificationTokenTTL)
		return createErr
	})
	if err != nil {
		return nil, asBusinessOrInfra("register identity", err)
	}

	s.dispatcher.DispatchVerification(ctx, identity.ID, identity.Email, raw, token.ExpiresAt)

	logger.WithContext(ctx).Info("identity registered",
		zap.String("identity_id", identity.ID),
		zap.String("email", logger.MaskEmail(identity.Email)),
	)

	return &RegistrationResult{
		IdentityID:            identity.ID,
		Email:                 identity.Email,
		VerificationExpiresAt: token.ExpiresAt,
	}, nil
}

// VerifyEmail consumes an email verification token and enables its identity.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) error {
	var identityID string
	err := s.uow.RunInTx(ctx, func(stores port.Stores) error {
		token, err := s.lifecycle.WithRepository(stores.Tokens).
			Consume(ctx, rawToken, domain.TokenKindEmailVerification)
		if err != nil {
			return err
		}
		identityID = token.IdentityID

		if err := stores.Identities.UpdateFlags(ctx, token.IdentityID, true, false, s.now()); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.InvalidToken(domain.TokenNotFound, err)
			}
			return domain.Infrastructure("enable identity", err)
		}
		return nil
	})
	if err != nil {
		s.metrics.ObserveVerification(outcomeFor(err))
		return asBusinessOrInfra("verify email", err)
	}

	s.metrics.ObserveVerification(outcomeSuccess)
	logger.WithContext(ctx).Info("email verified", zap.String("identity_id", identityID))
	return nil
}

// ResendVerification issues a fresh verification token for a pending identity and expires
// older ones. Unknown and already verified addresses succeed without side effects.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	normalized := domain.NormalizeEmail(email)
	if err := validateEmail(normalized); err != nil {
		return err
	}

	identity, err := s.identities.GetByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return domain.Infrastructure("lookup identity", err)
	}
	if identity.Enabled {
		return nil
	}

	var (
		token *domain.SingleUseToken
		raw   string
	)
	err = s.uow.RunInTx(ctx, func(stores port.Stores) error {
		lifecycle := s.lifecycle.WithRepository(stores.Tokens)
		if _, err := lifecycle.ExpireOutstanding(ctx, identity.ID, domain.TokenKindEmailVerification); err != nil {
			return err
		}
		var createErr error
		token, raw, createErr = lifecycle.CreateSingleUse(ctx, identity.ID, domain.TokenKindEmailVerification, s.cfg.VerificationTokenTTL)
		return createErr
	})
	if err != nil {
		return asBusinessOrInfra("resend verification", err)
	}

	s.dispatcher.DispatchVerification(ctx, identity.ID, identity.Email, raw, token.ExpiresAt)
	return nil
}

// Login authenticates the credentials and issues an access and refresh token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	normalized := domain.NormalizeEmail(email)

	if s.throttle != nil {
		if err := s.throttle.Check(ctx, normalized); err != nil {
			s.metrics.ObserveLogin(outcomeThrottled)
			return nil, err
		}
	}

	identity, err := s.credentials.Authenticate(ctx, normalized, password)
	if err != nil {
		if errors.Is(err, domain.ErrBadCredentials) && s.throttle != nil {
			s.throttle.RecordFailure(ctx, normalized)
		}
		s.metrics.ObserveLogin(outcomeFor(err))
		return nil, err
	}

	if s.throttle != nil {
		s.throttle.Reset(ctx, normalized)
	}

	result, err := s.issuePair(*identity)
	if err != nil {
		s.metrics.ObserveLogin(outcomeError)
		return nil, err
	}

	s.metrics.ObserveLogin(outcomeSuccess)
	logger.WithContext(ctx).Info("login succeeded", zap.String("identity_id", identity.ID))
	return result, nil
}

// Refresh exchanges a refresh token for a new token pair. The presented refresh token is
// not revoked and stays valid until its own expiry.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.verifier.Verify(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Kind != domain.SessionKindRefresh {
		return nil, domain.InvalidToken(domain.TokenWrongKind, nil)
	}

	identity, err := s.identities.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.InvalidToken(domain.TokenNotFound, err)
		}
		return nil, domain.Infrastructure("lookup identity", err)
	}
	if !identity.Enabled {
		return nil, domain.ErrAccountDisabled
	}

	return s.issuePair(*identity)
}

// Logout records which subject logged out. It never fails: there is no server-side session.
func (s *AuthService) Logout(ctx context.Context, accessToken string) {
	log := logger.WithContext(ctx)
	if accessToken == "" {
		log.Info("logout without token")
		return
	}

	claims, err := s.verifier.Verify(accessToken)
	if err != nil {
		reason, _ := domain.TokenFailureOf(err)
		log.Info("logout with unusable token", zap.String("reason", string(reason)))
		return
	}
	log.Info("logout", zap.String("subject", claims.Subject), zap.String("kind", string(claims.Kind)))
}

// Account returns the summary of the identity behind principal.
func (s *AuthService) Account(ctx context.Context, principal domain.Principal) (*IdentitySummary, error) {
	identity, err := s.identities.GetByID(ctx, principal.IdentityID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.InvalidToken(domain.TokenNotFound, err)
		}
		return nil, domain.Infrastructure("lookup identity", err)
	}
	summary := summarize(*identity)
	return &summary, nil
}

func (s *AuthService) issuePair(identity domain.Identity) (*AuthResult, error) {
	access, err := s.signer.Issue(identity.ID, domain.TokenClaims{
		Kind:        domain.SessionKindAccess,
		IdentityID:  identity.ID,
		Authorities: identity.Authorities(),
	}, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, domain.Infrastructure("issue access token", err)
	}
	s.metrics.ObserveTokenIssued(string(domain.SessionKindAccess))

	refresh, err := s.signer.Issue(identity.ID, domain.TokenClaims{
		Kind: domain.SessionKindRefresh,
	}, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, domain.Infrastructure("issue refresh token", err)
	}
	s.metrics.ObserveTokenIssued(string(domain.SessionKindRefresh))

	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL / time.Second),
		Identity:     summarize(identity),
	}, nil
}

func summarize(identity domain.Identity) IdentitySummary {
	return IdentitySummary{
		ID:    identity.ID,
		Email: identity.Email,
		Roles: identity.Authorities(),
	}
}

// asBusinessOrInfra passes taxonomy errors through and wraps anything else as infrastructure.
func asBusinessOrInfra(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrDuplicateEmail),
		errors.Is(err, domain.ErrInvalidToken),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInfrastructure):
		return err
	default:
		return domain.Infrastructure(op, err)
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrBadCredentials):
		return outcomeBadCredentials
	case errors.Is(err, domain.ErrAccountDisabled):
		return outcomeDisabled
	case errors.Is(err, domain.ErrInvalidToken):
		return outcomeInvalidToken
	default:
		return outcomeError
	}
}
