package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/authgate/auth-service/internal/auth"
	"github.com/authgate/auth-service/internal/crypto"
	"github.com/authgate/auth-service/internal/domain"
	"github.com/authgate/auth-service/internal/repository"
	apperrors "github.com/authgate/auth-service/pkg/errors"
	"github.com/authgate/auth-service/pkg/validator"
)

// Login failures for a missing account and for a wrong password are
// indistinguishable to the caller.
const badCredentialsMsg = "invalid username or password"

// EventPublisher emits auth lifecycle events. Implementations must be best
// effort and never block or fail the triggering request.
type EventPublisher interface {
	UserRegistered(ctx context.Context, username string)
	UserLoggedIn(ctx context.Context, username string)
	UserLoggedOut(ctx context.Context, username string)
}

// RegisterRequest carries the input for creating an account. Any non-empty
// username and password are accepted; the only length rule is bcrypt's
// 72-byte input cap.
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginRequest carries the input for authenticating an account.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthService implements the credential and token lifecycle. It holds no
// per-request state; access token verification in particular is pure
// computation against the signing secret.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenManager
	cipher *crypto.Cipher
	hasher crypto.PasswordHasher
	scheme domain.CredentialScheme
	events EventPublisher
	logger *slog.Logger
}

// NewAuthService creates the auth service. scheme selects how credentials of
// NEW accounts are stored; existing records carry their own scheme tag and
// are verified accordingly regardless of this setting.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenManager,
	cipher *crypto.Cipher,
	hasher crypto.PasswordHasher,
	scheme domain.CredentialScheme,
	events EventPublisher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		cipher: cipher,
		hasher: hasher,
		scheme: scheme,
		events: events,
		logger: logger,
	}
}

// Register creates a new account and returns its first token pair. The
// refresh token digest is written in the same insert that claims the
// username, so a lost race leaves no partial state behind.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*domain.TokenPair, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	credential, err := s.encodeCredential(req.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	refreshToken := s.tokens.NewRefreshToken()
	refreshHash := s.tokens.HashRefreshToken(refreshToken)

	now := time.Now().UTC()
	user := &domain.User{
		Username:         req.Username,
		Scheme:           s.scheme,
		Credential:       credential,
		RefreshTokenHash: &refreshHash,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	accessToken, err := s.tokens.IssueAccessToken(user.Username)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("username", user.Username))
	s.events.UserRegistered(ctx, user.Username)

	return &domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Login verifies the password against the stored credential and returns a
// fresh token pair. Storing the new refresh token digest overwrites the
// previous one, so at most one refresh token per user is ever live.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*domain.TokenPair, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized(badCredentialsMsg)
		}
		return nil, err
	}

	if err := s.verifyCredential(user, req.Password); err != nil {
		return nil, err
	}

	refreshToken := s.tokens.NewRefreshToken()
	refreshHash := s.tokens.HashRefreshToken(refreshToken)

	if err := s.users.SetRefreshTokenHash(ctx, user.Username, refreshHash); err != nil {
		return nil, err
	}

	accessToken, err := s.tokens.IssueAccessToken(user.Username)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.logger.InfoContext(ctx, "user logged in", slog.String("username", user.Username))
	s.events.UserLoggedIn(ctx, user.Username)

	return &domain.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh exchanges a live refresh token for a new access token. The refresh
// token itself stays valid and is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", apperrors.InvalidInput("refresh token is required")
	}

	user, err := s.users.GetByRefreshTokenHash(ctx, s.tokens.HashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.Unauthorized("invalid refresh token")
		}
		return "", err
	}

	accessToken, err := s.tokens.IssueAccessToken(user.Username)
	if err != nil {
		return "", apperrors.Internal(err)
	}

	s.logger.DebugContext(ctx, "access token refreshed", slog.String("username", user.Username))

	return accessToken, nil
}

// Logout invalidates the presented refresh token. Unknown or already
// invalidated tokens succeed silently, so repeated logouts are harmless.
// Outstanding access tokens are unaffected and simply age out.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return apperrors.InvalidInput("refresh token is required")
	}

	tokenHash := s.tokens.HashRefreshToken(refreshToken)

	user, err := s.users.GetByRefreshTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := s.users.ClearRefreshTokenHash(ctx, tokenHash); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user logged out", slog.String("username", user.Username))
	s.events.UserLoggedOut(ctx, user.Username)

	return nil
}

// Authenticate validates an access token and returns the username it was
// issued for. It performs no I/O: a token revoked by logout stays
// acceptable here until it expires.
func (s *AuthService) Authenticate(tokenString string) (string, error) {
	claims, err := s.tokens.ParseAccessToken(tokenString)
	if err != nil {
		return "", apperrors.Unauthorized("invalid or expired token")
	}
	return claims.Username, nil
}

// AuthorizeBasic verifies a username/password pair without issuing tokens.
// Every failure mode is a 401: absent credentials, unknown user, mismatch.
func (s *AuthService) AuthorizeBasic(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return apperrors.Unauthorized(badCredentialsMsg)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Unauthorized(badCredentialsMsg)
		}
		return err
	}

	return s.verifyCredential(user, password)
}

// encodeCredential produces the stored credential form for a new account.
func (s *AuthService) encodeCredential(password string) (string, error) {
	switch s.scheme {
	case domain.SchemeEncrypted:
		return s.cipher.Encrypt(password)
	default:
		return s.hasher.Hash(password)
	}
}

// verifyCredential checks a presented password against the stored credential,
// dispatching on the record's own scheme tag. A credential that cannot be
// decoded at all is corrupt state, not a wrong password.
func (s *AuthService) verifyCredential(user *domain.User, password string) error {
	switch user.Scheme {
	case domain.SchemeEncrypted:
		plaintext, err := s.cipher.Decrypt(user.Credential)
		if err != nil {
			return apperrors.Internal(fmt.Errorf("decrypt credential for %q: %w", user.Username, err))
		}
		if subtle.ConstantTimeCompare([]byte(plaintext), []byte(password)) != 1 {
			return apperrors.Unauthorized(badCredentialsMsg)
		}
		return nil
	default:
		if !s.hasher.Check(password, user.Credential) {
			return apperrors.Unauthorized(badCredentialsMsg)
		}
		return nil
	}
}
