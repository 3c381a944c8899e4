package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents the JWT claims for an access token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies access tokens, and generates opaque
// refresh tokens together with their at-rest digests. It holds only
// immutable secrets; verification never touches the store.
type TokenManager struct {
	secret        []byte
	refreshSecret []byte
	accessExpiry  time.Duration
}

// NewTokenManager creates a token manager with the given signing secret,
// refresh-token digest secret, and access token lifetime.
func NewTokenManager(secret, refreshSecret string, accessExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:        []byte(secret),
		refreshSecret: []byte(refreshSecret),
		accessExpiry:  accessExpiry,
	}
}

// IssueAccessToken creates a signed JWT access token for the username,
// expiring accessExpiry from now.
func (m *TokenManager) IssueAccessToken(username string) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessExpiry)),
			Issuer:    "auth-service",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signedToken, nil
}

// ParseAccessToken parses and validates an access token, returning the claims.
// It rejects tokens with a mismatched signature, an unexpected signing method,
// or an elapsed expiry.
func (m *TokenManager) ParseAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}

	return claims, nil
}

// VerifyAccessToken reports whether the token is well formed, correctly
// signed, and unexpired. It never returns an error: any failure is false.
func (m *TokenManager) VerifyAccessToken(tokenString string) bool {
	_, err := m.ParseAccessToken(tokenString)
	return err == nil
}

// NewRefreshToken produces an opaque random refresh token. It carries no
// claims and no expiry; its validity is solely "currently stored against
// some user".
func (m *TokenManager) NewRefreshToken() string {
	return uuid.New().String()
}

// HashRefreshToken returns the at-rest digest of a refresh token:
// hex(HMAC-SHA256(refreshSecret, token)). Only the digest is persisted, so a
// leaked user table does not yield usable refresh tokens.
func (m *TokenManager) HashRefreshToken(token string) string {
	mac := hmac.New(sha256.New, m.refreshSecret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
