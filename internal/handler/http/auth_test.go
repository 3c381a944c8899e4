package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/authgate/auth-service/internal/auth"
	"github.com/authgate/auth-service/internal/crypto"
	"github.com/authgate/auth-service/internal/domain"
	"github.com/authgate/auth-service/internal/service"
	apperrors "github.com/authgate/auth-service/pkg/errors"
	"github.com/authgate/auth-service/pkg/health"
	"github.com/authgate/auth-service/pkg/logger"
)

// memStore is a minimal in-memory user store for end-to-end handler tests.
type memStore struct {
	users map[string]*domain.User
}

func (s *memStore) Create(_ context.Context, u *domain.User) error {
	if _, ok := s.users[u.Username]; ok {
		return apperrors.AlreadyExists("user", "username", u.Username)
	}
	copied := *u
	s.users[u.Username] = &copied
	return nil
}

func (s *memStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	u, ok := s.users[username]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memStore) GetByRefreshTokenHash(_ context.Context, tokenHash string) (*domain.User, error) {
	for _, u := range s.users {
		if u.RefreshTokenHash != nil && *u.RefreshTokenHash == tokenHash {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *memStore) SetRefreshTokenHash(_ context.Context, username, tokenHash string) error {
	u, ok := s.users[username]
	if !ok {
		return apperrors.NotFound("user", username)
	}
	u.RefreshTokenHash = &tokenHash
	return nil
}

func (s *memStore) ClearRefreshTokenHash(_ context.Context, tokenHash string) error {
	for _, u := range s.users {
		if u.RefreshTokenHash != nil && *u.RefreshTokenHash == tokenHash {
			u.RefreshTokenHash = nil
		}
	}
	return nil
}

type noopEvents struct{}

func (noopEvents) UserRegistered(context.Context, string) {}
func (noopEvents) UserLoggedIn(context.Context, string)   {}
func (noopEvents) UserLoggedOut(context.Context, string)  {}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	key := make([]byte, 32)
	cipher, err := crypto.NewCipher(key)
	require.NoError(t, err)

	l := logger.NewWithWriter("auth-service-test", "error", testLogWriter{t})
	svc := service.NewAuthService(
		&memStore{users: make(map[string]*domain.User)},
		auth.NewTokenManager("test-signing-secret", "test-refresh-secret", 15*time.Minute),
		cipher,
		crypto.NewBcryptHasher(bcrypt.MinCost),
		domain.SchemeHashed,
		noopEvents{},
		l,
	)

	return NewRouter(RouterConfig{
		Auth:           NewAuthHandler(svc, l),
		Data:           NewDataHandler(),
		Health:         health.NewHandler(),
		TokenValidator: svc.Authenticate,
		AllowedOrigins: []string{"*"},
		Logger:         l,
	})
}

type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func registerUser(t *testing.T, router http.Handler, username, password string) domain.TokenPair {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"username": username, "password": password,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var pair domain.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	return pair
}

func TestRegisterEndpoint(t *testing.T) {
	router := newTestRouter(t)

	registerUser(t, router, "alice", "password123")

	rec := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"username": "alice", "password": "password456",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_EXISTS", decodeBody(t, rec)["code"])
}

func TestRegisterEndpoint_Validation(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"username": "alice",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "INVALID_INPUT", body["code"])
	assert.Contains(t, body, "fields")
}

func TestRegisterEndpoint_ShortCredentialsAccepted(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"username": "alice", "password": "pw1",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	login := doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice", "password": "pw1",
	}, nil)
	assert.Equal(t, http.StatusOK, login.Code)
}

func TestRegisterEndpoint_MalformedBody(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginEndpoint(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "alice", "password123")

	rec := doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice", "password": "password123",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotEmpty(t, body["refreshToken"])
}

func TestLoginEndpoint_BadCredentials(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "alice", "password123")

	wrongPass := doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice", "password": "wrong-password",
	}, nil)
	unknownUser := doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"username": "nobody", "password": "password123",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	assert.Equal(t, decodeBody(t, wrongPass)["message"], decodeBody(t, unknownUser)["message"])
}

func TestRefreshEndpoint(t *testing.T) {
	router := newTestRouter(t)
	pair := registerUser(t, router, "alice", "password123")

	rec := doJSON(t, router, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": pair.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotContains(t, body, "refreshToken")
}

func TestRefreshEndpoint_InvalidToken(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": "never-issued",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/auth/refresh", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	router := newTestRouter(t)
	pair := registerUser(t, router, "alice", "password123")

	rec := doJSON(t, router, http.MethodPost, "/auth/logout", nil, map[string]string{
		"Authorization": "Bearer " + pair.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "logged out successfully", decodeBody(t, rec)["message"])

	// The refresh token no longer works, and logging out again still succeeds.
	refresh := doJSON(t, router, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": pair.RefreshToken,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, refresh.Code)

	again := doJSON(t, router, http.MethodPost, "/auth/logout", nil, map[string]string{
		"Authorization": "Bearer " + pair.RefreshToken,
	})
	assert.Equal(t, http.StatusOK, again.Code)
}

func TestLogoutEndpoint_MissingToken(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/logout", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBasicEndpoint(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "alice", "password123")

	req := httptest.NewRequest(http.MethodGet, "/auth/basic", nil)
	req.SetBasicAuth("alice", "password123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Authorized", decodeBody(t, rec)["message"])
}

func TestBasicEndpoint_Failures(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "alice", "password123")

	// Missing header, wrong auth scheme, unknown user, and password mismatch
	// all come back as the same 401.
	wrong := httptest.NewRequest(http.MethodGet, "/auth/basic", nil)
	wrong.SetBasicAuth("alice", "wrong-password")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, wrong)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	unknown := httptest.NewRequest(http.MethodGet, "/auth/basic", nil)
	unknown.SetBasicAuth("nobody", "password123")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, unknown)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	missing := httptest.NewRequest(http.MethodGet, "/auth/basic", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, missing)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	bearer := httptest.NewRequest(http.MethodGet, "/auth/basic", nil)
	bearer.Header.Set("Authorization", "Bearer some-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, bearer)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDataPublicEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/data/public", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "This is public data", decodeBody(t, rec)["message"])
}

func TestDataPrivateEndpoint(t *testing.T) {
	router := newTestRouter(t)
	pair := registerUser(t, router, "alice", "password123")

	rec := doJSON(t, router, http.MethodGet, "/data/private", nil, map[string]string{
		"Authorization": "Bearer " + pair.AccessToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "This is private data", body["message"])
	assert.Equal(t, "alice", body["username"])
}

func TestDataPrivateEndpoint_Unauthorized(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc123"},
		{"garbage token", "Bearer not-a-real-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			rec := doJSON(t, router, http.MethodGet, "/data/private", nil, headers)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", decodeBody(t, rec)["code"])
		})
	}
}

func TestUnknownRouteReturnsJSON(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeBody(t, rec)["code"])
}

func TestHealthLiveEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCorrelationIDEchoed(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/data/public", nil, map[string]string{
		"X-Correlation-ID": "test-cid-42",
	})
	assert.Equal(t, "test-cid-42", rec.Header().Get("X-Correlation-ID"))

	// Generated when absent.
	rec = doJSON(t, router, http.MethodGet, "/data/public", nil, nil)
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestFullTokenLifecycle(t *testing.T) {
	router := newTestRouter(t)

	pair := registerUser(t, router, "bob", "password123")

	// Fresh access token via refresh, then use it against the gated endpoint.
	rec := doJSON(t, router, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": pair.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	accessToken := fmt.Sprintf("%v", decodeBody(t, rec)["accessToken"])

	private := doJSON(t, router, http.MethodGet, "/data/private", nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	assert.Equal(t, http.StatusOK, private.Code)

	// Logout kills the refresh token but not the outstanding access token.
	logout := doJSON(t, router, http.MethodPost, "/auth/logout", nil, map[string]string{
		"Authorization": "Bearer " + pair.RefreshToken,
	})
	require.Equal(t, http.StatusOK, logout.Code)

	refreshAfter := doJSON(t, router, http.MethodPost, "/auth/refresh", map[string]string{
		"refreshToken": pair.RefreshToken,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, refreshAfter.Code)

	privateAfter := doJSON(t, router, http.MethodGet, "/data/private", nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	assert.Equal(t, http.StatusOK, privateAfter.Code)
}
