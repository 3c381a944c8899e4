package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validateStub(username string, err error) TokenValidator {
	return func(token string) (string, error) {
		if err != nil {
			return "", err
		}
		return username, nil
	}
}

func TestAuth_ValidTokenInjectsUsername(t *testing.T) {
	var gotUsername string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUsername = UsernameFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	h := Auth(validateStub("alice", nil))(next)

	req := httptest.NewRequest(http.MethodGet, "/data/private", nil)
	req.Header.Set("Authorization", "Bearer some-valid-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", gotUsername)
}

func TestAuth_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		header      string
		validateErr error
	}{
		{"missing header", "", nil},
		{"not bearer", "Token abc", nil},
		{"no token part", "Bearer", nil},
		{"invalid token", "Bearer bad-token", errors.New("invalid token")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("next handler should not run")
			})
			h := Auth(validateStub("alice", tt.validateErr))(next)

			req := httptest.NewRequest(http.MethodGet, "/data/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestAuth_CaseInsensitiveBearer(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Auth(validateStub("alice", nil))(next)

	req := httptest.NewRequest(http.MethodGet, "/data/private", nil)
	req.Header.Set("Authorization", "bearer some-valid-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUsernameFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, UsernameFromContext(req.Context()))
}
