package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCredentialScheme(t *testing.T) {
	s, err := ParseCredentialScheme("hashed")
	require.NoError(t, err)
	assert.Equal(t, SchemeHashed, s)

	s, err = ParseCredentialScheme("encrypted")
	require.NoError(t, err)
	assert.Equal(t, SchemeEncrypted, s)

	for _, bad := range []string{"", "plaintext", "HASHED", "bcrypt"} {
		_, err := ParseCredentialScheme(bad)
		assert.Error(t, err, "scheme %q", bad)
	}
}

func TestUser_SecretsNotSerialized(t *testing.T) {
	hash := "digest"
	u := User{
		Username:         "alice",
		Scheme:           SchemeHashed,
		Credential:       "$2a$10$secret",
		RefreshTokenHash: &hash,
	}

	data, err := json.Marshal(u)
	require.NoError(t, err)

	assert.Contains(t, string(data), "alice")
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "digest")
}
