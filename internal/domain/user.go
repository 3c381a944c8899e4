package domain

import (
	"fmt"
	"time"
)

// CredentialScheme tags how a user's credential is stored. The two schemes
// are incompatible: a record is verified only by the scheme it was written
// with, and a deployment registers new users under exactly one scheme.
type CredentialScheme string

const (
	// SchemeHashed stores a one-way bcrypt digest of the password.
	SchemeHashed CredentialScheme = "hashed"
	// SchemeEncrypted stores the password reversibly encrypted under the
	// server key, as iv||ciphertext (legacy records).
	SchemeEncrypted CredentialScheme = "encrypted"
)

// ParseCredentialScheme validates a scheme string from configuration or storage.
func ParseCredentialScheme(s string) (CredentialScheme, error) {
	switch CredentialScheme(s) {
	case SchemeHashed, SchemeEncrypted:
		return CredentialScheme(s), nil
	default:
		return "", fmt.Errorf("unknown credential scheme %q", s)
	}
}

// User represents a registered user record.
//
// RefreshTokenHash holds the at-rest digest of the single live refresh token,
// or nil when no session is active. At most one record carries any given
// digest (partial unique index), so a presented refresh token resolves to
// exactly one user or to nothing.
type User struct {
	Username         string           `json:"username"`
	Scheme           CredentialScheme `json:"-"`
	Credential       string           `json:"-"`
	RefreshTokenHash *string          `json:"-"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TokenPair holds an access and refresh token pair as returned to clients.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
