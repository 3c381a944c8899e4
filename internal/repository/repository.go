package repository

import (
	"context"

	"github.com/authgate/auth-service/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user record. The write is conditional on the
	// username being absent: a duplicate fails with ErrAlreadyExists rather
	// than being detected by a prior read.
	Create(ctx context.Context, user *domain.User) error

	// GetByUsername retrieves a user by their unique username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// GetByRefreshTokenHash resolves a refresh-token digest to the single
	// user currently holding it, via the secondary index.
	GetByRefreshTokenHash(ctx context.Context, tokenHash string) (*domain.User, error)

	// SetRefreshTokenHash overwrites the user's stored refresh-token digest,
	// invalidating whatever value was there before.
	SetRefreshTokenHash(ctx context.Context, username, tokenHash string) error

	// ClearRefreshTokenHash removes the stored digest wherever it matches.
	// Clearing a digest that is no longer stored is a no-op, not an error.
	ClearRefreshTokenHash(ctx context.Context, tokenHash string) error
}
