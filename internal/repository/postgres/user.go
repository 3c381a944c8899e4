package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/authgate/auth-service/pkg/errors"
	"github.com/authgate/auth-service/internal/domain"
)

// DB is the subset of pgxpool.Pool used by the repository. Satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository implements repository.UserRepository using PostgreSQL.
// The table name comes from configuration (USERS_TABLE) and is interpolated
// once at construction; it is validated as an identifier at config load.
type UserRepository struct {
	db    DB
	table string
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db DB, table string) *UserRepository {
	return &UserRepository{db: db, table: table}
}

const userColumns = "username, credential_scheme, credential, refresh_token_hash, created_at, updated_at"

// Create inserts a new user record. The primary key on username makes the
// insert a conditional write: exactly one of two racing registrations
// succeeds, the other observes a unique violation.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6)`, r.table, userColumns)

	_, err := r.db.Exec(ctx, query,
		u.Username,
		string(u.Scheme),
		u.Credential,
		u.RefreshTokenHash,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "username", u.Username)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByUsername retrieves a user by their username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE username = $1`, userColumns, r.table)

	return r.scanUser(ctx, query, username)
}

// GetByRefreshTokenHash resolves a refresh-token digest to its user. The
// partial unique index on refresh_token_hash guarantees at most one match.
func (r *UserRepository) GetByRefreshTokenHash(ctx context.Context, tokenHash string) (*domain.User, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE refresh_token_hash = $1`, userColumns, r.table)

	return r.scanUser(ctx, query, tokenHash)
}

// SetRefreshTokenHash overwrites the user's stored refresh-token digest.
func (r *UserRepository) SetRefreshTokenHash(ctx context.Context, username, tokenHash string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET refresh_token_hash = $1, updated_at = $2
		WHERE username = $3`, r.table)

	ct, err := r.db.Exec(ctx, query, tokenHash, time.Now().UTC(), username)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", username)
	}

	return nil
}

// ClearRefreshTokenHash removes the digest wherever it is stored. Zero rows
// affected means the token was already rotated out or cleared; that is a
// successful no-op.
func (r *UserRepository) ClearRefreshTokenHash(ctx context.Context, tokenHash string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET refresh_token_hash = NULL, updated_at = $1
		WHERE refresh_token_hash = $2`, r.table)

	_, err := r.db.Exec(ctx, query, time.Now().UTC(), tokenHash)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	return nil
}

// scanUser executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var (
		u      domain.User
		scheme string
	)

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&u.Username,
		&scheme,
		&u.Credential,
		&u.RefreshTokenHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	parsed, err := domain.ParseCredentialScheme(scheme)
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Scheme = parsed

	return &u, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
