package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"microblog/internal/common"
	"microblog/internal/utils"

	"github.com/sirupsen/logrus"
)

// UserRepositoryInterface is the credential store. Create must fail with
// common.ErrConflict when the username is taken, even under concurrent
// signups; GetByUsername returns common.ErrNotFound for unknown users.
type UserRepositoryInterface interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

type PostgresRepository struct {
	db utils.DBTX
}

func NewPostgresRepository(db utils.DBTX) UserRepositoryInterface {
	return &PostgresRepository{db: db}
}

// Create inserts the user. The unique constraint on username decides races
// between concurrent signups.
func (r *PostgresRepository) Create(ctx context.Context, user *User) (*User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (username) DO NOTHING
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		user.Username,
		user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrConflict
		}
		logrus.WithError(err).Error("Failed to create user")
		return nil, fmt.Errorf("db error: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("User created successfully")

	return user, nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = $1
	`

	user := &User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		logrus.WithError(err).Error("Failed to get user by username")
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}
