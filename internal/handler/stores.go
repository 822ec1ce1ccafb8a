package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"microblog/internal/common"
	"microblog/internal/config"
	"microblog/internal/post"
	"microblog/internal/user"
)

// NewRepositories builds the user and post stores for cfg.Storage.Backend.
func NewRepositories(db *sql.DB, cfg *config.Config) (user.UserRepositoryInterface, post.PostRepositoryInterface, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendPostgres, "":
		if db == nil {
			return nil, nil, fmt.Errorf("postgres backend needs a database connection")
		}
		return user.NewPostgresRepository(db), post.NewPostgresRepository(db), nil

	case config.StorageBackendFile:
		users, err := user.NewFileRepository(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, err
		}
		posts, err := post.NewFileRepository(cfg.Storage.DataDir, authorExists(users))
		if err != nil {
			return nil, nil, err
		}
		return users, posts, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func authorExists(users user.UserRepositoryInterface) post.AuthorExistsFunc {
	return func(ctx context.Context, author string) (bool, error) {
		_, err := users.GetByUsername(ctx, author)
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	}
}
