package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"microblog/internal/common"
	"microblog/internal/utils"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

const foreignKeyViolation = "23503"

// ErrUnknownAuthor is returned when a post names an author with no account.
var ErrUnknownAuthor = fmt.Errorf("%w: unknown author", common.ErrUnauthenticated)

// CheckFunc decides whether a post may be appended given the author's most
// recent post time, or nil when the author never posted.
type CheckFunc func(last *time.Time) error

type PostRepositoryInterface interface {
	Append(ctx context.Context, post *Post) (*Post, error)
	// AppendIfAllowed runs check and the insert atomically with respect to
	// other appends by the same author. The check error is returned as is.
	AppendIfAllowed(ctx context.Context, post *Post, check CheckFunc) (*Post, error)
	ListNewestFirst(ctx context.Context) ([]*Post, error)
	LastPostTime(ctx context.Context, author string) (*time.Time, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) PostRepositoryInterface {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, post *Post) (*Post, error) {
	if err := insertPost(ctx, r.db, post); err != nil {
		return nil, err
	}
	return post, nil
}

// AppendIfAllowed serializes appends per author with a transaction scoped
// advisory lock, so it also holds across API processes.
func (r *PostgresRepository) AppendIfAllowed(ctx context.Context, post *Post, check CheckFunc) (*Post, error) {
	err := utils.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, post.Author); err != nil {
			logrus.WithError(err).Error("Failed to acquire author lock")
			return fmt.Errorf("db error: %w", err)
		}

		last, err := lastPostTime(ctx, tx, post.Author)
		if err != nil {
			return err
		}
		if err := check(last); err != nil {
			return err
		}

		return insertPost(ctx, tx, post)
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (r *PostgresRepository) ListNewestFirst(ctx context.Context) ([]*Post, error) {
	query := `
		SELECT id, author, content, image, created_at
		FROM posts
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		logrus.WithError(err).Error("Failed to list posts")
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	posts := []*Post{}
	for rows.Next() {
		var p Post
		var image sql.NullString
		if err := rows.Scan(&p.ID, &p.Author, &p.Content, &image, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if image.Valid {
			p.Image = &image.String
		}
		p.Timestamp = p.Timestamp.UTC()
		posts = append(posts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return posts, nil
}

func (r *PostgresRepository) LastPostTime(ctx context.Context, author string) (*time.Time, error) {
	return lastPostTime(ctx, r.db, author)
}

func lastPostTime(ctx context.Context, q utils.DBTX, author string) (*time.Time, error) {
	var last sql.NullTime
	err := q.QueryRowContext(ctx, `SELECT MAX(created_at) FROM posts WHERE author = $1`, author).Scan(&last)
	if err != nil {
		logrus.WithError(err).WithField("author", author).Error("Failed to get last post time")
		return nil, fmt.Errorf("db error: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time.UTC()
	return &t, nil
}

func insertPost(ctx context.Context, q utils.DBTX, post *Post) error {
	if post.Timestamp.IsZero() {
		post.Timestamp = time.Now().UTC().Truncate(time.Microsecond)
	}

	query := `
		INSERT INTO posts (author, content, image, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var image sql.NullString
	if post.Image != nil {
		image = sql.NullString{String: *post.Image, Valid: true}
	}

	err := q.QueryRowContext(ctx, query,
		post.Author,
		post.Content,
		image,
		post.Timestamp,
	).Scan(&post.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ErrUnknownAuthor
		}
		logrus.WithError(err).Error("Failed to insert post")
		return fmt.Errorf("db error: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"post_id": post.ID,
		"author":  post.Author,
	}).Info("Post created successfully")

	return nil
}
