package post

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"microblog/internal/filestore"

	"github.com/sirupsen/logrus"
)

const postsFileName = "posts.json"

type filePost struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Image     *string   `json:"image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuthorExistsFunc reports whether author has an account.
type AuthorExistsFunc func(ctx context.Context, author string) (bool, error)

// FileRepository keeps posts in <dataDir>/posts.json. Appends are atomic
// within one process only.
type FileRepository struct {
	file         *filestore.JSONFile[[]filePost]
	authorExists AuthorExistsFunc
}

// NewFileRepository opens the posts file. authorExists may be nil, which
// skips the author check.
func NewFileRepository(dataDir string, authorExists AuthorExistsFunc) (*FileRepository, error) {
	file, err := filestore.NewJSONFile[[]filePost](filepath.Join(dataDir, postsFileName))
	if err != nil {
		return nil, err
	}
	return &FileRepository{file: file, authorExists: authorExists}, nil
}

func (r *FileRepository) Append(ctx context.Context, post *Post) (*Post, error) {
	return r.AppendIfAllowed(ctx, post, func(*time.Time) error { return nil })
}

func (r *FileRepository) AppendIfAllowed(ctx context.Context, post *Post, check CheckFunc) (*Post, error) {
	if r.authorExists != nil {
		ok, err := r.authorExists(ctx, post.Author)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrUnknownAuthor
		}
	}

	err := r.file.Update(func(posts *[]filePost) error {
		var maxID int64
		var last *time.Time
		for i := range *posts {
			p := &(*posts)[i]
			if p.ID > maxID {
				maxID = p.ID
			}
			if p.Author == post.Author && (last == nil || p.Timestamp.After(*last)) {
				t := p.Timestamp
				last = &t
			}
		}

		if err := check(last); err != nil {
			return err
		}

		if post.Timestamp.IsZero() {
			post.Timestamp = time.Now().UTC().Truncate(time.Microsecond)
		}
		post.ID = maxID + 1
		*posts = append(*posts, filePost{
			ID:        post.ID,
			Author:    post.Author,
			Content:   post.Content,
			Image:     post.Image,
			Timestamp: post.Timestamp,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"post_id": post.ID,
		"author":  post.Author,
	}).Info("Post created successfully")

	return post, nil
}

func (r *FileRepository) ListNewestFirst(ctx context.Context) ([]*Post, error) {
	stored, err := r.file.Read()
	if err != nil {
		logrus.WithError(err).WithField("path", r.file.Path()).Error("Failed to read posts file")
		return nil, err
	}

	posts := make([]*Post, 0, len(stored))
	for _, p := range stored {
		posts = append(posts, &Post{
			ID:        p.ID,
			Author:    p.Author,
			Content:   p.Content,
			Image:     p.Image,
			Timestamp: p.Timestamp,
		})
	}

	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].Timestamp.Equal(posts[j].Timestamp) {
			return posts[i].Timestamp.After(posts[j].Timestamp)
		}
		return posts[i].ID > posts[j].ID
	})

	return posts, nil
}

func (r *FileRepository) LastPostTime(ctx context.Context, author string) (*time.Time, error) {
	stored, err := r.file.Read()
	if err != nil {
		logrus.WithError(err).WithField("path", r.file.Path()).Error("Failed to read posts file")
		return nil, err
	}

	var last *time.Time
	for _, p := range stored {
		if p.Author == author && (last == nil || p.Timestamp.After(*last)) {
			t := p.Timestamp
			last = &t
		}
	}
	return last, nil
}
