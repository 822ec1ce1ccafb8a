package user

import (
	"context"
	"path/filepath"
	"time"

	"microblog/internal/common"
	"microblog/internal/filestore"

	"github.com/sirupsen/logrus"
)

const usersFileName = "users.json"

type fileUser struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// FileRepository keeps users in <dataDir>/users.json.
type FileRepository struct {
	file *filestore.JSONFile[[]fileUser]
	now  func() time.Time
}

func NewFileRepository(dataDir string) (*FileRepository, error) {
	file, err := filestore.NewJSONFile[[]fileUser](filepath.Join(dataDir, usersFileName))
	if err != nil {
		return nil, err
	}
	return &FileRepository{file: file, now: time.Now}, nil
}

func (r *FileRepository) Create(ctx context.Context, user *User) (*User, error) {
	err := r.file.Update(func(users *[]fileUser) error {
		var maxID int64
		for _, u := range *users {
			if u.Username == user.Username {
				return common.ErrConflict
			}
			if u.ID > maxID {
				maxID = u.ID
			}
		}

		user.ID = maxID + 1
		user.CreatedAt = r.now().UTC()
		*users = append(*users, fileUser{
			ID:           user.ID,
			Username:     user.Username,
			PasswordHash: user.PasswordHash,
			CreatedAt:    user.CreatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("User created successfully")

	return user, nil
}

func (r *FileRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	users, err := r.file.Read()
	if err != nil {
		logrus.WithError(err).WithField("path", r.file.Path()).Error("Failed to read users file")
		return nil, err
	}

	for _, u := range users {
		if u.Username == username {
			return &User{
				ID:           u.ID,
				Username:     u.Username,
				PasswordHash: u.PasswordHash,
				CreatedAt:    u.CreatedAt,
			}, nil
		}
	}
	return nil, common.ErrNotFound
}
