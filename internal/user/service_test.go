package user

import (
	"context"
	"errors"
	"strings"
	"testing"

	"microblog/internal/auth"
	"microblog/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of UserRepositoryInterface
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *User) (*User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func newFileService(t *testing.T) UserServiceInterface {
	t.Helper()
	repo, err := NewFileRepository(t.TempDir())
	require.NoError(t, err)
	return NewUserService(repo, auth.NewPasswordHasher(bcrypt.MinCost), nil)
}

func TestRegister_SecondSignupConflicts(t *testing.T) {
	svc := newFileService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "pw123")
	require.NoError(t, err)

	for _, pw := range []string{"pw123", "other", "x"} {
		_, err := svc.Register(ctx, "alice", pw)
		assert.ErrorIs(t, err, common.ErrConflict, "password %q", pw)
	}
}

func TestRegisterThenVerify_RoundTrip(t *testing.T) {
	svc := newFileService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "alice", "pw123")
	require.NoError(t, err)
	assert.NotEqual(t, "pw123", registered.PasswordHash)

	verified, err := svc.Verify(ctx, "alice", "pw123")
	require.NoError(t, err)
	assert.Equal(t, "alice", verified.Username)

	for _, wrong := range []string{"pw1234", "PW123", "", " pw123"} {
		_, err := svc.Verify(ctx, "alice", wrong)
		assert.Error(t, err, "password %q", wrong)
	}
}

func TestVerify_UnknownUserAndWrongPasswordAreIndistinguishable(t *testing.T) {
	svc := newFileService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "pw123")
	require.NoError(t, err)

	_, wrongPassword := svc.Verify(ctx, "alice", "nope")
	_, unknownUser := svc.Verify(ctx, "bob", "nope")

	assert.ErrorIs(t, wrongPassword, common.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, common.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestRegister_MissingFields(t *testing.T) {
	svc := newFileService(t)

	_, err := svc.Register(context.Background(), "", "pw")
	assert.ErrorIs(t, err, common.ErrMissingFields)

	_, err = svc.Register(context.Background(), "alice", "")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	svc := newFileService(t)

	_, err := svc.Register(context.Background(), "alice", strings.Repeat("p", 100))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestRegister_ConflictFromConcurrentInsert(t *testing.T) {
	repo := new(MockUserRepository)
	svc := NewUserService(repo, auth.NewPasswordHasher(bcrypt.MinCost), nil)

	repo.On("GetByUsername", mock.Anything, "alice").Return(nil, common.ErrNotFound)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*user.User")).Return(nil, common.ErrConflict)

	_, err := svc.Register(context.Background(), "alice", "pw")

	assert.ErrorIs(t, err, common.ErrConflict)
	repo.AssertExpectations(t)
}

func TestRegister_StoreFailure(t *testing.T) {
	repo := new(MockUserRepository)
	svc := NewUserService(repo, auth.NewPasswordHasher(bcrypt.MinCost), nil)

	repo.On("GetByUsername", mock.Anything, "alice").Return(nil, common.ErrNotFound)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("disk full"))

	_, err := svc.Register(context.Background(), "alice", "pw")

	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestRegister_StoresHashNotPassword(t *testing.T) {
	repo := new(MockUserRepository)
	svc := NewUserService(repo, auth.NewPasswordHasher(bcrypt.MinCost), nil)

	repo.On("GetByUsername", mock.Anything, "alice").Return(nil, common.ErrNotFound)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(u *User) bool {
		return u.Username == "alice" && bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("pw")) == nil
	})).Return(&User{ID: 1, Username: "alice"}, nil)

	_, err := svc.Register(context.Background(), "alice", "pw")

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestVerify_StoreFailure(t *testing.T) {
	repo := new(MockUserRepository)
	svc := NewUserService(repo, auth.NewPasswordHasher(bcrypt.MinCost), nil)

	repo.On("GetByUsername", mock.Anything, "alice").Return(nil, errors.New("timeout"))

	_, err := svc.Verify(context.Background(), "alice", "pw")

	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestExists(t *testing.T) {
	svc := newFileService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "pw")
	require.NoError(t, err)

	ok, err := svc.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Exists(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Exists(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}
