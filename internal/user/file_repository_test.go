package user

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"microblog/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRepository_CreateAndGet(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFileRepository(dir)
	require.NoError(t, err)
	ctx := context.Background()

	created, err := repo.Create(ctx, &User{Username: "alice", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)

	reopened, err := NewFileRepository(dir)
	require.NoError(t, err)
	got, err := reopened.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, created.ID, got.ID)
}

func TestFileRepository_UsernamesAreCaseSensitive(t *testing.T) {
	repo, err := NewFileRepository(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = repo.Create(ctx, &User{Username: "alice", PasswordHash: "h"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &User{Username: "Alice", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = repo.GetByUsername(ctx, "ALICE")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFileRepository_DuplicateConflicts(t *testing.T) {
	repo, err := NewFileRepository(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = repo.Create(ctx, &User{Username: "alice", PasswordHash: "first"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &User{Username: "alice", PasswordHash: "second"})
	assert.ErrorIs(t, err, common.ErrConflict)

	got, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "first", got.PasswordHash, "first signup wins")
}

func TestFileRepository_ConcurrentSignupsOneWinner(t *testing.T) {
	repo, err := NewFileRepository(t.TempDir())
	require.NoError(t, err)

	var wins, conflicts int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(context.Background(), &User{Username: "alice", PasswordHash: "h"})
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case assert.ErrorIs(t, err, common.ErrConflict):
				atomic.AddInt32(&conflicts, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(9), conflicts)
}
