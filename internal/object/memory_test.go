package object

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	obj := New()
	obj.Bucket = "media"
	obj.Key = "2024/a.mp4"

	require.NoError(t, repo.Save(ctx, obj))

	found, err := repo.FindByID(ctx, obj.ID)
	require.NoError(t, err)
	assert.Equal(t, obj.Key, found.Key)

	// Stored record is isolated from later mutations of the input.
	obj.Key = "changed"
	found, err = repo.FindByID(ctx, obj.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024/a.mp4", found.Key)
}

func TestMemoryRepository_FindByID_NotFound(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestMemoryRepository_Save_Overwrites(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	obj := New()
	obj.MimeType = "video/mp4"
	require.NoError(t, repo.Save(ctx, obj))

	obj.SetPersistentInfo(&PersistentInfo{AvthumbImg: "2024/a.jpg"})
	require.NoError(t, repo.Save(ctx, obj))

	found, err := repo.FindByID(ctx, obj.ID)
	require.NoError(t, err)
	require.NotNil(t, found.PersistentInfo)
	assert.Equal(t, "2024/a.jpg", found.PersistentInfo.AvthumbImg)
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	for range 3 {
		require.NoError(t, repo.Save(ctx, New()))
	}

	list, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}
