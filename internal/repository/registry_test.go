package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HikariJones/Inclusive-AI-UMKM/internal/common"
)

func newTestRegistry(t *testing.T) (ArtifactRegistry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.db")
	reg, err := NewBoltRegistry(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg, path
}

func TestRegisterAndGet(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	art, err := reg.Register(ctx, "warung-ani", "/data/a.xlsx", created)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, art.ID)
	assert.Equal(t, "warung-ani", art.Owner)
	assert.Equal(t, "/data/a.xlsx", art.Location)
	assert.True(t, art.CreatedAt.Equal(created))

	got, err := reg.Get(ctx, "warung-ani", art.ID)
	require.NoError(t, err)
	assert.Equal(t, art.ID, got.ID)
	assert.Equal(t, art.Location, got.Location)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestGetUnknownID(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Get(context.Background(), "warung-ani", uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetForeignOwnerReadsAsNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	art, err := reg.Register(ctx, "warung-ani", "/data/a.xlsx", time.Now())
	require.NoError(t, err)

	_, err = reg.Get(ctx, "warung-budi", art.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRegisterRequiresOwnerAndLocation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Register(ctx, "", "/data/a.xlsx", time.Now())
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = reg.Register(ctx, "warung-ani", "", time.Now())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestListByOwnerNewestFirst(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	oldest, err := reg.Register(ctx, "warung-ani", "/data/old.xlsx", base)
	require.NoError(t, err)
	middle, err := reg.Register(ctx, "warung-ani", "/data/mid.xlsx", base.Add(time.Hour))
	require.NoError(t, err)
	newest, err := reg.Register(ctx, "warung-ani", "/data/new.xlsx", base.Add(2*time.Hour))
	require.NoError(t, err)

	// Another owner's entries must not show up in the scan.
	_, err = reg.Register(ctx, "warung-budi", "/data/other.xlsx", base.Add(3*time.Hour))
	require.NoError(t, err)

	list, err := reg.ListByOwner(ctx, "warung-ani")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, newest.ID, list[0].ID)
	assert.Equal(t, middle.ID, list[1].ID)
	assert.Equal(t, oldest.ID, list[2].ID)
}

func TestListByOwnerPrefixDoesNotLeak(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Register(ctx, "ani-extended", "/data/x.xlsx", time.Now())
	require.NoError(t, err)

	list, err := reg.ListByOwner(ctx, "ani")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRegistryPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	ctx := context.Background()

	reg, err := NewBoltRegistry(path, nil)
	require.NoError(t, err)
	art, err := reg.Register(ctx, "warung-ani", "/data/a.xlsx", time.Now())
	require.NoError(t, err)
	require.NoError(t, reg.Close())

	reopened, err := NewBoltRegistry(path, nil)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Get(ctx, "warung-ani", art.ID)
	require.NoError(t, err)
	assert.Equal(t, art.Location, got.Location)
}

func TestRegisterHonorsCancelledContext(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reg.Register(ctx, "warung-ani", "/data/a.xlsx", time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}
