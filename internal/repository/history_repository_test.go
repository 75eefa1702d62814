package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ageshift/internal/domain"
)

func entry(data string) domain.HistoryEntry {
	img := domain.EncodedImage{MimeType: "image/png", Data: data}
	return domain.HistoryEntry{Original: img, Child: img, MiddleAged: img, Elderly: img}
}

func TestAddAssignsIDAndTimestamp(t *testing.T) {
	repo := NewHistoryRepository(5, zap.NewNop())

	added, err := repo.Add(context.Background(), entry("Zmlyc3Q="))
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.False(t, added.CreatedAt.IsZero())
}

func TestListNewestFirst(t *testing.T) {
	repo := NewHistoryRepository(5, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Add(ctx, entry(fmt.Sprintf("ZW50cnk%d", i)))
		require.NoError(t, err)
	}

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "ZW50cnk2", entries[0].Original.Data)
	assert.Equal(t, "ZW50cnk1", entries[1].Original.Data)
	assert.Equal(t, "ZW50cnk0", entries[2].Original.Data)
}

func TestCapacityEvictsOldest(t *testing.T) {
	repo := NewHistoryRepository(2, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := repo.Add(ctx, entry(fmt.Sprintf("aW1n%d", i)))
		require.NoError(t, err)
	}

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "aW1n3", entries[0].Original.Data)
	assert.Equal(t, "aW1n2", entries[1].Original.Data)
}

func TestListReturnsCopy(t *testing.T) {
	repo := NewHistoryRepository(5, zap.NewNop())
	ctx := context.Background()

	_, err := repo.Add(ctx, entry("b3JpZ2luYWw="))
	require.NoError(t, err)

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	entries[0].Original.Data = "dGFtcGVyZWQ="

	fresh, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b3JpZ2luYWw=", fresh[0].Original.Data)
}

func TestCancelledContext(t *testing.T) {
	repo := NewHistoryRepository(5, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Add(ctx, entry("eA=="))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = repo.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
