package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/pkg/errors"
)

type article struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

func setupCache(t *testing.T) (*CacheRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo, err := NewCacheRepo(client, DefaultKeyPrefix)
	require.NoError(t, err)
	return repo, mr
}

func TestNewCacheRepo_NilClient(t *testing.T) {
	_, err := NewCacheRepo(nil, "")
	assert.Error(t, err)
}

func TestCacheRepo_SetGetJSON(t *testing.T) {
	repo, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, repo.SetJSON(ctx, "article:abc", article{Text: "body", Title: "Alan Turing"}, time.Minute))

	var got article
	require.NoError(t, repo.GetJSON(ctx, "article:abc", &got))
	assert.Equal(t, article{Text: "body", Title: "Alan Turing"}, got)

	assert.True(t, mr.Exists("wikiquiz:article:abc"))
	assert.Equal(t, time.Minute, mr.TTL("wikiquiz:article:abc"))
}

func TestCacheRepo_Miss(t *testing.T) {
	repo, _ := setupCache(t)

	var got article
	err := repo.GetJSON(context.Background(), "quiz:1", &got)

	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCacheRepo_Expiry(t *testing.T) {
	repo, mr := setupCache(t)
	ctx := context.Background()
	require.NoError(t, repo.SetJSON(ctx, "quiz:1", article{Title: "x"}, time.Second))

	mr.FastForward(2 * time.Second)

	var got article
	assert.True(t, errors.Is(repo.GetJSON(ctx, "quiz:1", &got), apperrors.ErrNotFound))
}

func TestCacheRepo_CorruptValueIsDropped(t *testing.T) {
	repo, mr := setupCache(t)
	require.NoError(t, mr.Set("wikiquiz:quiz:2", "{not json"))

	var got article
	err := repo.GetJSON(context.Background(), "quiz:2", &got)

	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrNotFound))
	assert.False(t, mr.Exists("wikiquiz:quiz:2"))
}

func TestCacheRepo_DeleteAndPing(t *testing.T) {
	repo, mr := setupCache(t)
	ctx := context.Background()
	require.NoError(t, repo.SetJSON(ctx, "quiz:3", article{}, time.Minute))

	require.NoError(t, repo.Delete(ctx, "quiz:3"))
	assert.False(t, mr.Exists("wikiquiz:quiz:3"))
	assert.NoError(t, repo.Delete(ctx, "quiz:missing"))

	assert.NoError(t, repo.Ping(ctx))
	mr.Close()
	assert.Error(t, repo.Ping(ctx))
}
