package session

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSessionID(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

	id := GenerateSessionID(now)

	assert.Regexp(t, regexp.MustCompile(`^2024-03-09T14-05-[0-9a-f]{12}$`), id)
	assert.NotEqual(t, id, GenerateSessionID(now))
}

func TestStartRunReplacesPreviousResults(t *testing.T) {
	s := New()
	s.StartRun("run-1", "factsheet", map[string]string{"product_name": "Acme"})
	s.Update(func(st *State) {
		st.Generations = []models.GenerationResult{{Variant: 1, Text: "first"}}
		st.LastState = "done"
	})

	s.StartRun("run-2", "scrape", map[string]string{"url": "https://example.com"})
	st := s.Snapshot()

	assert.Equal(t, 2, st.RunCount)
	assert.Equal(t, "run-2", st.LastRunID)
	assert.Equal(t, "scrape", st.LastKind)
	assert.Empty(t, st.Generations)
	assert.Empty(t, st.LastState)
	assert.Equal(t, map[string]string{"url": "https://example.com"}, st.Inputs)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	s.StartRun("run-1", "factsheet", map[string]string{"product_name": "Acme"})

	snap := s.Snapshot()
	snap.Inputs["product_name"] = "changed"

	assert.Equal(t, "Acme", s.Inputs()["product_name"])
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, time.Minute)

	_, err := store.Load(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	s := New()
	require.NoError(t, store.Save(ctx, s))
	got, err := store.Load(ctx, s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	// Oldest entry is evicted beyond the size bound.
	require.NoError(t, store.Save(ctx, New()))
	require.NoError(t, store.Save(ctx, New()))
	_, err = store.Load(ctx, s.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store, err := NewRedisStore("redis://"+mr.Addr(), time.Hour)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	s := New()
	s.StartRun("run-1", "analyze", map[string]string{"url": "https://example.com"})
	s.Update(func(st *State) {
		st.Scrape = &models.ScrapeResult{URL: "https://example.com", Status: models.StatusHTTPError(404)}
		st.LastState = "error"
	})

	require.NoError(t, store.Save(ctx, s))
	assert.True(t, mr.Exists(redisKeyPrefix+s.ID()))
	assert.Equal(t, time.Hour, mr.TTL(redisKeyPrefix+s.ID()))

	got, err := store.Load(ctx, s.ID())
	require.NoError(t, err)
	st := got.Snapshot()
	assert.Equal(t, "run-1", st.LastRunID)
	assert.Equal(t, models.StatusHTTPError(404), st.Scrape.Status)
	assert.Equal(t, "error", st.LastState)

	_, err = store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	_, err := NewRedisStore("not a url", 0)
	assert.Error(t, err)
}
