package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
)

func TestWriteReadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, WriteJSONFile(path, doc{Name: "a", Count: 2}))

	var got doc
	require.NoError(t, ReadJSONFile(path, &got))
	assert.Equal(t, doc{Name: "a", Count: 2}, got)

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadJSONFile_MissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()

	var v map[string]interface{}
	assert.ErrorIs(t, ReadJSONFile(filepath.Join(dir, "absent.json"), &v), ErrNotFound)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))
	err := ReadJSONFile(corrupt, &v)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestBuildPushQuery(t *testing.T) {
	query, args := buildPushQuery(PushFilter{UserID: "u1", Ticker: "BTC", Limit: 10})

	assert.Contains(t, query, "user_id = $1")
	assert.Contains(t, query, "ticker = $2")
	assert.Contains(t, query, "LIMIT $3")
	assert.True(t, strings.Contains(query, "ORDER BY created_at DESC"))
	assert.Equal(t, []interface{}{"u1", "BTC", 10}, args)

	query, args = buildPushQuery(PushFilter{})
	assert.NotContains(t, query, "$1")
	assert.Empty(t, args)
}

func TestMockPushLogStorage_Filter(t *testing.T) {
	ctx := context.Background()
	m := &MockPushLogStorage{}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, user := range []string{"u1", "u2", "u1"} {
		require.NoError(t, m.WritePush(ctx, &models.PushRecord{
			ID: user + string(rune('a'+i)), UserID: user, Ticker: "BTC",
			Status: models.PushSent, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := m.GetPushes(ctx, PushFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].CreatedAt.After(got[1].CreatedAt))

	got, err = m.GetPushes(ctx, PushFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMockRedisClient_Sets(t *testing.T) {
	ctx := context.Background()
	m := NewMockRedisClient()

	require.NoError(t, m.SetAdd(ctx, "s", "b", "a", "b"))
	members, err := m.SetMembers(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)

	require.NoError(t, m.SetRemove(ctx, "s", "a", "b"))
	exists, err := m.Exists(ctx, "s")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, m.Publish(ctx, "ch", map[string]string{"k": "v"}))
	require.Len(t, m.Published, 1)
	assert.JSONEq(t, `{"k":"v"}`, m.Published[0].Payload)
}
