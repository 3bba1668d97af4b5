package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseSlot(t *testing.T, slot Slot) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := slot.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, slot.Set(ctx, "draft", []byte(`{"v":1}`)))
	require.NoError(t, slot.Set(ctx, "draft", []byte(`{"v":2}`)))

	got, ok, err := slot.Get(ctx, "draft")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(got))

	require.NoError(t, slot.Delete(ctx, "draft"))
	require.NoError(t, slot.Delete(ctx, "draft"))

	_, ok, err = slot.Get(ctx, "draft")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemorySlot(t *testing.T) {
	exerciseSlot(t, NewMemory())
}

func TestMemorySlotCopiesValues(t *testing.T) {
	m := NewMemory()
	buf := []byte("abc")
	require.NoError(t, m.Set(context.Background(), "k", buf))
	buf[0] = 'z'

	got, _, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestSQLiteSlot(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "draft.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseSlot(t, s)
}

func TestSQLiteSlotSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "draft.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "pos_draft_cart", []byte("payload")))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, ok, err := reopened.Get(ctx, "pos_draft_cart")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", string(got))
}

func TestRedisSlot(t *testing.T) {
	addr := os.Getenv("KASIRPOS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set KASIRPOS_TEST_REDIS_ADDR to run redis integration test")
	}

	r := NewRedis(addr, os.Getenv("KASIRPOS_TEST_REDIS_PASSWORD"), 0, time.Minute)
	t.Cleanup(func() { _ = r.Close() })
	require.NoError(t, r.Ping(context.Background()))

	exerciseSlot(t, r)
}
