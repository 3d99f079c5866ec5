package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "crime:51.50,-0.12", []byte("snapshot"), time.Minute))

	got, err := m.Get(ctx, "crime:51.50,-0.12")
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshot"), got)

	_, err = m.Get(ctx, "crime:0.00,0.00")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'y'
	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("2"), 0))

	now = now.Add(2 * time.Minute)

	_, err := m.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)

	got, err := m.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_CleanupDropsExpiredEntries(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	now = now.Add(10 * time.Minute)
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Minute))

	m.mu.RLock()
	_, stillThere := m.entries["a"]
	m.mu.RUnlock()
	assert.False(t, stillThere)
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, m.Delete(ctx, "k"))
	require.NoError(t, m.Delete(ctx, "missing"))

	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Set(ctx, "shared", []byte("v"), time.Minute)
			_, _ = m.Get(ctx, "shared")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, m.Len())
}

func TestJSONHelpers(t *testing.T) {
	type snapshot struct {
		Total int            `json:"total"`
		ByCat map[string]int `json:"byCategory"`
	}

	m := NewMemory()
	ctx := context.Background()

	in := snapshot{Total: 3, ByCat: map[string]int{"burglary": 2, "drugs": 1}}
	require.NoError(t, SetJSON(ctx, m, "snap", in, time.Minute))

	out, err := GetJSON[snapshot](ctx, m, "snap")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = GetJSON[snapshot](ctx, m, "absent")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.Set(ctx, "garbage", []byte("{"), 0))
	_, err = GetJSON[snapshot](ctx, m, "garbage")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}
