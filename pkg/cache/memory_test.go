package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AdmitOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(10)

	ok, err := s.AdmitOnce(ctx, "k", "v1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.AdmitOnce(ctx, "k", "v2", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v1", v)
}

func TestMemoryStore_Expiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(10)

	ok, err := s.AdmitOnce(ctx, "k", "v1", 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	// a repeat inside the window neither admits nor extends it
	ok, err = s.AdmitOnce(ctx, "k", "v2", time.Hour)
	require.NoError(t, err)
	require.False(t, ok)

	require.Eventually(t, func() bool {
		_, err := s.Get(ctx, "k")
		return errors.Is(err, ErrCacheMiss)
	}, time.Second, 5*time.Millisecond)

	ok, err = s.AdmitOnce(ctx, "k", "v3", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v3", v)
}

func TestMemoryStore_ConcurrentAdmitOnlyOnce(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore(0)
	var admitted int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.AdmitOnce(context.Background(), "same", "fp", time.Minute)
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				atomic.AddInt32(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), admitted)
}

func TestMemoryStore_BoundedSize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(3)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		ok, err := s.AdmitOnce(ctx, k, k, time.Hour)
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.LessOrEqual(t, s.Len(), 3)
	v, err := s.Get(ctx, "e")
	require.NoError(t, err)
	require.Equal(t, "e", v)
}

func TestMemoryStore_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(0)
	_, _ = s.AdmitOnce(ctx, "k", "v", time.Hour)
	require.NoError(t, s.Delete(ctx, "k", "missing"))

	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrCacheMiss)
}
