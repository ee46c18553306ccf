package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-carrier/config"
)

func TestMemoryAllocator_EvenMonotonic(t *testing.T) {
	a := NewMemoryAllocator()
	var prev uint64
	for i := 0; i < 100; i++ {
		h, err := a.Next()
		require.NoError(t, err)
		assert.NotZero(t, h)
		assert.Zero(t, h%2, "handle %d must be even", h)
		assert.Greater(t, h, prev)
		prev = h
	}

	require.NoError(t, a.Close())
	_, err := a.Next()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryAllocator_ConcurrentUnique(t *testing.T) {
	a := NewMemoryAllocator()
	const workers, per = 8, 500

	var mu sync.Mutex
	seen := make(map[uint64]struct{}, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				h, err := a.Next()
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[h] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*per)
}

func TestBadgerAllocator_NoReuseAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	a, err := OpenBadger(dir, 4, false)
	require.NoError(t, err)
	var last uint64
	for i := 0; i < 6; i++ {
		h, err := a.Next()
		require.NoError(t, err)
		assert.Zero(t, h%2)
		assert.Greater(t, h, last)
		last = h
	}
	require.NoError(t, a.Close())
	_, err = a.Next()
	assert.ErrorIs(t, err, ErrClosed)

	b, err := OpenBadger(dir, 4, false)
	require.NoError(t, err)
	defer b.Close()

	h, err := b.Next()
	require.NoError(t, err)
	assert.Greater(t, h, last)
	assert.Zero(t, h%2)
}

func TestBadgerAllocator_FirstHandle(t *testing.T) {
	a, err := OpenBadger(t.TempDir(), 1, false)
	require.NoError(t, err)
	defer a.Close()

	h, err := a.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), h)
	h, err = a.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), h)
}

func TestNewAllocator(t *testing.T) {
	cfg := config.DefaultStorageConfig()
	a, err := NewAllocator(cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryAllocator{}, a)

	cfg.DataDir = t.TempDir()
	a, err = NewAllocator(cfg)
	require.NoError(t, err)
	assert.IsType(t, &BadgerAllocator{}, a)
	require.NoError(t, a.Close())

	cfg.HandleBlock = 0
	_, err = NewAllocator(cfg)
	assert.Error(t, err)
}
