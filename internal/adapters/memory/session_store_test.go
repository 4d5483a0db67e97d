package memory

import (
	"context"
	"sync"
	"testing"

	domainauth "github.com/lanoire/lanoire-web/internal/domain/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetClear(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	v, err := store.Get(ctx, domainauth.KeyAccessToken)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, store.Set(ctx, domainauth.KeyAccessToken, "T1"))
	require.NoError(t, store.Set(ctx, domainauth.KeyRefreshToken, "R1"))
	require.NoError(t, store.Set(ctx, domainauth.KeyUser, `{"id":1}`))

	v, err = store.Get(ctx, domainauth.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "T1", v)

	require.NoError(t, store.Clear(ctx))
	for _, key := range domainauth.StorageKeys() {
		v, err = store.Get(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, v, key)
	}
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := NewSessionBackend()
	store := backend.Scope("browser-1")
	require.NoError(t, store.Set(ctx, domainauth.KeyAccessToken, "T1"))

	require.NoError(t, store.Clear(ctx))
	afterOnce := backend.Len()
	require.NoError(t, store.Clear(ctx))

	assert.Equal(t, afterOnce, backend.Len())
	assert.Equal(t, 0, backend.Len())
}

func TestSessionBackend_ScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	backend := NewSessionBackend()
	a := backend.Scope("a")
	b := backend.Scope("b")

	require.NoError(t, a.Set(ctx, domainauth.KeyAccessToken, "TA"))
	v, err := b.Get(ctx, domainauth.KeyAccessToken)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, b.Clear(ctx))
	v, err = a.Get(ctx, domainauth.KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "TA", v)
}

func TestSessionBackend_EmptyScope(t *testing.T) {
	ctx := context.Background()
	store := NewSessionBackend().Scope("")

	assert.ErrorIs(t, store.Set(ctx, domainauth.KeyAccessToken, "T1"), ErrEmptySessionID)
	v, err := store.Get(ctx, domainauth.KeyAccessToken)
	require.NoError(t, err)
	assert.Empty(t, v)
	assert.NoError(t, store.Clear(ctx))
}

func TestStore_ConcurrentClear(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.Set(ctx, domainauth.KeyAccessToken, "T1"))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Clear(ctx))
		}()
	}
	wg.Wait()

	v, err := store.Get(ctx, domainauth.KeyAccessToken)
	require.NoError(t, err)
	assert.Empty(t, v)
}
