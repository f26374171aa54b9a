package client

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"realtime-service/internal/models"
)

func TestMemoryCursorStoreIsForwardOnly(t *testing.T) {
	store := NewMemoryCursorStore()
	scope := models.TenantScope(1)

	require.NoError(t, store.Set(scope, "m5"))
	// A regression attempt is silently ignored.
	require.NoError(t, store.Set(scope, "m2"))

	cursor, err := store.Get(scope)
	require.NoError(t, err)
	require.Equal(t, "m5", cursor)

	require.NoError(t, store.Reset(scope))
	cursor, err = store.Get(scope)
	require.NoError(t, err)
	require.Equal(t, "", cursor)
}

func TestMemoryCursorStoreScopeIsolation(t *testing.T) {
	store := NewMemoryCursorStore()
	school := models.TenantScope(1)
	module := models.ModuleScope(1, 3)

	require.NoError(t, store.Set(school, "m9"))

	cursor, err := store.Get(module)
	require.NoError(t, err)
	require.Equal(t, "", cursor)
}

func TestSQLiteCursorStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.db")
	store, err := OpenSQLiteCursorStore(path)
	require.NoError(t, err)
	defer store.Close()

	scope := models.ModuleScope(2, 14)

	cursor, err := store.Get(scope)
	require.NoError(t, err)
	require.Equal(t, "", cursor)

	require.NoError(t, store.Set(scope, "m3"))
	require.NoError(t, store.Set(scope, "m8"))
	require.NoError(t, store.Set(scope, "m1")) // forward-only

	cursor, err = store.Get(scope)
	require.NoError(t, err)
	require.Equal(t, "m8", cursor)

	require.NoError(t, store.Reset(scope))
	cursor, err = store.Get(scope)
	require.NoError(t, err)
	require.Equal(t, "", cursor)
}
