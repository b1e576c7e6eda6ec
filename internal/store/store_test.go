package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupTestStore creates a Store backed by a temp directory along with a cleanup function.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	// Create temp directory for test database
	tmpDir, err := os.MkdirTemp("", "tagger-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")

	// Create store with noop emitter for testing
	store, err := New(dbPath, nil, NewNoopEmitter())
	require.NoError(t, err)
	require.NotNil(t, store)

	// Return cleanup function
	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

// TestStoreOpenClose tests opening and closing the database
func TestStoreOpenClose(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "tagger-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	store, err := New(filepath.Join(tmpDir, "test.db"), nil, NewNoopEmitter())
	require.NoError(t, err)
	require.NoError(t, store.Close())
}
