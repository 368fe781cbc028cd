package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"anoa.com/homeworktracker/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "uploads"), logger.Discard())
	require.NoError(t, err)
	return store
}

func TestNewLocalStoreCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "a", "b", "uploads")
	_, err := NewLocalStore(root, logger.Discard())
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalStoreStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	locator, err := store.Store(ctx, strings.NewReader("x^2 + y^2"), "math.txt")
	require.NoError(t, err)

	assert.Equal(t, store.Root(), filepath.Dir(locator))
	assert.True(t, strings.HasSuffix(locator, "_math.txt"))

	data, err := os.ReadFile(locator)
	require.NoError(t, err)
	assert.Equal(t, "x^2 + y^2", string(data))
}

func TestLocalStoreSameNameNeverCollides(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Store(ctx, strings.NewReader("first"), "hw.pdf")
	require.NoError(t, err)
	second, err := store.Store(ctx, strings.NewReader("second"), "hw.pdf")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, assert.AnError }

func TestLocalStoreFailedWriteLeavesNothing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Store(context.Background(), failingReader{}, "broken.pdf")
	require.Error(t, err)

	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStoreCancelledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Store(ctx, strings.NewReader("data"), "a.txt")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalStoreReleaseIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	locator, err := store.Store(ctx, bytes.NewReader([]byte{0x89, 'P', 'N', 'G'}), "diagram.png")
	require.NoError(t, err)

	store.Release(ctx, locator)
	_, err = os.Stat(locator)
	assert.True(t, os.IsNotExist(err))

	assert.NotPanics(t, func() { store.Release(ctx, locator) })
}

func TestLocalStoreReleaseSwallowsIOErrors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// A non-empty directory cannot be removed with os.Remove.
	dir := filepath.Join(store.Root(), "stuck")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "inner"), 0o755))

	assert.NotPanics(t, func() { store.Release(ctx, dir) })
	_, err := os.Stat(dir)
	assert.NoError(t, err)
}

func TestLocalStoreReleaseRefusesForeignPaths(t *testing.T) {
	store := newTestStore(t)

	outside := filepath.Join(t.TempDir(), "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("keep"), 0o644))

	store.Release(context.Background(), outside)
	store.Release(context.Background(), filepath.Join(store.Root(), "..", "..", filepath.Base(outside)))
	store.Release(context.Background(), "")

	_, err := os.Stat(outside)
	assert.NoError(t, err)
}

func TestLocalStoreList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Store(ctx, strings.NewReader("a"), "a.txt")
	require.NoError(t, err)
	b, err := store.Store(ctx, strings.NewReader("bb"), "b.txt")
	require.NoError(t, err)

	// Leftover temp files and directories are not attachments.
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), tempPrefix+"123"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(store.Root(), "sub"), 0o755))

	objects, err := store.List(ctx)
	require.NoError(t, err)

	locators := make([]string, 0, len(objects))
	for _, o := range objects {
		locators = append(locators, o.Locator)
		assert.WithinDuration(t, time.Now(), o.ModTime, time.Minute)
	}
	assert.ElementsMatch(t, []string{a, b}, locators)
}

func TestLocalStoreRootSpellings(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	ctx := context.Background()

	relative, err := NewLocalStore("uploads", logger.Discard())
	require.NoError(t, err)
	absolute, err := NewLocalStore(filepath.Join(dir, "uploads"), logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, absolute.Root(), relative.Root())
	assert.True(t, filepath.IsAbs(relative.Root()))

	locator, err := relative.Store(ctx, strings.NewReader("notes"), "notes.txt")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(locator))

	legacy := filepath.Join("uploads", filepath.Base(locator))
	assert.Equal(t, absolute.Key(locator), absolute.Key(legacy))

	absolute.Release(ctx, legacy)
	_, err = os.Stat(locator)
	assert.True(t, os.IsNotExist(err))
}
