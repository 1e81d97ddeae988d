package storage

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	d := Describe("/srv/posts/hello world.md")
	assert.Equal(t, "hello world", d.OriginalName)
	assert.Equal(t, "hello+world", d.EncodedName)
	assert.Equal(t, "/srv/posts/hello world.md", d.Path)

	assert.Equal(t, "unnamed", Describe("/").OriginalName)
	assert.Equal(t, "unnamed", Describe("/srv/posts/.md").EncodedName)
}

func TestSaveListDelete(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "posts"))
	require.NoError(t, store.EnsureDirs())

	require.NoError(t, store.Save("first.md", []byte("# First")))
	require.NoError(t, store.Save("about.md", []byte("# About")))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), ".swp"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(store.Dir(), "drafts"), 0o755))

	entries, err := store.List(context.Background())
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.OriginalName)
		assert.False(t, e.ModTime.IsZero())
	}
	sort.Strings(names)
	assert.Equal(t, []string{"about", "first"}, names)

	entry, err := store.Read(filepath.Join(store.Dir(), "first.md"))
	require.NoError(t, err)
	assert.Equal(t, "# First", string(entry.Contents))

	require.NoError(t, store.Delete("first"))
	assert.ErrorIs(t, store.Delete("first"), ErrNotFound)

	_, err = store.Read(filepath.Join(store.Dir(), "first.md"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejects(t *testing.T) {
	store := New(t.TempDir())

	assert.ErrorIs(t, store.Save("empty.md", nil), ErrEmptyFile)
	assert.ErrorIs(t, store.Save("../escape.md", []byte("x")), ErrInvalidName)
	assert.ErrorIs(t, store.Delete("../escape"), ErrInvalidName)
}

func TestListMissingDir(t *testing.T) {
	entries, err := New(filepath.Join(t.TempDir(), "nope")).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
