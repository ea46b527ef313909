package tempfs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDir_CreateTemporaryFile(t *testing.T) {
	root := t.TempDir()
	d, err := New(root)
	require.NoError(t, err)

	f, err := d.CreateTemporaryFile(".signal")
	require.NoError(t, err)

	assert.Equal(t, root, filepath.Dir(f.Path()))
	assert.True(t, strings.HasPrefix(filepath.Base(f.Path()), "sig_"))
	assert.True(t, strings.HasSuffix(f.Path(), ".signal"))

	info, err := os.Stat(f.Path())
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestDir_CreateTemporaryFile_NormalizesExtension(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	f, err := d.CreateTemporaryFile("log")
	require.NoError(t, err)
	defer f.Dispose()
	assert.Equal(t, ".log", filepath.Ext(f.Path()))

	bare, err := d.CreateTemporaryFile("")
	require.NoError(t, err)
	defer bare.Dispose()
	assert.Empty(t, filepath.Ext(bare.Path()))
}

func TestDir_CreateTemporaryFile_Unique(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		f, err := d.CreateTemporaryFile(".signal")
		require.NoError(t, err)
		assert.False(t, seen[f.Path()], "duplicate path %s", f.Path())
		seen[f.Path()] = true
	}
}

func TestNew_CreatesMissingDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "a", "b")
	d, err := New(root)
	require.NoError(t, err)
	assert.Equal(t, root, d.Root())

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDir_ReadFile(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	f, err := d.CreateTemporaryFile(".signal")
	require.NoError(t, err)

	contents, err := d.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Empty(t, contents)

	require.NoError(t, os.WriteFile(f.Path(), []byte("START\nEND\n"), 0o600))
	contents, err = d.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, "START\nEND\n", contents)
}

func TestDir_ReadFile_Missing(t *testing.T) {
	root := t.TempDir()
	d, err := New(root)
	require.NoError(t, err)

	_, err = d.ReadFile(filepath.Join(root, "sig_missing.signal"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDir_ReadFile_OutsideRoot(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	other := filepath.Join(t.TempDir(), "elsewhere.signal")
	require.NoError(t, os.WriteFile(other, []byte("END"), 0o600))

	_, err = d.ReadFile(other)
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestDir_ReadFile_SiblingWithSamePrefix(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "sig")
	d, err := New(root)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "X"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(root, "X", "f"), []byte("inside"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "sigX"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(base, "sigX", "f"), []byte("outside"), 0o600))

	_, err = d.ReadFile(filepath.Join(base, "sigX", "f"))
	assert.ErrorIs(t, err, ErrOutsideRoot)

	contents, err := d.ReadFile(filepath.Join(root, "X", "f"))
	require.NoError(t, err)
	assert.Equal(t, "inside", contents)
}

func TestDir_ReadFile_RejectsEscapes(t *testing.T) {
	root := t.TempDir()
	d, err := New(root)
	require.NoError(t, err)

	for _, path := range []string{
		root,
		filepath.Dir(root),
		filepath.Join(root, "..", "elsewhere.signal"),
		"../elsewhere.signal",
		"/",
	} {
		_, err := d.ReadFile(path)
		assert.ErrorIs(t, err, ErrOutsideRoot, path)
	}
}

func TestDir_ReadFile_Relative(t *testing.T) {
	root := t.TempDir()
	d, err := New(root)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "sig_rel.signal"), []byte("END"), 0o600))
	contents, err := d.ReadFile("sig_rel.signal")
	require.NoError(t, err)
	assert.Equal(t, "END", contents)
}

func TestFile_Dispose(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	f, err := d.CreateTemporaryFile(".signal")
	require.NoError(t, err)

	require.NoError(t, f.Dispose())
	_, err = os.Stat(f.Path())
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.NoError(t, f.Dispose(), "second dispose is a no-op")
}

func TestFile_Dispose_AlreadyRemoved(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	f, err := d.CreateTemporaryFile(".signal")
	require.NoError(t, err)

	require.NoError(t, os.Remove(f.Path()))
	assert.NoError(t, f.Dispose())
}

func TestDir_Sweep(t *testing.T) {
	root := t.TempDir()
	d, err := New(root)
	require.NoError(t, err)

	stale, err := d.CreateTemporaryFile(".signal")
	require.NoError(t, err)
	fresh, err := d.CreateTemporaryFile(".signal")
	require.NoError(t, err)

	unrelated := filepath.Join(root, "keep.txt")
	require.NoError(t, os.WriteFile(unrelated, nil, 0o600))

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale.Path(), old, old))
	require.NoError(t, os.Chtimes(unrelated, old, old))

	removed, err := d.Sweep(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(stale.Path())
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(fresh.Path())
	assert.NoError(t, err)
	_, err = os.Stat(unrelated)
	assert.NoError(t, err)
}
