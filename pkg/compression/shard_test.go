package compression

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterCommitPublishes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shard.0.gz")

	w, err := Create(path, 0)
	require.NoError(t, err)
	require.NoError(t, w.WriteLine("1\t0\t3"))
	require.NoError(t, w.WriteLine("32\t1\t6"))
	assert.Equal(t, int64(2), w.Lines())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "final name must not exist before commit")
	_, err = os.Stat(path + partSuffix)
	require.NoError(t, err)

	size, err := w.Commit()
	require.NoError(t, err)
	assert.Positive(t, size)

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, size, st.Size())
	_, err = os.Stat(path + partSuffix)
	assert.True(t, os.IsNotExist(err))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	var lines []string
	for {
		line, ok := r.Next()
		if !ok {
			break
		}
		lines = append(lines, line)
	}
	require.NoError(t, r.Err())
	assert.Equal(t, []string{"1\t0\t3", "32\t1\t6"}, lines)

	// Commit twice is harmless.
	_, err = w.Commit()
	assert.NoError(t, err)
}

func TestWriterAbortRemovesPart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shard.1.gz")

	w, err := Create(path, 9)
	require.NoError(t, err)
	require.NoError(t, w.WriteLine("partial"))
	require.NoError(t, w.Abort())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path + partSuffix)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, w.Abort())
}

func TestCreateRejectsBadLevel(t *testing.T) {
	dir := t.TempDir()
	_, err := Create(filepath.Join(dir, "x.gz"), 42)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "missing.gz"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	plain := filepath.Join(dir, "plain.gz")
	require.NoError(t, os.WriteFile(plain, []byte("not gzip"), 0o644))
	_, err = Open(plain)
	assert.Error(t, err)
}
