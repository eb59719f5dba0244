package fsutil

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystem_ReadDirAndStat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var fsys FileSystem = OSFileSystem{}

	w, err := CreateFile(fsys, filepath.Join(dir, "00", "times.txt"))
	require.NoError(t, err)
	_, err = io.WriteString(w, "0.0\n0.1\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	entries, err := fsys.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "00", entries[0].Name())
	assert.True(t, entries[0].IsDir())

	assert.True(t, IsDir(fsys, filepath.Join(dir, "00")))
	assert.True(t, Exists(fsys, filepath.Join(dir, "00", "times.txt")))
	assert.False(t, Exists(fsys, filepath.Join(dir, "01")))

	data, err := fsys.ReadFile(filepath.Join(dir, "00", "times.txt"))
	require.NoError(t, err)
	assert.Equal(t, "0.0\n0.1\n", string(data))
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	t.Parallel()

	mfs := NewMemoryFileSystem()
	src := []byte("hello")
	mfs.WriteFile("data/00/odom/0.txt", src)
	src[0] = 'j'

	data, err := mfs.ReadFile("data/00/odom/0.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data), "stored data must not alias the caller's slice")

	f, err := mfs.Open("data/00/odom/0.txt")
	require.NoError(t, err)
	defer f.Close()
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, "0.txt", info.Name())
	assert.Equal(t, int64(5), info.Size())
}

func TestMemoryFileSystem_ReadDir(t *testing.T) {
	t.Parallel()

	mfs := NewMemoryFileSystem()
	mfs.WriteFile("data/01/times.txt", nil)
	mfs.WriteFile("data/00/times.txt", nil)
	mfs.WriteFile("data/00/image/10.png", []byte{1})
	mfs.WriteFile("data/00/image/2.png", []byte{1, 2})
	require.NoError(t, mfs.MkdirAll("data/02", 0o755))

	entries, err := mfs.ReadDir("data")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
		assert.True(t, e.IsDir())
	}
	assert.Equal(t, []string{"00", "01", "02"}, names)

	entries, err = mfs.ReadDir("data/00")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "image", entries[0].Name())
	assert.True(t, entries[0].IsDir())
	assert.Equal(t, "times.txt", entries[1].Name())
	assert.False(t, entries[1].IsDir())

	entries, err = mfs.ReadDir("data/00/image")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "10.png", entries[0].Name())

	_, err = mfs.ReadDir("data/03")
	assert.Error(t, err)
	_, err = mfs.ReadDir("data/00/times.txt")
	assert.Error(t, err)
}

func TestMemoryFileSystem_CreateVisibleOnClose(t *testing.T) {
	t.Parallel()

	mfs := NewMemoryFileSystem()
	w, err := CreateFile(mfs, "out/poses/00.txt")
	require.NoError(t, err)
	assert.True(t, IsDir(mfs, "out/poses"))

	_, err = io.WriteString(w, "1 0 0 0\n")
	require.NoError(t, err)

	data, err := mfs.ReadFile("out/poses/00.txt")
	require.NoError(t, err)
	assert.Empty(t, data, "content is published on Close")

	require.NoError(t, w.Close())
	data, err = mfs.ReadFile("out/poses/00.txt")
	require.NoError(t, err)
	assert.Equal(t, "1 0 0 0\n", string(data))
}

func TestMemoryFileSystem_Errors(t *testing.T) {
	t.Parallel()

	mfs := NewMemoryFileSystem()
	mfs.WriteFile("a/file.txt", []byte("x"))

	_, err := mfs.Open("missing.txt")
	assert.Error(t, err)
	_, err = mfs.ReadFile("missing.txt")
	assert.Error(t, err)
	_, err = mfs.Stat("missing.txt")
	assert.Error(t, err)
	assert.Error(t, mfs.MkdirAll("a/file.txt", 0o755))
	_, err = mfs.Create("a")
	assert.Error(t, err)
}
