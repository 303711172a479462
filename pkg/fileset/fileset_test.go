package fileset

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goopsie/swarFileTools/pkg/archive"
	"github.com/goopsie/swarFileTools/pkg/index"
)

func writeTree(tb testing.TB, root string, files map[string]string) {
	tb.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(tb, os.WriteFile(path, []byte(content), 0644))
	}
}

func TestScanDir(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":           "AB",
		"dir/b.bin":       "\x01",
		"dir/sub/c.json":  `{"k":1}`,
		"empty-file.data": "",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty-dir"), 0755))

	files, err := ScanDir(context.Background(), root, WithConcurrency(2))
	require.NoError(t, err)

	assert.Equal(t, map[string][]byte{
		"a.txt":           []byte("AB"),
		"dir/b.bin":       {0x01},
		"dir/sub/c.json":  []byte(`{"k":1}`),
		"empty-file.data": {},
	}, files)

	t.Run("SkipsSymlinks", func(t *testing.T) {
		link := filepath.Join(root, "link.txt")
		if err := os.Symlink(filepath.Join(root, "a.txt"), link); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
		defer os.Remove(link)

		files, err := ScanDir(context.Background(), root)
		require.NoError(t, err)
		assert.NotContains(t, files, "link.txt")
	})

	t.Run("NotADirectory", func(t *testing.T) {
		_, err := ScanDir(context.Background(), filepath.Join(root, "a.txt"))
		assert.Error(t, err)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := ScanDir(context.Background(), filepath.Join(root, "nope"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ScanDir(ctx, root)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"x/y/z.txt": "zzz",
	})

	files, err := Walk(root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "x/y/z.txt", files[0].Path)
	assert.Equal(t, int64(3), files[0].Size)
	assert.Equal(t, filepath.Join(root, "x", "y", "z.txt"), files[0].SrcPath)
}

func TestPackExtractRoundTrip(t *testing.T) {
	src := t.TempDir()
	tree := map[string]string{
		"a.txt":          "AB",
		"dir/b.bin":      "\x01",
		"dir/sub/c.json": `{"k":1}`,
		"zero":           "",
	}
	writeTree(t, src, tree)

	files, err := ScanDir(context.Background(), src)
	require.NoError(t, err)

	archivePath := filepath.Join(t.TempDir(), "data.swar")
	require.NoError(t, archive.PackFile(archivePath, files))

	r, err := archive.OpenFile(archivePath)
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.Verify())

	out := filepath.Join(t.TempDir(), "output")
	res, err := Extract(context.Background(), r, out)
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
	assert.ElementsMatch(t, []string{"a.txt", "dir/b.bin", "dir/sub/c.json", "zero"}, res.Written)
	assert.Equal(t, int64(2+1+7), res.Bytes)

	for rel, want := range tree {
		got, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		assert.Equal(t, want, string(got), rel)
	}
}

func TestExtractFilter(t *testing.T) {
	data, err := archive.Pack(map[string][]byte{
		"keep/a":    []byte("a"),
		"keep/b/c":  []byte("c"),
		"keeper":    []byte("no"),
		"other/d":   []byte("d"),
		"top-level": []byte("t"),
	})
	require.NoError(t, err)
	r, err := archive.Open(data)
	require.NoError(t, err)

	out := t.TempDir()
	res, err := Extract(context.Background(), r, out, WithPathFilter("keep/", "top-level"))
	require.NoError(t, err)
	assert.Equal(t, []string{"keep/a", "keep/b/c", "top-level"}, res.Written)

	_, err = os.Stat(filepath.Join(out, "keeper"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// rawArchive builds an archive whose index holds paths the writer would refuse.
func rawArchive(tb testing.TB, paths []string, payload []byte) []byte {
	tb.Helper()
	entries := make([]index.Entry, len(paths))
	size := archive.HeaderSize + index.Size(paths...)
	for i, p := range paths {
		entries[i] = index.Entry{Path: p, Offset: uint32(size), Length: uint32(len(payload))}
	}
	idx, err := index.Encode(entries)
	require.NoError(tb, err)

	data := make([]byte, archive.HeaderSize, size+len(payload))
	data = append(data, idx...)
	data = append(data, payload...)
	archive.NewHeader(archive.Checksum(data[archive.HeaderSize:])).EncodeTo(data)
	return data
}

func TestExtractUnsafePaths(t *testing.T) {
	data := rawArchive(t, []string{"../escape.txt", "/abs.txt", "ok.txt"}, []byte("x"))
	r, err := archive.Open(data)
	require.NoError(t, err)
	require.NoError(t, r.Verify())

	parent := t.TempDir()
	out := filepath.Join(parent, "out")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	res, err := Extract(context.Background(), r, out, WithExtractLogger(logger))
	require.NoError(t, err)

	assert.Equal(t, []string{"ok.txt"}, res.Written)
	require.Len(t, res.Failed, 2)
	for _, f := range res.Failed {
		assert.ErrorIs(t, f.Err, archive.ErrInvalidPath, f.Path)
	}
	assert.Contains(t, logs.String(), "entry could not be extracted")

	_, err = os.Stat(filepath.Join(parent, "escape.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExtractContinuesAfterFailure(t *testing.T) {
	// "a" is a file, so "a/b" cannot be created beneath it.
	data := rawArchive(t, []string{"a", "a/b", "c"}, []byte("x"))
	r, err := archive.Open(data)
	require.NoError(t, err)

	res, err := Extract(context.Background(), r, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, res.Written)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "a/b", res.Failed[0].Path)
}

func TestIsDirEmpty(t *testing.T) {
	dir := t.TempDir()

	empty, err := IsDirEmpty(dir)
	require.NoError(t, err)
	assert.True(t, empty)

	empty, err = IsDirEmpty(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.True(t, empty)

	writeTree(t, dir, map[string]string{"f": "x"})
	empty, err = IsDirEmpty(dir)
	require.NoError(t, err)
	assert.False(t, empty)
}
