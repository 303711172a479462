package command

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/goopsie/swarFileTools/pkg/archive"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func makeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range map[string]string{
		"a.txt":     "AB",
		"dir/b.bin": "\x01",
	} {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func TestPackUnpack(t *testing.T) {
	src := makeTree(t)
	work := t.TempDir()
	archivePath := filepath.Join(work, "data.swar")

	stdout, _, err := run(t, "pack", src, "-o", archivePath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Found 2 files")
	assert.Contains(t, stdout, "Repacking has finished!")

	out := filepath.Join(work, "output")
	stdout, _, err = run(t, "unpack", archivePath, "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 files (3 bytes)")

	got, err := os.ReadFile(filepath.Join(out, "dir", "b.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, got)

	t.Run("RefusesNonEmptyOutput", func(t *testing.T) {
		_, _, err := run(t, "unpack", archivePath, "-o", out)
		assert.ErrorContains(t, err, "not empty")

		_, _, err = run(t, "unpack", archivePath, "-o", out, "--force")
		assert.NoError(t, err)
	})

	t.Run("Prefix", func(t *testing.T) {
		dst := filepath.Join(work, "only-dir")
		_, _, err := run(t, "unpack", archivePath, "-o", dst, "--prefix", "dir")
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(dst, "a.txt"))
		assert.ErrorIs(t, err, os.ErrNotExist)
		_, err = os.Stat(filepath.Join(dst, "dir", "b.bin"))
		assert.NoError(t, err)
	})
}

func TestRootAutoDetect(t *testing.T) {
	src := makeTree(t)
	work := t.TempDir()
	archivePath := filepath.Join(work, "auto.swar")

	_, _, err := run(t, src, "-o", archivePath)
	require.NoError(t, err)

	r, err := archive.OpenFile(archivePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "dir/b.bin"}, r.List())
	require.NoError(t, r.Close())

	out := filepath.Join(work, "unpacked")
	stdout, _, err := run(t, archivePath, "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Unpacking has finished!")

	got, err := os.ReadFile(filepath.Join(out, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "AB", string(got))

	t.Run("Missing", func(t *testing.T) {
		_, _, err := run(t, filepath.Join(work, "does-not-exist"))
		assert.ErrorContains(t, err, "no file or directory found")
	})

	t.Run("NoArgsPrintsHelp", func(t *testing.T) {
		stdout, _, err := run(t)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Usage:")
	})
}

func packTree(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.swar")
	require.NoError(t, archive.PackFile(path, map[string][]byte{
		"a.txt":     {0x41, 0x42},
		"dir/b.bin": {0x01},
	}))
	return path
}

func TestList(t *testing.T) {
	path := packTree(t)

	t.Run("Table", func(t *testing.T) {
		stdout, _, err := run(t, "list", path)
		require.NoError(t, err)
		assert.Contains(t, stdout, "a.txt")
		assert.Contains(t, stdout, "dir/b.bin")
		assert.Contains(t, stdout, "2 entries")
		assert.NotContains(t, stdout, "ENTRIES")

		sum, err := archive.ReadChecksum(path)
		require.NoError(t, err)
		assert.Contains(t, stdout, checksumString(sum))
		assert.Contains(t, stdout, "Path")
	})

	t.Run("JSON", func(t *testing.T) {
		stdout, _, err := run(t, "list", path, "--format", "json", "--digest")
		require.NoError(t, err)

		var info archiveInfo
		require.NoError(t, json.Unmarshal([]byte(stdout), &info))
		assert.True(t, info.Valid)
		require.Len(t, info.Entries, 2)
		assert.Equal(t, "a.txt", info.Entries[0].Path)
		assert.Equal(t, uint32(2), info.Entries[0].Length)
		// sha256("AB")
		assert.Equal(t, "sha256:38164fbd17603d73f696b8b4d72664d735bb6a7c88577687fd2ae33fd6964153", info.Entries[0].Digest.String())
	})

	t.Run("YAML", func(t *testing.T) {
		stdout, _, err := run(t, "list", path, "--format", "yaml")
		require.NoError(t, err)

		var info archiveInfo
		require.NoError(t, yaml.Unmarshal([]byte(stdout), &info))
		assert.Equal(t, path, info.Archive)
		assert.Len(t, info.Entries, 2)
		assert.Empty(t, info.Entries[1].Digest)
	})

	t.Run("UnknownFormat", func(t *testing.T) {
		_, _, err := run(t, "list", path, "--format", "xml")
		assert.ErrorContains(t, err, "unknown format")
	})
}

func TestVerify(t *testing.T) {
	path := packTree(t)

	stdout, _, err := run(t, "verify", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "OK")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0644))

	stdout, _, err = run(t, "verify", path)
	assert.ErrorIs(t, err, archive.ErrChecksumMismatch)
	assert.Contains(t, stdout, "MISMATCH")

	t.Run("UnpackWarnsButSucceeds", func(t *testing.T) {
		_, stderr, err := run(t, "unpack", path, "-o", filepath.Join(t.TempDir(), "out"))
		require.NoError(t, err)
		assert.Contains(t, stderr, "checksum mismatch")
		assert.Equal(t, 1, strings.Count(stderr, "checksum mismatch"), stderr)
	})

	t.Run("BadMagic", func(t *testing.T) {
		other := filepath.Join(t.TempDir(), "not.swar")
		require.NoError(t, os.WriteFile(other, []byte("PK\x03\x04 definitely a zip"), 0644))
		_, _, err := run(t, "verify", other)
		assert.ErrorIs(t, err, archive.ErrBadMagic)
	})
}
