package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, dir string, mod time.Time) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	hdr := &zip.FileHeader{Name: "Album/01.mp3", Modified: mod}
	f, err := w.CreateHeader(hdr)
	require.NoError(t, err)
	_, err = f.Write([]byte("audio-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "album.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func writeTarGz(t *testing.T, dir string, mod time.Time) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	content := []byte("tar-audio")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "Album/02.mp3",
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  mod,
		Typeflag: tar.TypeReg,
	}))
	_, err := tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	path := filepath.Join(dir, "album.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestIsArchive(t *testing.T) {
	dir := t.TempDir()
	zipPath := writeZip(t, dir, time.Now())

	assert.True(t, IsArchive(zipPath))
	assert.False(t, IsArchive(filepath.Join(dir, "missing.zip")), "missing files are not archives")
	assert.False(t, IsArchive(dir), "directories are not archives")

	plain := filepath.Join(dir, "track.mp3")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0o644))
	assert.False(t, IsArchive(plain))
}

func TestExtractZipPropagatesModTime(t *testing.T) {
	mod := time.Date(2019, 6, 1, 12, 0, 0, 0, time.UTC)
	zipPath := writeZip(t, t.TempDir(), mod)

	dest, err := Extract(zipPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dest) })

	extracted := filepath.Join(dest, "Album", "01.mp3")
	data, err := os.ReadFile(extracted)
	require.NoError(t, err)
	assert.Equal(t, "audio-bytes", string(data))

	info, err := os.Stat(extracted)
	require.NoError(t, err)
	assert.WithinDuration(t, mod, info.ModTime(), 2*time.Second)
}

func TestExtractTarGz(t *testing.T) {
	mod := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	tarPath := writeTarGz(t, t.TempDir(), mod)

	dest, err := Extract(tarPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dest) })

	data, err := os.ReadFile(filepath.Join(dest, "Album", "02.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "tar-audio", string(data))
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("../escape.mp3")
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "evil.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	_, err = Extract(path, nil)
	assert.Error(t, err)
}

func TestExtractCorruptArchiveFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.zip")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a zip"), 0o644))

	_, err := Extract(path, nil)
	assert.Error(t, err)
}
