package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// id3File writes a minimal MP3 carrying an ID3v2.3 tag with the given
// title, artist, and album.
func id3File(t *testing.T, dir, name, title, artist, album string) string {
	t.Helper()

	frame := func(id, text string) []byte {
		payload := append([]byte{0}, []byte(text)...) // ISO-8859-1 encoding marker
		n := len(payload)
		b := []byte(id)
		b = append(b, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
		b = append(b, 0, 0) // frame flags
		return append(b, payload...)
	}

	var body []byte
	body = append(body, frame("TIT2", title)...)
	body = append(body, frame("TPE1", artist)...)
	body = append(body, frame("TALB", album)...)

	size := len(body)
	header := []byte{'I', 'D', '3', 3, 0, 0,
		byte(size >> 21 & 0x7f), byte(size >> 14 & 0x7f), byte(size >> 7 & 0x7f), byte(size & 0x7f)}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, append(header, body...), 0o644))
	return path
}

func TestReadItem(t *testing.T) {
	dir := t.TempDir()
	path := id3File(t, dir, "track.mp3", "Song", "Art", "Alb")

	item, err := ReadItem(path)
	require.NoError(t, err)

	assert.Equal(t, "Song", item.Title)
	assert.Equal(t, "Art", item.Artist)
	assert.Equal(t, "Alb", item.Album)
	assert.Equal(t, "mp3", item.Format)
	assert.NotZero(t, item.SizeBytes)
	assert.NotNil(t, item.Attrs)
}

func TestReadItemTitleFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	path := id3File(t, dir, "03 Untitled Take.mp3", "", "Art", "Alb")

	item, err := ReadItem(path)
	require.NoError(t, err)
	assert.Equal(t, "03 Untitled Take", item.Title)
}

func TestReadItemNotFound(t *testing.T) {
	_, err := ReadItem(filepath.Join(t.TempDir(), "missing.mp3"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadItemUnreadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.mp3")
	require.NoError(t, os.WriteFile(path, []byte("not audio at all"), 0o644))

	_, err := ReadItem(path)
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestIsAudioFile(t *testing.T) {
	assert.True(t, IsAudioFile("/music/a.FLAC"))
	assert.True(t, IsAudioFile("a.mp3"))
	assert.False(t, IsAudioFile("cover.jpg"))
	assert.False(t, IsAudioFile("README"))
}
