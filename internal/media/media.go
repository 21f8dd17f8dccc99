// Package media models audio items and reads their tags from disk.
package media

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
)

var (
	// ErrNotFound indicates the file does not exist.
	ErrNotFound = errors.New("media file not found")

	// ErrUnreadable indicates the file exists but its tags could not be parsed.
	ErrUnreadable = errors.New("media file unreadable")
)

// Item is one audio track and its metadata. Attrs holds free-form
// attributes that have no schema column; they survive reimports unless
// configured as fresh fields.
type Item struct {
	ID          int64
	AlbumID     int64 // 0 when the item belongs to no album
	Path        string
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Track       int
	Disc        int
	Year        int
	Format      string
	SizeBytes   int64
	ModTime     time.Time
	AddedAt     time.Time
	Attrs       map[string]string
}

// Writer persists tag changes back to an item's file. Tag writing is the
// surrounding application's concern; NopWriter ships for wiring and tests.
type Writer interface {
	WriteTags(item *Item) error
}

// NopWriter logs the write and does nothing else.
type NopWriter struct {
	Logger *slog.Logger
}

// WriteTags implements Writer.
func (w NopWriter) WriteTags(item *Item) error {
	if w.Logger != nil {
		w.Logger.Debug("tag write skipped", "path", item.Path)
	}
	return nil
}

var audioExtensions = map[string]bool{
	".mp3": true, ".flac": true, ".ogg": true, ".opus": true,
	".m4a": true, ".aac": true, ".wav": true, ".wv": true,
	".aiff": true, ".ape": true, ".mpc": true, ".wma": true,
}

// IsAudioFile reports whether the path has a known audio extension.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// ReadItem opens the file and parses its tags. Missing title falls back to
// the file name so untagged files remain importable.
func ReadItem(path string) (*Item, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrUnreadable, err)
	}

	item := &Item{
		Path:      path,
		Format:    strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
		Attrs:     make(map[string]string),
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrUnreadable, err)
	}
	defer func() { _ = f.Close() }()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return nil, errors.Join(ErrUnreadable, err)
	}

	item.Title = meta.Title()
	item.Artist = meta.Artist()
	item.Album = meta.Album()
	item.AlbumArtist = meta.AlbumArtist()
	item.Track, _ = meta.Track()
	item.Disc, _ = meta.Disc()
	item.Year = meta.Year()

	if item.Title == "" {
		base := filepath.Base(path)
		item.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return item, nil
}
