package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crate-media/crate/internal/media"
)

// destination computes where an item belongs under the library root.
// Album items land in <artist>/<album>/[<disc>-]<track> <title>.<ext>;
// singletons in <artist>/Singles/<title>.<ext>.
func destination(root string, t *Task, it *media.Item) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(it.Path)), ".")
	if ext == "" {
		ext = it.Format
	}

	var rel string
	if t.Kind == KindSingleton {
		artist := orUnknown(it.Artist, "Unknown Artist")
		rel = filepath.Join(
			SanitizeFilename(artist),
			"Singles",
			fmt.Sprintf("%s.%s", SanitizeFilename(orUnknown(it.Title, "Untitled")), ext),
		)
	} else {
		artist := it.AlbumArtist
		if artist == "" {
			artist = it.Artist
		}
		artist = orUnknown(artist, "Unknown Artist")
		album := orUnknown(it.Album, "Unknown Album")

		base := fmt.Sprintf("%02d %s", it.Track, orUnknown(it.Title, "Untitled"))
		if it.Disc > 0 {
			base = fmt.Sprintf("%d-%02d %s", it.Disc, it.Track, orUnknown(it.Title, "Untitled"))
		}
		rel = filepath.Join(
			SanitizeFilename(artist),
			SanitizeFilename(album),
			fmt.Sprintf("%s.%s", SanitizeFilename(base), ext),
		)
	}

	dest := filepath.Join(root, rel)
	if err := ValidatePath(dest, root); err != nil {
		return "", err
	}
	return dest, nil
}

func orUnknown(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// insideDir reports whether path is under dir.
func insideDir(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
