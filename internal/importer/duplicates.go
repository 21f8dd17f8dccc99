package importer

import (
	"errors"
	"fmt"

	"github.com/crate-media/crate/internal/library"
	"github.com/crate-media/crate/internal/match"
	"github.com/crate-media/crate/internal/media"
)

// resolvedPair returns the artist/album (or artist/title for singletons)
// the task will be stored under, after any chosen match has been applied.
func resolvedPair(t *Task) (artist, title string) {
	if len(t.Items) == 0 {
		return "", ""
	}
	it := t.Items[0]
	if t.Kind == KindSingleton {
		return it.Artist, it.Title
	}
	artist = it.AlbumArtist
	if artist == "" {
		artist = it.Artist
	}
	return artist, it.Album
}

// findDuplicates queries the library for records colliding with the task's
// resolved identity. Matches whose item paths are all among the task's own
// source paths are re-imports of the same files, not duplicates, and are
// excluded.
func findDuplicates(store *library.Store, t *Task) ([]Duplicate, error) {
	if t.Skip() || len(t.Items) == 0 {
		return nil, nil
	}
	artist, title := resolvedPair(t)
	if artist == "" && title == "" {
		return nil, nil
	}

	// Own paths are the item file paths, not t.Paths: for albums t.Paths
	// holds directories, while stored duplicates are compared by file.
	own := make(map[string]bool, len(t.Items))
	for _, it := range t.Items {
		own[it.Path] = true
	}

	var dupes []Duplicate
	if t.Kind == KindSingleton {
		items, err := store.FindItems(library.ItemFilter{Artist: &artist, Title: &title})
		if err != nil {
			return nil, fmt.Errorf("find duplicate items: %w", err)
		}
		for _, it := range items {
			if !own[it.Path] && match.Normalize(it.Title) == match.Normalize(title) {
				dupes = append(dupes, Duplicate{Items: []*media.Item{it}})
			}
		}
		return dupes, nil
	}

	albums, err := store.FindAlbums(artist, title)
	if err != nil {
		return nil, fmt.Errorf("find duplicate albums: %w", err)
	}
	for _, a := range albums {
		items, err := store.FindItems(library.ItemFilter{AlbumID: &a.ID})
		if err != nil {
			return nil, fmt.Errorf("load duplicate album items: %w", err)
		}
		subset := len(items) > 0
		for _, it := range items {
			if !own[it.Path] {
				subset = false
				break
			}
		}
		if subset {
			continue
		}
		dupes = append(dupes, Duplicate{Album: a, Items: items})
	}
	return dupes, nil
}

// resolveDuplicates consults the resolver and records the outcome on the
// task. Removal and merging happen later, inside the store transaction.
func resolveDuplicates(store *library.Store, t *Task, r Resolver) error {
	dupes, err := findDuplicates(store, t)
	if err != nil || len(dupes) == 0 {
		return err
	}

	switch r.ResolveDuplicates(t, dupes) {
	case ResolutionSkip:
		t.skipDupe = true
	case ResolutionRemove:
		t.removeDupes = true
		t.duplicates = dupes
	case ResolutionMerge:
		if t.Kind == KindSingleton {
			return errors.New("cannot merge a singleton into an album")
		}
		for _, d := range dupes {
			if d.Album != nil {
				t.mergeAlbums = append(t.mergeAlbums, d.Album.ID)
			}
		}
		t.duplicates = dupes
	case ResolutionKeepBoth:
	}
	return nil
}
