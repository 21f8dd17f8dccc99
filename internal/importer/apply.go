package importer

import (
	"log/slog"
	"slices"

	"github.com/crate-media/crate/internal/media"
)

// applyMetadata writes the chosen match onto the task's items. Only Apply
// and Retag decisions mutate metadata. In from-scratch mode all carried
// fields are cleared first so stale tags cannot leak through.
func applyMetadata(t *Task, fromScratch bool) {
	switch t.Decision() {
	case DecisionApply:
	case DecisionRetag:
		return // keep current metadata; placement re-runs below
	default:
		return
	}

	cand := t.Match()
	if cand == nil && len(t.Candidates) > 0 {
		cand = &t.Candidates[0]
	}
	if cand == nil {
		return
	}

	for _, it := range t.Items {
		if fromScratch {
			it.Album = ""
			it.AlbumArtist = ""
			it.Year = 0
			it.Attrs = make(map[string]string)
		}

		if t.Kind == KindAlbum {
			it.Album = cand.Album
			it.AlbumArtist = cand.Artist
			if it.Artist == "" {
				it.Artist = cand.Artist
			}
		} else {
			if cand.Artist != "" {
				it.Artist = cand.Artist
			}
		}

		// An incomplete new date must not clobber a more complete one.
		if cand.Year != 0 || it.Year == 0 {
			if cand.Year != 0 {
				it.Year = cand.Year
			}
		}
	}
}

// carryForward copies reimport state from an old record onto its
// replacement: the added timestamp unconditionally, and every previously
// set free-form attribute except the configured fresh fields, which are
// dropped (and logged) when the new value is non-empty and differs.
func carryForward(old, fresh *media.Item, freshFields []string, log *slog.Logger) {
	fresh.AddedAt = old.AddedAt

	if fresh.Attrs == nil {
		fresh.Attrs = make(map[string]string)
	}
	for k, oldVal := range old.Attrs {
		newVal, has := fresh.Attrs[k]
		if has && newVal != "" && newVal != oldVal && slices.Contains(freshFields, k) {
			log.Debug("reimported item discards old attribute",
				"path", fresh.Path, "attr", k, "old", oldVal, "new", newVal)
			continue
		}
		fresh.Attrs[k] = oldVal
	}
}
