package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/crate-media/crate/internal/config"
	"github.com/crate-media/crate/internal/events"
	"github.com/crate-media/crate/internal/library"
	"github.com/crate-media/crate/internal/match"
	"github.com/crate-media/crate/internal/media"
	"github.com/crate-media/crate/internal/pipeline"
	"github.com/crate-media/crate/internal/state"
)

// Session runs one import over a set of top paths. It wires the task
// factory and the stage functions into a pipeline: candidate lookup and
// decision, duplicate resolution and storage, then placement and
// finalization. Stages run single-worker so tasks finalize in production
// order and every sentinel trails its siblings.
type Session struct {
	Store    *library.Store
	State    *state.File
	Config   *config.Config
	Resolver Resolver
	Events   *events.Registry
	Writer   media.Writer
	Log      *slog.Logger

	imported int
	skipped  int
}

func (s *Session) normalize() {
	if s.Log == nil {
		s.Log = slog.Default()
	}
	if s.Config == nil {
		s.Config = config.Default()
	}
	if s.Resolver == nil {
		s.Resolver = AutoResolver{Logger: s.Log}
	}
	if s.Events == nil {
		s.Events = events.NewRegistry()
	}
	if s.Writer == nil {
		s.Writer = media.NopWriter{Logger: s.Log}
	}
}

// Imported reports how many unit tasks were stored by the last run.
func (s *Session) Imported() int { return s.imported }

// Skipped reports how many unit tasks the last run passed over.
func (s *Session) Skipped() int { return s.skipped }

// Run imports the given top paths. Pretend mode runs the full decision flow
// but touches neither the library nor the filesystem, and always runs
// sequentially.
func (s *Session) Run(ctx context.Context, topPaths ...string) error {
	s.normalize()
	s.imported, s.skipped = 0, 0

	imp := s.Config.Import
	factory := &Factory{
		TopPaths: topPaths,
		Cfg:      imp,
		State:    s.State,
		Resolver: s.Resolver,
		Events:   s.Events,
		Log:      s.Log,
	}

	s.Events.Fire(events.ImportBegan{
		BaseEvent: events.NewBaseEvent(events.EventImportBegan),
		TopPaths:  topPaths,
	})

	p := pipeline.New(factory,
		pipeline.Stage{Fn: s.decideStage},
		pipeline.Stage{Fn: s.storeStage},
		pipeline.Stage{Fn: s.finalizeStage},
	)

	var err error
	if imp.Threaded && !imp.Pretend {
		err = p.RunParallel(ctx, imp.QueueSize)
	} else {
		err = p.Run(ctx)
	}

	s.Events.Fire(events.ImportFinished{
		BaseEvent: events.NewBaseEvent(events.EventImportFinished),
		Imported:  s.imported,
		Skipped:   s.skipped,
	})
	return err
}

// decideStage looks up candidates, fixes the task's decision, and applies
// the chosen metadata. Tracks and Albums decisions dissolve the unit and
// feed the fragments back through the same logic.
func (s *Session) decideStage(msg any) ([]any, error) {
	t := msg.(*Task)
	if t.Kind == KindSentinel || t.Kind == KindArchive {
		return []any{t}, nil
	}

	var d Decision
	if t.Kind == KindSingleton {
		t.Candidates, t.Rec = match.LookupItem(t.Items[0])
		d = s.Resolver.ChooseItem(t)
		// Singletons cannot dissolve further; a split decision would
		// recurse through the same single track forever.
		if d == DecisionTracks || d == DecisionAlbums {
			s.Log.Warn("decision not valid for single tracks, importing as-is", "paths", t.Paths, "decision", d.String())
			d = DecisionAsIs
		}
	} else {
		t.Candidates, t.Rec = match.Lookup(t.Items)
		d = s.Resolver.ChooseMatch(t)
	}

	switch d {
	case DecisionTracks:
		return s.dissolve(t, func(items []*media.Item) []*Task {
			tasks := make([]*Task, 0, len(items))
			for _, it := range items {
				tasks = append(tasks, NewSingletonTask(t.TopPath, it))
			}
			return tasks
		})
	case DecisionAlbums:
		return s.dissolve(t, func(items []*media.Item) []*Task {
			return regroup(t.TopPath, items)
		})
	}

	if err := t.SetDecision(d); err != nil {
		return nil, fmt.Errorf("decide %v: %w", t.Paths, err)
	}
	if d == DecisionApply && t.Match() == nil && len(t.Candidates) > 0 {
		t.SetMatch(t.Candidates[0])
	}
	applyMetadata(t, s.Config.Import.FromScratch)
	return []any{t}, nil
}

// dissolve replaces a unit task with fragments built from its items, runs
// each fragment through the decision logic, and trails a sentinel carrying
// the original paths so progress still covers the whole unit.
func (s *Session) dissolve(t *Task, split func([]*media.Item) []*Task) ([]any, error) {
	var out []any
	for _, frag := range split(t.Items) {
		fragOut, err := s.decideStage(frag)
		if err != nil {
			return nil, err
		}
		out = append(out, fragOut...)
	}
	return append(out, NewSentinelTask(t.TopPath, t.Paths)), nil
}

// regroup partitions items into album tasks by their album tag.
func regroup(top string, items []*media.Item) []*Task {
	byAlbum := make(map[string][]*media.Item)
	var order []string
	for _, it := range items {
		key := match.Normalize(it.Album)
		if _, seen := byAlbum[key]; !seen {
			order = append(order, key)
		}
		byAlbum[key] = append(byAlbum[key], it)
	}

	tasks := make([]*Task, 0, len(order))
	for _, key := range order {
		group := byAlbum[key]
		paths := make([]string, 0, len(group))
		for _, it := range group {
			paths = append(paths, it.Path)
		}
		tasks = append(tasks, NewAlbumTask(top, paths, group))
	}
	return tasks
}

// storeStage resolves duplicates, computes destinations, and writes the
// task's records in one transaction. Replaced records at the destinations
// are removed after their carried attributes are copied forward. Files are
// not touched here; placement only happens once the records are durable.
func (s *Session) storeStage(msg any) ([]any, error) {
	t := msg.(*Task)
	if t.Skip() {
		return []any{t}, nil
	}
	if s.Config.Import.Pretend {
		s.Log.Info("would import", "paths", t.Paths, "items", len(t.Items), "decision", t.Decision().String())
		return []any{t}, nil
	}

	if err := resolveDuplicates(s.Store, t, s.Resolver); err != nil {
		return nil, err
	}
	if t.Skip() {
		return []any{t}, nil
	}

	if t.Decision() == DecisionApply {
		for _, it := range t.Items {
			if err := s.Writer.WriteTags(it); err != nil {
				s.Log.Warn("could not write tags", "path", it.Path, "error", err)
			}
		}
	}

	if err := s.computeDestinations(t); err != nil {
		return nil, err
	}
	if err := s.persist(t); err != nil {
		return nil, err
	}
	return []any{t}, nil
}

// computeDestinations fixes each item's place under the library directory
// and remembers the source paths for the placement stage.
func (s *Session) computeDestinations(t *Task) error {
	root := s.Config.Library.Directory
	t.destinations = make(map[*media.Item]string, len(t.Items))
	t.oldPaths = make([]string, 0, len(t.Items))
	for _, it := range t.Items {
		dest, err := destination(root, t, it)
		if err != nil {
			return fmt.Errorf("destination for %s: %w", it.Path, err)
		}
		t.destinations[it] = dest
		t.oldPaths = append(t.oldPaths, it.Path)
	}
	return nil
}

// persist writes the task's album and items in one transaction: removed
// duplicates first, then the new album, merged albums, and finally each
// item with its destination as the stored path.
func (s *Session) persist(t *Task) error {
	tx, err := s.Store.Begin()
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if t.removeDupes {
		for _, d := range t.duplicates {
			if d.Album != nil {
				if err := tx.RemoveAlbum(d.Album.ID, true); err != nil {
					return err
				}
				continue
			}
			for _, it := range d.Items {
				if err := tx.RemoveItem(it.ID); err != nil {
					return err
				}
			}
		}
	}

	if t.Kind == KindAlbum {
		artist, title := resolvedPair(t)
		alb := &library.Album{Artist: artist, Title: title, Year: t.Items[0].Year}
		if err := tx.AddAlbum(alb); err != nil {
			return fmt.Errorf("store album %q: %w", title, err)
		}
		t.albumID = alb.ID

		for _, from := range t.mergeAlbums {
			if err := tx.MergeAlbum(from, alb.ID); err != nil {
				return err
			}
		}
	}

	t.replaced = make(map[*media.Item][]*media.Item)
	replacedAlbums := make(map[int64]bool)
	for _, it := range t.Items {
		dest := t.destinations[it]
		old, err := tx.FindItemByPath(dest)
		if err == nil {
			carryForward(old, it, s.Config.Import.FreshFields, s.Log)
			t.replaced[it] = append(t.replaced[it], old)
			if old.AlbumID != 0 {
				replacedAlbums[old.AlbumID] = true
			}
			if err := tx.RemoveItem(old.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, library.ErrNotFound) {
			return err
		}

		it.AlbumID = t.albumID
		it.Path = dest
		if err := tx.AddItem(it); err != nil {
			return fmt.Errorf("store item %q: %w", dest, err)
		}
	}

	// Albums whose last items were replaced above would otherwise linger
	// as empty rows beside the freshly stored album.
	for id := range replacedAlbums {
		if id == t.albumID {
			continue
		}
		left, err := tx.FindItems(library.ItemFilter{AlbumID: &id})
		if err != nil {
			return err
		}
		if len(left) == 0 {
			if err := tx.RemoveAlbum(id, false); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// finalizeStage places files, emits events, and records progress and
// history. A placement failure only fails its own unit: the stored records
// are discarded, the failure is logged, and sibling tasks carry on.
func (s *Session) finalizeStage(msg any) ([]any, error) {
	t := msg.(*Task)
	imp := s.Config.Import
	libRoot := s.Config.Library.Directory

	active := !t.Skip() && !imp.Pretend
	failed := false
	if active {
		failed = !s.place(t, libRoot, imp.Mode())
	}

	if active && !failed {
		if imp.DeleteOriginals && imp.Mode() == config.ModeCopy {
			s.deleteOriginals(t)
		}
		if t.removeDupes {
			s.removeDuplicateFiles(t, libRoot)
		}

		placed := make([]string, 0, len(t.Items))
		for _, it := range t.Items {
			placed = append(placed, it.Path)
		}
		s.Events.Fire(events.FilesPlaced{
			BaseEvent: events.NewBaseEvent(events.EventFilesPlaced),
			Paths:     placed,
		})
		if t.Kind == KindAlbum {
			s.Events.Fire(events.AlbumImported{
				BaseEvent: events.NewBaseEvent(events.EventAlbumImported),
				AlbumID:   t.albumID,
				Items:     len(t.Items),
			})
		} else {
			for _, it := range t.Items {
				s.Events.Fire(events.ItemImported{
					BaseEvent: events.NewBaseEvent(events.EventItemImported),
					ItemID:    it.ID,
					Path:      it.Path,
				})
			}
		}
		s.imported++
	} else if t.Kind != KindSentinel && t.Kind != KindArchive {
		s.skipped++
		if !failed {
			s.Log.Info("skipped", "paths", t.Paths)
		}
	}

	if !imp.Pretend {
		t.SaveProgress(s.State)
		if active && !failed {
			t.SaveHistory(s.State)
		}
	}
	t.Cleanup(s.Log)
	return nil, nil
}

// place transfers every item of a unit to its destination. On failure the
// partial destination is already cleaned up by transfer; the unit's stored
// records are discarded and false is returned.
func (s *Session) place(t *Task, libRoot string, mode config.TransferMode) bool {
	for i, it := range t.Items {
		if err := transfer(t.oldPaths[i], it.Path, libRoot, mode); err != nil {
			s.Log.Warn("could not place unit, skipping", "paths", t.Paths, "error", err)
			s.discardStored(t)
			return false
		}
	}
	return true
}

// discardStored removes the records persisted for a unit whose files never
// arrived, so the library does not reference missing paths.
func (s *Session) discardStored(t *Task) {
	var err error
	if t.albumID != 0 {
		err = s.Store.RemoveAlbum(t.albumID, true)
	} else {
		for _, it := range t.Items {
			if e := s.Store.RemoveItem(it.ID); e != nil && err == nil {
				err = e
			}
		}
	}
	if err != nil {
		s.Log.Warn("could not discard records of failed unit", "paths", t.Paths, "error", err)
	}
}

// deleteOriginals removes the source files of a copy import and prunes
// their directories up to the task's top path.
func (s *Session) deleteOriginals(t *Task) {
	for _, src := range t.oldPaths {
		if err := os.Remove(src); err != nil {
			s.Log.Warn("could not delete original", "path", src, "error", err)
			continue
		}
		if t.TopPath != "" && insideDir(src, t.TopPath) {
			pruneEmptyDirs(filepath.Dir(src), t.TopPath)
		}
	}
}

// removeDuplicateFiles deletes the files of removed duplicate records,
// touching only paths inside the library directory. Paths the task has just
// placed its own files on are left alone.
func (s *Session) removeDuplicateFiles(t *Task, libRoot string) {
	placed := make(map[string]bool, len(t.Items))
	for _, it := range t.Items {
		placed[it.Path] = true
	}
	for _, d := range t.duplicates {
		for _, it := range d.Items {
			if placed[it.Path] || !insideDir(it.Path, libRoot) {
				continue
			}
			if err := os.Remove(it.Path); err != nil && !os.IsNotExist(err) {
				s.Log.Warn("could not delete replaced duplicate", "path", it.Path, "error", err)
				continue
			}
			pruneEmptyDirs(filepath.Dir(it.Path), libRoot)
		}
	}
}
