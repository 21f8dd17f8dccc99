package importer

import (
	"log/slog"
	"os"

	"github.com/crate-media/crate/internal/archive"
	"github.com/crate-media/crate/internal/config"
	"github.com/crate-media/crate/internal/events"
	"github.com/crate-media/crate/internal/media"
	"github.com/crate-media/crate/internal/scanner"
	"github.com/crate-media/crate/internal/state"
	"github.com/crate-media/crate/internal/workpool"
)

// Factory turns the session's top-level paths into a stream of tasks and is
// the pipeline's source. For each top path it emits the unit tasks first and
// a sentinel strictly last, so progress for the whole tree is only reset
// once everything under it has finalized. Archive files are extracted into
// a temporary directory and scanned like an ordinary tree; their sentinel
// owns the directory.
type Factory struct {
	TopPaths []string
	Cfg      config.ImportConfig
	State    *state.File
	Resolver Resolver
	Events   *events.Registry
	Log      *slog.Logger

	topIdx  int
	pending []*Task
}

func (f *Factory) logger() *slog.Logger {
	if f.Log == nil {
		return slog.Default()
	}
	return f.Log
}

// Next implements pipeline.Source. Unit tasks pass through the task-created
// hook before entering the pipeline; a handler returning a replacement
// slice substitutes the original, and an empty slice drops it.
func (f *Factory) Next() (any, bool) {
	for {
		if len(f.pending) == 0 {
			if f.topIdx >= len(f.TopPaths) {
				return nil, false
			}
			f.pending = f.produce(f.TopPaths[f.topIdx])
			f.topIdx++
			continue
		}
		t := f.pending[0]
		f.pending = f.pending[1:]

		if f.Events != nil && t.Kind != KindSentinel && t.Kind != KindArchive {
			results := f.Events.Fire(events.TaskCreated{
				BaseEvent: events.NewBaseEvent(events.EventTaskCreated),
				Task:      t,
			})
			substituted := false
			var replacements []*Task
			for _, res := range results {
				if ts, ok := res.([]*Task); ok {
					substituted = true
					replacements = append(replacements, ts...)
				}
			}
			if substituted {
				f.pending = append(replacements, f.pending...)
				continue
			}
		}
		return t, true
	}
}

// produce builds every task for one top path, sentinel last.
func (f *Factory) produce(top string) []*Task {
	log := f.logger()

	scanRoot := top
	extractDir := ""
	if archive.IsArchive(top) {
		dir, err := archive.Extract(top, log)
		if err != nil {
			log.Warn("could not extract archive, skipping", "path", top, "error", err)
			return nil
		}
		extractDir = dir
		scanRoot = dir
	}

	finish := func(tasks []*Task) []*Task {
		if extractDir != "" {
			return append(tasks, NewArchiveTask(top, extractDir))
		}
		return append(tasks, NewSentinelTask(top, nil))
	}

	resume := false
	if f.State != nil && f.State.HasProgress(top) {
		resume = f.Cfg.Resume || (f.Resolver != nil && f.Resolver.ShouldResume(top))
		if resume {
			log.Info("resuming interrupted import", "path", top)
		} else {
			f.State.ResetProgress(top)
		}
	}

	info, err := os.Stat(scanRoot)
	if err != nil {
		log.Warn("could not stat import path, skipping", "path", scanRoot, "error", err)
		if extractDir != "" {
			_ = os.RemoveAll(extractDir)
		}
		return nil
	}

	if !info.IsDir() {
		return finish(f.fileTasks(top, scanRoot))
	}

	var tasks []*Task
	opts := scanner.Options{
		Ignore:       f.Cfg.Ignore,
		IgnoreHidden: f.Cfg.IgnoreHidden,
		Logger:       log,
	}
	if err := scanner.Albums(scanRoot, opts, func(g scanner.Group) {
		tasks = append(tasks, f.groupTasks(top, g, resume)...)
	}); err != nil {
		log.Warn("could not scan import path", "path", scanRoot, "error", err)
	}
	return finish(tasks)
}

// groupTasks converts one scanned unit into tasks, honoring resume and
// incremental skip rules. Unreadable files are logged and left behind.
func (f *Factory) groupTasks(top string, g scanner.Group, resume bool) []*Task {
	log := f.logger()

	if resume && f.allDone(top, g.Dirs) {
		log.Debug("unit already imported in interrupted run, skipping", "paths", g.Dirs)
		return nil
	}
	// In singleton mode history is recorded per file, so the group-level
	// check would never match; individual files are filtered below instead.
	if f.Cfg.Incremental && !f.Cfg.Singletons && f.State != nil && f.State.HasHistory(g.Dirs) {
		log.Debug("unit imported previously, skipping", "paths", g.Dirs)
		return nil
	}

	// Tags are read in parallel; slots keep the files' traversal order.
	slots := make([]*media.Item, len(g.Files))
	pool := workpool.New(0)
	for i, path := range g.Files {
		if !media.IsAudioFile(path) {
			continue
		}
		pool.Submit(func() error {
			it, err := media.ReadItem(path)
			if err != nil {
				log.Warn("unreadable file skipped", "path", path, "error", err)
				return nil
			}
			slots[i] = it
			return nil
		})
	}
	_ = pool.Wait()

	var items []*media.Item
	for _, it := range slots {
		if it != nil {
			items = append(items, it)
		}
	}
	if len(items) == 0 {
		return nil
	}

	if f.Cfg.Singletons {
		tasks := make([]*Task, 0, len(items)+1)
		for _, it := range items {
			if f.Cfg.Incremental && f.State != nil && f.State.HasHistory([]string{it.Path}) {
				log.Debug("file imported previously, skipping", "path", it.Path)
				continue
			}
			tasks = append(tasks, NewSingletonTask(top, it))
		}
		// A partial sentinel marks the unit done without resetting the
		// whole top path.
		return append(tasks, NewSentinelTask(top, g.Dirs))
	}
	return []*Task{NewAlbumTask(top, g.Dirs, items)}
}

// fileTasks handles a top path naming a single file rather than a tree.
func (f *Factory) fileTasks(top, path string) []*Task {
	log := f.logger()

	if !media.IsAudioFile(path) {
		log.Warn("not an audio file, skipping", "path", path)
		return nil
	}
	if f.Cfg.Incremental && f.State != nil && f.State.HasHistory([]string{top}) {
		log.Debug("file imported previously, skipping", "path", top)
		return nil
	}
	it, err := media.ReadItem(path)
	if err != nil {
		log.Warn("unreadable file skipped", "path", path, "error", err)
		return nil
	}
	if f.Cfg.Singletons {
		return []*Task{NewSingletonTask(top, it)}
	}
	t := NewAlbumTask(top, []string{top}, []*media.Item{it})
	return []*Task{t}
}

func (f *Factory) allDone(top string, paths []string) bool {
	if f.State == nil || len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		if !f.State.LookupProgress(top, p) {
			return false
		}
	}
	return true
}
