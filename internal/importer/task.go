// Package importer turns scanned directory trees into library records. It
// models import units as task variants, produces them with a factory, and
// pushes them through the staged pipeline assembled by Session.
package importer

import (
	"log/slog"
	"os"

	"github.com/crate-media/crate/internal/match"
	"github.com/crate-media/crate/internal/media"
	"github.com/crate-media/crate/internal/state"
)

// Kind discriminates the task variants.
type Kind int

const (
	// KindAlbum treats the unit's items as one album.
	KindAlbum Kind = iota
	// KindSingleton imports one item with no album grouping.
	KindSingleton
	// KindSentinel carries no items; it marks a completion boundary for
	// progress bookkeeping.
	KindSentinel
	// KindArchive is a sentinel that additionally owns a temporary
	// extraction directory, removed at its finalize step.
	KindArchive
)

// Decision is the outcome of the choice stage. A task is fixed at exactly
// one decision value.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionSkip
	DecisionAsIs
	DecisionTracks
	DecisionApply
	DecisionAlbums
	DecisionRetag
)

func (d Decision) String() string {
	switch d {
	case DecisionSkip:
		return "skip"
	case DecisionAsIs:
		return "asis"
	case DecisionTracks:
		return "tracks"
	case DecisionApply:
		return "apply"
	case DecisionAlbums:
		return "albums"
	case DecisionRetag:
		return "retag"
	default:
		return "none"
	}
}

// Task is one unit of import work moving through the pipeline. Identity
// fields (Kind, TopPath, Paths, Items) are immutable after construction;
// the rest accumulates through the forward-only stage sequence.
type Task struct {
	Kind    Kind
	TopPath string   // empty for query-driven imports
	Paths   []string // source paths; progress/history keys and display
	Items   []*media.Item

	// Candidate lookup results.
	Candidates []match.Candidate
	Rec        match.Recommendation

	decision Decision
	chosen   *match.Candidate // payload of an Apply decision

	// Post-decision derived state.
	replaced     map[*media.Item][]*media.Item // old records at each item's destination
	duplicates   []Duplicate                   // colliding records, when removed or merged
	mergeAlbums  []int64                       // duplicate albums absorbed on merge
	removeDupes  bool
	skipDupe     bool
	destinations map[*media.Item]string
	oldPaths     []string // source paths before placement

	albumID    int64
	extractDir string // archive tasks only
}

// NewAlbumTask builds a group task covering one album unit.
func NewAlbumTask(top string, paths []string, items []*media.Item) *Task {
	return &Task{Kind: KindAlbum, TopPath: top, Paths: paths, Items: items}
}

// NewSingletonTask builds a task for one item with no album grouping.
func NewSingletonTask(top string, item *media.Item) *Task {
	return &Task{Kind: KindSingleton, TopPath: top, Paths: []string{item.Path}, Items: []*media.Item{item}}
}

// NewSentinelTask marks completion of a top path (paths nil) or of a
// sub-range of one (paths set, singleton mode).
func NewSentinelTask(top string, paths []string) *Task {
	return &Task{Kind: KindSentinel, TopPath: top, Paths: paths}
}

// NewArchiveTask marks completion of an archive-backed top path and owns
// its temporary extraction directory. The factory emits it strictly after
// every task derived from the same archive.
func NewArchiveTask(top, extractDir string) *Task {
	return &Task{Kind: KindArchive, TopPath: top, extractDir: extractDir}
}

// SetDecision fixes the task's decision. Setting it twice is a
// programming error.
func (t *Task) SetDecision(d Decision) error {
	if t.decision != DecisionNone {
		return ErrDecisionSet
	}
	t.decision = d
	return nil
}

// Decision returns the fixed decision, DecisionNone before the choice
// stage has run.
func (t *Task) Decision() Decision { return t.decision }

// SetMatch records the chosen match carried by an Apply decision.
func (t *Task) SetMatch(c match.Candidate) { t.chosen = &c }

// Match returns the chosen match, nil unless the decision is Apply.
func (t *Task) Match() *match.Candidate { return t.chosen }

// Skip reports whether downstream stages should pass the task through
// untouched. Sentinels always short-circuit placement and duplicate logic.
func (t *Task) Skip() bool {
	switch t.Kind {
	case KindSentinel, KindArchive:
		return true
	default:
		return t.decision == DecisionSkip || t.skipDupe
	}
}

// Imports returns the items this task contributes to the library; nil for
// sentinels and skipped tasks.
func (t *Task) Imports() []*media.Item {
	if t.Skip() {
		return nil
	}
	return t.Items
}

// SaveProgress records this task's completion in the durable state. A
// bare sentinel resets its top path: the whole tree is done and the
// resume bookkeeping for it is obsolete.
func (t *Task) SaveProgress(st *state.File) {
	if t.TopPath == "" || st == nil {
		return
	}
	switch t.Kind {
	case KindSentinel, KindArchive:
		if len(t.Paths) == 0 {
			st.ResetProgress(t.TopPath)
		} else {
			st.MarkProgress(t.TopPath, t.Paths...)
		}
	default:
		st.MarkProgress(t.TopPath, t.Paths...)
	}
}

// SaveHistory records the task's path group for incremental imports.
// Path order is preserved exactly as the factory emitted it.
func (t *Task) SaveHistory(st *state.File) {
	if st == nil || t.Kind == KindSentinel || t.Kind == KindArchive || len(t.Paths) == 0 {
		return
	}
	st.AddHistory(t.Paths)
}

// Cleanup releases resources owned by the task. For archive tasks this
// removes the temporary extraction directory; by construction every
// sibling task has already finalized.
func (t *Task) Cleanup(log *slog.Logger) {
	if t.Kind != KindArchive || t.extractDir == "" {
		return
	}
	if err := os.RemoveAll(t.extractDir); err != nil {
		log.Warn("could not remove extraction directory", "path", t.extractDir, "error", err)
	} else {
		log.Debug("extraction directory removed", "path", t.extractDir)
	}
	t.extractDir = ""
}

// ExtractDir exposes the archive task's temporary directory.
func (t *Task) ExtractDir() string { return t.extractDir }
