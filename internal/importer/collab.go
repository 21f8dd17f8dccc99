package importer

import (
	"log/slog"

	"github.com/crate-media/crate/internal/library"
	"github.com/crate-media/crate/internal/match"
	"github.com/crate-media/crate/internal/media"
)

// Duplicate is one pre-existing library record set that collides with an
// incoming task. Album is nil for singleton collisions.
type Duplicate struct {
	Album *library.Album
	Items []*media.Item
}

// Resolution is the outcome of duplicate resolution.
type Resolution int

const (
	// ResolutionKeepBoth imports the new records alongside the old.
	ResolutionKeepBoth Resolution = iota
	// ResolutionRemove deletes the old records before importing.
	ResolutionRemove
	// ResolutionSkip abandons the incoming task.
	ResolutionSkip
	// ResolutionMerge absorbs the old records into the new album.
	ResolutionMerge
)

// Resolver supplies the decisions an interactive frontend would make.
// The session consults it once per task; implementations inspect the
// task's Candidates and Rec fields.
type Resolver interface {
	// ChooseMatch decides an album task. Returning DecisionApply
	// without calling SetMatch applies the first candidate.
	ChooseMatch(task *Task) Decision
	// ChooseItem decides a singleton task.
	ChooseItem(task *Task) Decision
	// ResolveDuplicates picks what to do with colliding records.
	ResolveDuplicates(task *Task, duplicates []Duplicate) Resolution
	// ShouldResume is asked when prior progress exists for a top path
	// and resume was not forced on.
	ShouldResume(topPath string) bool
}

// AutoResolver is the non-interactive default: strong recommendations are
// applied, everything else imported as-is, duplicates kept.
type AutoResolver struct {
	Logger *slog.Logger
}

// ChooseMatch implements Resolver.
func (r AutoResolver) ChooseMatch(task *Task) Decision {
	if task.Rec == match.RecommendStrong && len(task.Candidates) > 0 {
		return DecisionApply
	}
	return DecisionAsIs
}

// ChooseItem implements Resolver.
func (r AutoResolver) ChooseItem(task *Task) Decision {
	if task.Rec == match.RecommendStrong && len(task.Candidates) > 0 {
		return DecisionApply
	}
	return DecisionAsIs
}

// ResolveDuplicates implements Resolver.
func (r AutoResolver) ResolveDuplicates(task *Task, duplicates []Duplicate) Resolution {
	if r.Logger != nil {
		r.Logger.Info("duplicates found, keeping both", "paths", task.Paths, "count", len(duplicates))
	}
	return ResolutionKeepBoth
}

// ShouldResume implements Resolver.
func (r AutoResolver) ShouldResume(string) bool { return true }
