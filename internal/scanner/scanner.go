// Package scanner walks a directory tree in deterministic order and
// partitions its files into import units, collapsing multi-disc album
// layouts into a single unit.
package scanner

import (
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Group is one import unit: the directories it spans and the files they
// contain, in traversal order.
type Group struct {
	Dirs  []string
	Files []string
}

// Options controls traversal.
type Options struct {
	// Ignore holds glob patterns matched against entry base names.
	Ignore []string
	// IgnoreHidden skips entries whose base name starts with a dot.
	IgnoreHidden bool
	Logger       *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Multi-disc markers, tried in order. A directory named like
// "<prefix><marker><separators><digit>" is part of a disc sequence.
var multiDiscMarkers = []string{"disc", "cd"}

func markerPattern(marker string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^(.*` + marker + `[\W_]*)\d`)
}

func prefixPattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(prefix) + `\d`)
}

type dirEntry struct {
	root  string
	dirs  []string // immediate subdirectory base names, sorted
	files []string // immediate file base names, sorted
}

// Albums walks root top-down in case-insensitively sorted order and calls
// fn once per album unit. Directories with no files and no qualifying
// subdirectories are skipped silently.
func Albums(root string, opts Options, fn func(Group)) error {
	entries, err := sortedWalk(root, opts)
	if err != nil {
		return err
	}

	var (
		collapseDirs  []string
		collapseFiles []string
		collapsePat   *regexp.Regexp
	)

	yield := func() {
		if len(collapseFiles) > 0 {
			fn(Group{Dirs: collapseDirs, Files: collapseFiles})
		}
		collapseDirs, collapseFiles, collapsePat = nil, nil, nil
	}

	for _, e := range entries {
		files := make([]string, 0, len(e.files))
		for _, f := range e.files {
			files = append(files, filepath.Join(e.root, f))
		}

		// A collapse in progress absorbs descendants of the collapse
		// root and siblings matching the active prefix pattern.
		if collapseDirs != nil {
			if isSubdir(e.root, collapseDirs[0]) ||
				(collapsePat != nil && collapsePat.MatchString(filepath.Base(e.root))) {
				collapseDirs = append(collapseDirs, e.root)
				collapseFiles = append(collapseFiles, files...)
				continue
			}
			yield()
		}

		// Does this directory start a new multi-disc sequence? Either
		// it holds only subdirectories that share a disc-marker prefix
		// (nested form), or its own name carries the marker (flattened
		// form, which also primes the sibling prefix pattern).
		startCollapsing := false
		for _, marker := range multiDiscMarkers {
			pat := markerPattern(marker)
			match := pat.FindStringSubmatch(filepath.Base(e.root))

			if len(e.dirs) > 0 && len(e.files) == 0 {
				startCollapsing = true
				var subdirPat *regexp.Regexp
				for _, sub := range e.dirs {
					if subdirPat == nil {
						m := pat.FindStringSubmatch(sub)
						if m == nil {
							startCollapsing = false
							break
						}
						subdirPat = prefixPattern(m[1])
					} else if !subdirPat.MatchString(sub) {
						startCollapsing = false
						break
					}
				}
				if startCollapsing {
					break
				}
			} else if match != nil {
				startCollapsing = true
				collapsePat = prefixPattern(match[1])
				break
			}
		}

		if startCollapsing {
			collapseDirs = []string{e.root}
			collapseFiles = files
		} else if len(files) > 0 {
			fn(Group{Dirs: []string{e.root}, Files: files})
		}
	}

	yield()
	return nil
}

// sortedWalk lists root and its subtree top-down: every directory appears
// before its descendants, and a directory's subtree is contiguous. Entries
// at each level are sorted case-insensitively.
func sortedWalk(root string, opts Options) ([]dirEntry, error) {
	log := opts.logger()

	var walk func(dir string, out []dirEntry) []dirEntry
	walk = func(dir string, out []dirEntry) []dirEntry {
		ents, err := os.ReadDir(dir)
		if err != nil {
			log.Warn("could not list directory, skipping", "path", dir, "error", err)
			return out
		}

		var dirs, files []string
		for _, ent := range ents {
			name := ent.Name()
			if skipName(name, opts) {
				continue
			}
			if ent.IsDir() {
				dirs = append(dirs, name)
			} else {
				files = append(files, name)
			}
		}
		sortFold(dirs)
		sortFold(files)

		out = append(out, dirEntry{root: dir, dirs: dirs, files: files})
		for _, d := range dirs {
			out = walk(filepath.Join(dir, d), out)
		}
		return out
	}

	if _, err := os.Stat(root); err != nil {
		return nil, err
	}
	return walk(filepath.Clean(root), nil), nil
}

func skipName(name string, opts Options) bool {
	if opts.IgnoreHidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, pat := range opts.Ignore {
		if ok, err := path.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

func sortFold(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
}

func isSubdir(p, parent string) bool {
	rel, err := filepath.Rel(parent, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "."
}
