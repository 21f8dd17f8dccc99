package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

func collect(t *testing.T, root string, opts Options) []Group {
	t.Helper()
	var groups []Group
	require.NoError(t, Albums(root, opts, func(g Group) {
		groups = append(groups, g)
	}))
	return groups
}

func names(files []string) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = filepath.Base(f)
	}
	return out
}

func TestSingleDirectoryAlbum(t *testing.T) {
	root := t.TempDir()
	touch(t,
		filepath.Join(root, "Album", "01.mp3"),
		filepath.Join(root, "Album", "02.mp3"),
	)

	groups := collect(t, root, Options{})
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"01.mp3", "02.mp3"}, names(groups[0].Files))
}

func TestNestedMultiDiscCollapses(t *testing.T) {
	root := t.TempDir()
	touch(t,
		filepath.Join(root, "Album", "cd1", "a.mp3"),
		filepath.Join(root, "Album", "cd2", "b.mp3"),
		filepath.Join(root, "Album", "cd3 bonus", "c.mp3"),
	)

	groups := collect(t, root, Options{})
	require.Len(t, groups, 1, "all discs collapse into one unit")
	assert.ElementsMatch(t, []string{"a.mp3", "b.mp3", "c.mp3"}, names(groups[0].Files))
	assert.Len(t, groups[0].Dirs, 4, "collapse root plus three disc directories")
}

func TestFlattenedMultiDiscCollapses(t *testing.T) {
	root := t.TempDir()
	touch(t,
		filepath.Join(root, "Title Disc 1", "a.mp3"),
		filepath.Join(root, "Title Disc 2", "b.mp3"),
	)

	groups := collect(t, root, Options{})
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []string{"a.mp3", "b.mp3"}, names(groups[0].Files))
}

func TestUnrelatedSiblingsStaySeparate(t *testing.T) {
	root := t.TempDir()
	touch(t,
		filepath.Join(root, "ArtistX", "x.mp3"),
		filepath.Join(root, "ArtistY", "y.mp3"),
	)

	groups := collect(t, root, Options{})
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"x.mp3"}, names(groups[0].Files))
	assert.Equal(t, []string{"y.mp3"}, names(groups[1].Files))
}

func TestMixedSubdirPrefixesDoNotCollapse(t *testing.T) {
	root := t.TempDir()
	touch(t,
		filepath.Join(root, "Box", "cd1", "a.mp3"),
		filepath.Join(root, "Box", "volume2", "b.mp3"),
	)

	groups := collect(t, root, Options{})
	require.Len(t, groups, 2, "disagreeing subdirectory names stay separate")
}

func TestEmptyDirectoriesNeverYielded(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty", "deeper"), 0o755))
	touch(t, filepath.Join(root, "real", "a.mp3"))

	groups := collect(t, root, Options{})
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a.mp3"}, names(groups[0].Files))
}

func TestIgnorePatternsAndHidden(t *testing.T) {
	root := t.TempDir()
	touch(t,
		filepath.Join(root, "Album", "a.mp3"),
		filepath.Join(root, "Album", ".hidden.mp3"),
		filepath.Join(root, "Album", "cover.jpg.part"),
	)

	groups := collect(t, root, Options{Ignore: []string{"*.part"}, IgnoreHidden: true})
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a.mp3"}, names(groups[0].Files))
}

func TestCaseInsensitiveOrder(t *testing.T) {
	root := t.TempDir()
	touch(t,
		filepath.Join(root, "beta", "b.mp3"),
		filepath.Join(root, "Alpha", "a.mp3"),
	)

	groups := collect(t, root, Options{})
	require.Len(t, groups, 2)
	assert.Equal(t, "Alpha", filepath.Base(groups[0].Dirs[0]))
	assert.Equal(t, "beta", filepath.Base(groups[1].Dirs[0]))
}

func TestTopLevelFilesFormUnit(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "loose.mp3"))

	groups := collect(t, root, Options{})
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"loose.mp3"}, names(groups[0].Files))
}
