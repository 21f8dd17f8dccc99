// Package match builds album candidates from the items of an import unit
// and scores how well the unit agrees with them. It is a deliberately
// simple, local stand-in for a network autotagger: the session only needs
// candidates and a recommendation strength to drive its decision stage.
package match

import (
	"sort"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/crate-media/crate/internal/media"
)

// Recommendation grades how confidently a candidate fits the items.
type Recommendation int

const (
	RecommendNone Recommendation = iota
	RecommendMedium
	RecommendStrong
)

func (r Recommendation) String() string {
	switch r {
	case RecommendStrong:
		return "strong"
	case RecommendMedium:
		return "medium"
	default:
		return "none"
	}
}

// Candidate is a proposed album identity for an import unit.
type Candidate struct {
	Artist     string
	Album      string
	Year       int
	Similarity float64 // 0..1, agreement of the unit's items with this identity
}

var accentStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize lowercases a string and strips diacritics for comparison.
func Normalize(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Similarity is the Jaro-Winkler similarity of two normalized strings.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" && nb == "" {
		return 1
	}
	return float64(edlib.JaroWinklerSimilarity(na, nb))
}

// Lookup derives candidates for an album unit from the consensus of its
// items' tags and grades the agreement.
func Lookup(items []*media.Item) ([]Candidate, Recommendation) {
	if len(items) == 0 {
		return nil, RecommendNone
	}

	artist := consensus(items, func(it *media.Item) string {
		if it.AlbumArtist != "" {
			return it.AlbumArtist
		}
		return it.Artist
	})
	album := consensus(items, func(it *media.Item) string { return it.Album })
	year := yearConsensus(items)

	var total float64
	for _, it := range items {
		a := it.AlbumArtist
		if a == "" {
			a = it.Artist
		}
		total += (Similarity(a, artist) + Similarity(it.Album, album)) / 2
	}
	sim := total / float64(len(items))

	cand := Candidate{Artist: artist, Album: album, Year: year, Similarity: sim}
	return []Candidate{cand}, grade(sim)
}

// LookupItem derives a candidate for a single track.
func LookupItem(item *media.Item) ([]Candidate, Recommendation) {
	if item == nil {
		return nil, RecommendNone
	}
	sim := 0.0
	if item.Title != "" && item.Artist != "" {
		sim = 1.0
	} else if item.Title != "" || item.Artist != "" {
		sim = 0.75
	}
	cand := Candidate{Artist: item.Artist, Album: item.Album, Year: item.Year, Similarity: sim}
	return []Candidate{cand}, grade(sim)
}

func grade(sim float64) Recommendation {
	switch {
	case sim >= 0.9:
		return RecommendStrong
	case sim >= 0.7:
		return RecommendMedium
	default:
		return RecommendNone
	}
}

// consensus returns the most common non-empty value, ties broken by first
// occurrence.
func consensus(items []*media.Item, get func(*media.Item) string) string {
	counts := make(map[string]int)
	order := make(map[string]int)
	for i, it := range items {
		v := get(it)
		if v == "" {
			continue
		}
		key := Normalize(v)
		counts[key]++
		if _, seen := order[key]; !seen {
			order[key] = i
		}
	}
	if len(counts) == 0 {
		return ""
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return order[keys[i]] < order[keys[j]]
	})

	// Report the original spelling of the winning value.
	winner := keys[0]
	for _, it := range items {
		if v := get(it); v != "" && Normalize(v) == winner {
			return v
		}
	}
	return ""
}

func yearConsensus(items []*media.Item) int {
	counts := make(map[int]int)
	for _, it := range items {
		if it.Year != 0 {
			counts[it.Year]++
		}
	}
	best, bestN := 0, 0
	for y, n := range counts {
		if n > bestN || (n == bestN && y < best) {
			best, bestN = y, n
		}
	}
	return best
}
