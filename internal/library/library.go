// Package library is the SQLite-backed storage engine for imported music.
// It tracks albums, items, and their free-form attributes.
package library

import "time"

// Album is a group of imported items.
type Album struct {
	ID      int64
	Artist  string
	Title   string
	Year    int
	AddedAt time.Time
	Attrs   map[string]string
}

// ItemFilter specifies criteria for listing items.
type ItemFilter struct {
	AlbumID *int64
	Artist  *string
	Title   *string
	Limit   int
}
