package library

import (
	"fmt"
	"time"
)

func addAlbum(q querier, a *Album) error {
	if a.AddedAt.IsZero() {
		a.AddedAt = time.Now()
	}
	result, err := q.Exec(`
		INSERT INTO albums (artist, title, year, added_at) VALUES (?, ?, ?, ?)`,
		a.Artist, a.Title, a.Year, a.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("insert album: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	a.ID = id
	return replaceAttrs(q, "album_attrs", "album_id", id, a.Attrs)
}

// AddAlbum inserts a new album. Sets ID and AddedAt on the struct.
func (s *Store) AddAlbum(a *Album) error { return addAlbum(s.db, a) }

// AddAlbum inserts a new album within a transaction.
func (t *Tx) AddAlbum(a *Album) error { return addAlbum(t.tx, a) }

func getAlbum(q querier, id int64) (*Album, error) {
	a := &Album{}
	err := q.QueryRow(`SELECT id, artist, title, year, added_at FROM albums WHERE id = ?`, id).
		Scan(&a.ID, &a.Artist, &a.Title, &a.Year, &a.AddedAt)
	if err != nil {
		return nil, fmt.Errorf("get album %d: %w", id, mapSQLiteError(err))
	}
	if a.Attrs, err = loadAttrs(q, "album_attrs", "album_id", id); err != nil {
		return nil, err
	}
	return a, nil
}

// GetAlbum retrieves an album and its attributes by ID.
func (s *Store) GetAlbum(id int64) (*Album, error) { return getAlbum(s.db, id) }

// GetAlbum retrieves an album within a transaction.
func (t *Tx) GetAlbum(id int64) (*Album, error) { return getAlbum(t.tx, id) }

func findAlbums(q querier, artist, title string) ([]*Album, error) {
	rows, err := q.Query(`
		SELECT id, artist, title, year, added_at FROM albums
		WHERE artist = ? AND title = ? ORDER BY id`, artist, title)
	if err != nil {
		return nil, fmt.Errorf("query albums: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Album
	for rows.Next() {
		a := &Album{}
		if err := rows.Scan(&a.ID, &a.Artist, &a.Title, &a.Year, &a.AddedAt); err != nil {
			return nil, fmt.Errorf("scan album: %w", err)
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate albums: %w", err)
	}
	for _, a := range results {
		if a.Attrs, err = loadAttrs(q, "album_attrs", "album_id", a.ID); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// FindAlbums returns albums with exactly this artist and title.
func (s *Store) FindAlbums(artist, title string) ([]*Album, error) {
	return findAlbums(s.db, artist, title)
}

// FindAlbums queries albums within a transaction.
func (t *Tx) FindAlbums(artist, title string) ([]*Album, error) {
	return findAlbums(t.tx, artist, title)
}

func removeAlbum(q querier, id int64, withItems bool) error {
	if withItems {
		rows, err := q.Query("SELECT id FROM items WHERE album_id = ?", id)
		if err != nil {
			return fmt.Errorf("list album items: %w", err)
		}
		var ids []int64
		for rows.Next() {
			var itemID int64
			if err := rows.Scan(&itemID); err != nil {
				_ = rows.Close()
				return fmt.Errorf("scan item id: %w", err)
			}
			ids = append(ids, itemID)
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, itemID := range ids {
			if err := removeItem(q, itemID); err != nil {
				return err
			}
		}
	}
	if _, err := q.Exec("DELETE FROM album_attrs WHERE album_id = ?", id); err != nil {
		return fmt.Errorf("delete album attrs %d: %w", id, mapSQLiteError(err))
	}
	if _, err := q.Exec("DELETE FROM albums WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete album %d: %w", id, mapSQLiteError(err))
	}
	return nil
}

// RemoveAlbum deletes an album; withItems also deletes its items.
func (s *Store) RemoveAlbum(id int64, withItems bool) error {
	return removeAlbum(s.db, id, withItems)
}

// RemoveAlbum deletes an album within a transaction.
func (t *Tx) RemoveAlbum(id int64, withItems bool) error {
	return removeAlbum(t.tx, id, withItems)
}

func mergeAlbum(q querier, from, to int64) error {
	if _, err := q.Exec("UPDATE items SET album_id = ? WHERE album_id = ?", to, from); err != nil {
		return fmt.Errorf("reassign items of album %d: %w", from, mapSQLiteError(err))
	}
	return removeAlbum(q, from, false)
}

// MergeAlbum reassigns every item of album from to album to and deletes the
// emptied album row.
func (s *Store) MergeAlbum(from, to int64) error { return mergeAlbum(s.db, from, to) }

// MergeAlbum merges two albums within a transaction.
func (t *Tx) MergeAlbum(from, to int64) error { return mergeAlbum(t.tx, from, to) }
