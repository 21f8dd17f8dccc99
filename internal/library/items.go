package library

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/crate-media/crate/internal/media"
)

const itemColumns = `id, album_id, path, title, artist, album, albumartist,
	track, disc, year, format, size_bytes, mtime, added_at`

func addItem(q querier, it *media.Item) error {
	if it.AddedAt.IsZero() {
		it.AddedAt = time.Now()
	}
	var albumID any
	if it.AlbumID != 0 {
		albumID = it.AlbumID
	}
	result, err := q.Exec(`
		INSERT INTO items (album_id, path, title, artist, album, albumartist,
			track, disc, year, format, size_bytes, mtime, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		albumID, it.Path, it.Title, it.Artist, it.Album, it.AlbumArtist,
		it.Track, it.Disc, it.Year, it.Format, it.SizeBytes, it.ModTime, it.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	it.ID = id

	return replaceAttrs(q, "item_attrs", "item_id", id, it.Attrs)
}

// AddItem inserts a new item. Sets ID and AddedAt on the struct and
// persists its free-form attributes.
func (s *Store) AddItem(it *media.Item) error { return addItem(s.db, it) }

// AddItem inserts a new item within a transaction.
func (t *Tx) AddItem(it *media.Item) error { return addItem(t.tx, it) }

func scanItem(scan func(dest ...any) error) (*media.Item, error) {
	it := &media.Item{}
	var albumID sql.NullInt64
	var mtime sql.NullTime
	if err := scan(&it.ID, &albumID, &it.Path, &it.Title, &it.Artist, &it.Album,
		&it.AlbumArtist, &it.Track, &it.Disc, &it.Year, &it.Format,
		&it.SizeBytes, &mtime, &it.AddedAt); err != nil {
		return nil, err
	}
	if albumID.Valid {
		it.AlbumID = albumID.Int64
	}
	if mtime.Valid {
		it.ModTime = mtime.Time
	}
	return it, nil
}

func getItem(q querier, id int64) (*media.Item, error) {
	row := q.QueryRow(`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	it, err := scanItem(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, mapSQLiteError(err))
	}
	it.Attrs, err = loadAttrs(q, "item_attrs", "item_id", id)
	if err != nil {
		return nil, err
	}
	return it, nil
}

// GetItem retrieves an item and its attributes by ID.
// Returns ErrNotFound if the item does not exist.
func (s *Store) GetItem(id int64) (*media.Item, error) { return getItem(s.db, id) }

// GetItem retrieves an item within a transaction.
func (t *Tx) GetItem(id int64) (*media.Item, error) { return getItem(t.tx, id) }

func queryItems(q querier, where string, args ...any) ([]*media.Item, error) {
	rows, err := q.Query(`SELECT `+itemColumns+` FROM items `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*media.Item
	for rows.Next() {
		it, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		results = append(results, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	for _, it := range results {
		if it.Attrs, err = loadAttrs(q, "item_attrs", "item_id", it.ID); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// FindItemByPath returns the item stored at exactly this path, or
// ErrNotFound.
func (s *Store) FindItemByPath(path string) (*media.Item, error) { return findItemByPath(s.db, path) }

// FindItemByPath looks up an item by path within a transaction.
func (t *Tx) FindItemByPath(path string) (*media.Item, error) { return findItemByPath(t.tx, path) }

func findItemByPath(q querier, path string) (*media.Item, error) {
	items, err := queryItems(q, "WHERE path = ?", path)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items[0], nil
}

// FindItems returns items matching the filter.
func (s *Store) FindItems(f ItemFilter) ([]*media.Item, error) { return findItems(s.db, f) }

// FindItems returns items matching the filter within a transaction.
func (t *Tx) FindItems(f ItemFilter) ([]*media.Item, error) { return findItems(t.tx, f) }

func findItems(q querier, f ItemFilter) ([]*media.Item, error) {
	var conditions []string
	var args []any
	if f.AlbumID != nil {
		conditions = append(conditions, "album_id = ?")
		args = append(args, *f.AlbumID)
	}
	if f.Artist != nil {
		conditions = append(conditions, "artist = ?")
		args = append(args, *f.Artist)
	}
	if f.Title != nil {
		conditions = append(conditions, "title = ?")
		args = append(args, *f.Title)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	if f.Limit > 0 {
		where += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	return queryItems(q, where, args...)
}

func removeItem(q querier, id int64) error {
	if _, err := q.Exec("DELETE FROM item_attrs WHERE item_id = ?", id); err != nil {
		return fmt.Errorf("delete item attrs %d: %w", id, mapSQLiteError(err))
	}
	if _, err := q.Exec("DELETE FROM items WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete item %d: %w", id, mapSQLiteError(err))
	}
	return nil
}

// RemoveItem deletes an item and its attributes. Idempotent.
func (s *Store) RemoveItem(id int64) error { return removeItem(s.db, id) }

// RemoveItem deletes an item within a transaction.
func (t *Tx) RemoveItem(id int64) error { return removeItem(t.tx, id) }

func replaceAttrs(q querier, table, column string, id int64, attrs map[string]string) error {
	if _, err := q.Exec("DELETE FROM "+table+" WHERE "+column+" = ?", id); err != nil {
		return fmt.Errorf("clear %s: %w", table, mapSQLiteError(err))
	}
	for k, v := range attrs {
		if _, err := q.Exec(
			"INSERT INTO "+table+" ("+column+", key, value) VALUES (?, ?, ?)", id, k, v,
		); err != nil {
			return fmt.Errorf("insert %s: %w", table, mapSQLiteError(err))
		}
	}
	return nil
}

func loadAttrs(q querier, table, column string, id int64) (map[string]string, error) {
	rows, err := q.Query("SELECT key, value FROM "+table+" WHERE "+column+" = ?", id)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, mapSQLiteError(err))
	}
	defer func() { _ = rows.Close() }()

	attrs := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		attrs[k] = v
	}
	return attrs, rows.Err()
}
