// Package events provides the import hook registry. Handlers run
// synchronously at fixed points of the import flow; their results are
// collected so a hook can, for example, replace a freshly created task.
package events

import "time"

// Event is the base interface all events implement.
type Event interface {
	EventType() string
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"occurred_at"`
}

func (e BaseEvent) EventType() string     { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent creates a BaseEvent with the current timestamp.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{Type: eventType, Timestamp: time.Now()}
}

// Event type names.
const (
	EventImportBegan    = "import.began"
	EventTaskCreated    = "import.task_created"
	EventFilesPlaced    = "import.files_placed"
	EventItemImported   = "import.item_imported"
	EventAlbumImported  = "import.album_imported"
	EventImportFinished = "import.finished"
)

// ImportBegan is emitted once per session run.
type ImportBegan struct {
	BaseEvent
	TopPaths []string `json:"top_paths"`
}

// TaskCreated is emitted for each task the factory produces, before it
// enters the pipeline. A handler may return replacement tasks.
type TaskCreated struct {
	BaseEvent
	Task any `json:"-"`
}

// FilesPlaced is emitted after a task's files have been moved, copied, or
// linked into the library directory.
type FilesPlaced struct {
	BaseEvent
	Paths []string `json:"paths"`
}

// ItemImported is emitted per item stored by a singleton task.
type ItemImported struct {
	BaseEvent
	ItemID int64  `json:"item_id"`
	Path   string `json:"path"`
}

// AlbumImported is emitted per album stored by a group task.
type AlbumImported struct {
	BaseEvent
	AlbumID int64 `json:"album_id"`
	Items   int   `json:"items"`
}

// ImportFinished is emitted when the session run returns.
type ImportFinished struct {
	BaseEvent
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}
