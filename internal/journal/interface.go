package journal

import (
	"context"
	"time"
)

// Journal remembers which archives were imported completely, so a rerun over
// the same directory can skip them.
type Journal interface {
	// Get returns the entry for path, or nil when the file was never imported
	Get(ctx context.Context, path string) (*Entry, error)

	// Put records a completed import
	Put(ctx context.Context, entry Entry) error

	// Delete forgets a file so the next run imports it again
	Delete(ctx context.Context, path string) error

	// List returns all entries ordered by path
	List(ctx context.Context) ([]Entry, error)

	Close() error
}

// Entry is one completed import
type Entry struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModUnix    int64     `json:"mod_unix"`
	Points     uint64    `json:"points"`
	RunID      string    `json:"run_id"`
	ImportedAt time.Time `json:"imported_at"`
}

// Matches reports whether the entry describes the file as it is now.
// A file that grew or was rewritten since the import does not match.
func (e *Entry) Matches(size, modUnix int64) bool {
	return e != nil && e.Size == size && e.ModUnix == modUnix
}
