package types

import (
	"context"
	"time"
)

// Remote is the snapshot side of a sync: a collection of snippet files
// plus a manifest. Each write touches one snippet file and the manifest.
// Implementations must be safe for concurrent use.
type Remote interface {
	List(ctx context.Context) (*RemoteSnapshot, error)
	Create(ctx context.Context, s *Snippet) error
	Update(ctx context.Context, id uint64, s *Snippet) error
	Delete(ctx context.Context, id uint64) error
}

// RemoteSnapshot is the full remote state at one point in time.
// DateModified is the remote's own last-write timestamp.
type RemoteSnapshot struct {
	Snippets     map[uint64]*Snippet
	DateModified time.Time
}

// LanguageTable maps language names to file extensions and back.
type LanguageTable interface {
	// Extension returns the file extension, with leading dot, for a language.
	Extension(language string) string
	// Language returns the canonical language for a file name.
	Language(filename string) string
}
