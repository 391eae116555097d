package backend

import (
	"context"
	"io"
)

// Interface stores a copy of an entry before it is removed from disk.
type Interface interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64) error
	// Location describes where key ends up, for logs and the journal.
	Location(key string) string
}
