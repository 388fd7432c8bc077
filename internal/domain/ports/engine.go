package ports

import (
	"context"

	"magnetstream/internal/domain"
)

// Engine starts download sessions against the peer-to-peer swarm.
type Engine interface {
	// Start launches an engine instance for the given normalized magnet and
	// blocks until torrent metadata is resolved or the engine's bounded
	// timeout elapses. On timeout the partial instance is torn down before
	// the error is returned.
	Start(ctx context.Context, magnet string) (Handle, error)
	Close() error
}

// Handle is an owned reference to one running engine instance. The owner
// (the session registry) is responsible for calling Stop exactly when the
// session is removed; Stop is idempotent.
type Handle interface {
	InfoHash() domain.InfoHash
	Files() []domain.FileEntry
	// SelectFile marks a file for prioritized download. Idempotent.
	SelectFile(index int) error
	// NewReader opens an independent reader over the file's bytes starting
	// at offset. Reads block while bytes are not yet available from the
	// swarm. Multiple readers per handle may be open concurrently.
	NewReader(index int, offset int64) (StreamReader, error)
	Stats() domain.TrafficStats
	Stop() error
}
