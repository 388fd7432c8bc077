package usecase

import (
	"context"
	"log/slog"

	"magnetstream/internal/domain"
	"magnetstream/internal/domain/ports"
	"magnetstream/internal/magnet"
	"magnetstream/internal/registry"
)

// Files smaller than this are hidden from session listings unless they carry
// a known media extension. Filters out NFO/sample clutter in multi-file
// torrents.
const largeFileThreshold int64 = 50 << 20

const (
	StatusCreated       = "created"
	StatusAlreadyActive = "already_active"
)

type AddSession struct {
	Engine   ports.Engine
	Sessions *registry.Registry
	Logger   *slog.Logger
}

type AddSessionResult struct {
	ID     domain.InfoHash    `json:"id"`
	Files  []domain.FileEntry `json:"files"`
	Status string             `json:"status"`
}

// Execute resolves the descriptor, starts a download for its infohash unless
// one is already active, and returns the playable files. Concurrent calls
// for the same infohash share a single engine start.
func (uc AddSession) Execute(ctx context.Context, descriptor string) (AddSessionResult, error) {
	id, normalized, err := magnet.Resolve(descriptor)
	if err != nil {
		return AddSessionResult{}, err
	}

	session, created, err := uc.Sessions.GetOrCreate(id, func() (ports.Handle, error) {
		return uc.Engine.Start(ctx, normalized)
	})
	if err != nil {
		return AddSessionResult{}, wrapEngine(err)
	}

	status := StatusAlreadyActive
	if created {
		status = StatusCreated
		if uc.Logger != nil {
			uc.Logger.Info("session created",
				slog.String("infoHash", string(id)),
				slog.Int("files", len(session.Files)),
			)
		}
	}

	return AddSessionResult{
		ID:     session.ID,
		Files:  PlayableFiles(session.Files),
		Status: status,
	}, nil
}

// PlayableFiles keeps media files plus anything large enough to be the main
// payload regardless of extension.
func PlayableFiles(files []domain.FileEntry) []domain.FileEntry {
	out := make([]domain.FileEntry, 0, len(files))
	for _, f := range files {
		if f.IsMedia || f.Size > largeFileThreshold {
			out = append(out, f)
		}
	}
	return out
}
