package usecase

import (
	"context"

	"magnetstream/internal/domain"
	"magnetstream/internal/domain/ports"
	"magnetstream/internal/registry"
)

type StreamSession struct {
	Sessions *registry.Registry
}

// StreamSource carries everything the delivery pipeline needs for one
// request. Transcode reports the effective decision after the container
// check, not just the caller's flag.
type StreamSource struct {
	Session   *registry.Session
	File      domain.FileEntry
	Reader    ports.StreamReader
	Offset    int64
	Transcode bool
}

// Execute prepares a positioned reader for one file of an active session.
// Containers the browser cannot play are transcoded regardless of
// forceTranscode; a transcoded stream always starts at byte zero because the
// rewritten output has no stable byte positions.
func (uc StreamSession) Execute(ctx context.Context, id domain.InfoHash, fileIndex int, forceTranscode bool, offset int64) (StreamSource, error) {
	session, err := uc.Sessions.Lookup(id)
	if err != nil {
		return StreamSource{}, err
	}

	if fileIndex < 0 || fileIndex >= len(session.Files) {
		return StreamSource{}, domain.ErrInvalidFileIndex
	}
	file := session.Files[fileIndex]

	transcode := forceTranscode || domain.NeedsTranscode(file.Name)
	if transcode {
		offset = 0
	}
	if offset < 0 || offset >= file.Size {
		offset = 0
	}

	if err := session.Handle.SelectFile(fileIndex); err != nil {
		return StreamSource{}, err
	}

	reader, err := session.Handle.NewReader(fileIndex, offset)
	if err != nil {
		return StreamSource{}, wrapEngine(err)
	}
	reader.SetContext(ctx)

	return StreamSource{
		Session:   session,
		File:      file,
		Reader:    reader,
		Offset:    offset,
		Transcode: transcode,
	}, nil
}
