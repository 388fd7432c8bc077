package anacrolix

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/anacrolix/torrent"

	"magnetstream/internal/domain"
	"magnetstream/internal/domain/ports"
)

var errHandleStopped = errors.New("engine handle stopped")

// handle wraps one running torrent. Stop is serialized against in-flight
// NewReader/Stats calls via mu so a reader can never be opened against a
// dropped torrent.
type handle struct {
	torrent   *torrent.Torrent
	id        domain.InfoHash
	files     []domain.FileEntry
	readahead int64

	mu      sync.RWMutex
	stopped bool
	speed   speedSampler
}

func newHandle(t *torrent.Torrent, readahead int64) *handle {
	return &handle{
		torrent:   t,
		id:        domain.InfoHash(t.InfoHash().HexString()),
		files:     mapFiles(t),
		readahead: readahead,
	}
}

func (h *handle) InfoHash() domain.InfoHash {
	return h.id
}

// Files returns the file list captured at metadata-resolution time. Ordinals
// are stable for the handle's lifetime.
func (h *handle) Files() []domain.FileEntry {
	return append([]domain.FileEntry(nil), h.files...)
}

func (h *handle) SelectFile(index int) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return errHandleStopped
	}
	files := h.torrent.Files()
	if index < 0 || index >= len(files) {
		return domain.ErrInvalidFileIndex
	}
	files[index].Download()
	return nil
}

func (h *handle) NewReader(index int, offset int64) (ports.StreamReader, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return nil, errHandleStopped
	}
	files := h.torrent.Files()
	if index < 0 || index >= len(files) {
		return nil, domain.ErrInvalidFileIndex
	}

	r := files[index].NewReader()
	r.SetResponsive()
	r.SetReadahead(h.readahead)
	if offset > 0 {
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			r.Close()
			return nil, err
		}
	}
	return &streamReader{reader: r, ctx: context.Background()}, nil
}

func (h *handle) Stats() domain.TrafficStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return domain.TrafficStats{}
	}

	stats := h.torrent.Stats()
	downloaded := stats.BytesReadUsefulData.Int64()
	uploaded := stats.BytesWrittenData.Int64()
	downRate, upRate := h.speed.sample(downloaded, uploaded, time.Now())

	return domain.TrafficStats{
		DownloadedBytes: downloaded,
		UploadedBytes:   uploaded,
		DownloadRateBps: downRate,
		UploadRateBps:   upRate,
		PeerCount:       stats.ActivePeers,
	}
}

func (h *handle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil
	}
	h.stopped = true
	h.torrent.Drop()
	return nil
}

func mapFiles(t *torrent.Torrent) []domain.FileEntry {
	files := t.Files()
	mapped := make([]domain.FileEntry, 0, len(files))
	for i, f := range files {
		name := filepath.Base(f.Path())
		mapped = append(mapped, domain.FileEntry{
			Index:         i,
			Name:          name,
			Path:          f.Path(),
			Size:          f.Length(),
			SizeFormatted: domain.FormatSize(f.Length()),
			IsMedia:       domain.IsMedia(name),
		})
	}
	return mapped
}

// streamReader adapts a torrent.Reader to the stream port, routing reads
// through a request-scoped context so a client disconnect unblocks reads
// that are waiting on the swarm.
type streamReader struct {
	reader torrent.Reader
	ctx    context.Context
}

func (s *streamReader) Read(p []byte) (int, error) {
	return s.reader.ReadContext(s.ctx, p)
}

func (s *streamReader) Seek(offset int64, whence int) (int64, error) {
	return s.reader.Seek(offset, whence)
}

func (s *streamReader) Close() error {
	return s.reader.Close()
}

func (s *streamReader) SetContext(ctx context.Context) {
	if ctx != nil {
		s.ctx = ctx
	}
}

func (s *streamReader) SetReadahead(n int64) {
	s.reader.SetReadahead(n)
}

func (s *streamReader) SetResponsive() {
	s.reader.SetResponsive()
}
