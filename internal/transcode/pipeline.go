package transcode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"magnetstream/internal/domain"
	"magnetstream/internal/metrics"
)

// Request describes one delivery. Size is the total file size when known
// (direct path only); Offset is the first byte to serve.
type Request struct {
	Size      int64
	Offset    int64
	Transcode bool
}

// Pipeline moves bytes from a torrent reader to an HTTP response, either
// verbatim or through a conversion subprocess. It owns the subprocess for
// the duration of one request and guarantees its termination on every exit
// path, including client disconnect.
type Pipeline struct {
	transcoder Spawner
	logger     *slog.Logger
}

// Spawner starts one conversion subprocess per stream request.
type Spawner interface {
	Spawn(ctx context.Context) (Process, error)
}

// Process is an owned handle to a running conversion subprocess. Input and
// Output are its stdin/stdout; Diagnostics is stderr and never gates
// success. Kill sends an immediate, ungraceful termination signal and must
// not wait for exit.
type Process interface {
	Input() io.WriteCloser
	Output() io.ReadCloser
	Diagnostics() io.ReadCloser
	Kill()
	Wait() error
}

func NewPipeline(transcoder Spawner, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{transcoder: transcoder, logger: logger}
}

// Deliver streams reader to w per req. A returned error wrapping
// domain.ErrDelivery means no response bytes were written yet and the caller
// may still send an error status; any failure after headers are sent is
// logged and swallowed because the connection can only be closed.
func (p *Pipeline) Deliver(ctx context.Context, reader io.ReadCloser, w http.ResponseWriter, req Request) error {
	if req.Transcode {
		return p.deliverTranscoded(ctx, reader, w)
	}
	return p.deliverDirect(ctx, reader, w, req)
}

func (p *Pipeline) deliverDirect(ctx context.Context, reader io.ReadCloser, w http.ResponseWriter, req Request) error {
	defer reader.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Accept-Ranges", "bytes")
	status := http.StatusOK
	if req.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(req.Size-req.Offset, 10))
		if req.Offset > 0 {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", req.Offset, req.Size-1, req.Size))
			status = http.StatusPartialContent
		}
	}
	w.WriteHeader(status)

	sent, err := io.Copy(newFlushWriter(w), reader)
	metrics.StreamBytesSentTotal.Add(float64(sent))
	if err != nil {
		if ctx.Err() != nil {
			p.logger.Debug("client disconnected during direct stream", slog.Int64("bytesSent", sent))
			return nil
		}
		p.logger.Warn("direct stream ended early",
			slog.Int64("bytesSent", sent),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func (p *Pipeline) deliverTranscoded(ctx context.Context, reader io.ReadCloser, w http.ResponseWriter) error {
	metrics.TranscodeStartsTotal.Inc()
	metrics.TranscodeActiveJobs.Inc()
	defer metrics.TranscodeActiveJobs.Dec()

	proc, err := p.transcoder.Spawn(ctx)
	if err != nil {
		reader.Close()
		metrics.TranscodeFailuresTotal.Inc()
		return fmt.Errorf("%w: spawn transcoder: %v", domain.ErrDelivery, err)
	}

	// Disconnect watcher: an ungraceful kill bounds cleanup latency, and
	// closing the reader unblocks a stdin pump stuck waiting on the swarm.
	delivered := make(chan struct{})
	defer close(delivered)
	go func() {
		select {
		case <-ctx.Done():
			proc.Kill()
			reader.Close()
		case <-delivered:
		}
	}()

	go func() {
		_, copyErr := io.Copy(proc.Input(), reader)
		proc.Input().Close()
		if copyErr != nil && ctx.Err() == nil {
			p.logger.Debug("transcoder input closed", slog.String("error", copyErr.Error()))
		}
	}()
	go p.forwardDiagnostics(proc.Diagnostics())

	out := proc.Output()
	first, readErr := readFirstChunk(out)
	if len(first) == 0 {
		proc.Kill()
		waitErr := proc.Wait()
		reader.Close()
		if ctx.Err() != nil {
			p.logger.Debug("client disconnected before transcoder output")
			return nil
		}
		metrics.TranscodeFailuresTotal.Inc()
		if waitErr != nil {
			return fmt.Errorf("%w: transcoder exited: %v", domain.ErrDelivery, waitErr)
		}
		return fmt.Errorf("%w: transcoder produced no output: %v", domain.ErrDelivery, readErr)
	}

	// The container is rewritten on the fly: length unknown, not seekable.
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Accept-Ranges", "none")
	w.WriteHeader(http.StatusOK)

	fw := newFlushWriter(w)
	sent := int64(0)
	if n, werr := fw.Write(first); werr == nil {
		sent += int64(n)
	} else {
		proc.Kill()
		_ = proc.Wait()
		reader.Close()
		metrics.StreamBytesSentTotal.Add(float64(sent))
		p.logger.Debug("client disconnected at start of transcoded stream")
		return nil
	}

	copied, copyErr := io.Copy(fw, out)
	sent += copied
	metrics.StreamBytesSentTotal.Add(float64(sent))

	// Stop the subprocess before waiting so a broken response cannot leave
	// it running; a finished process ignores the extra signal.
	if copyErr != nil {
		proc.Kill()
	}
	waitErr := proc.Wait()
	reader.Close()

	switch {
	case ctx.Err() != nil:
		p.logger.Debug("client disconnected during transcoded stream", slog.Int64("bytesSent", sent))
	case copyErr != nil || waitErr != nil:
		// Headers are long gone; closing the connection is all that's left.
		metrics.TranscodeFailuresTotal.Inc()
		p.logger.Warn("transcoded stream ended early",
			slog.Int64("bytesSent", sent),
			slog.Any("copyError", copyErr),
			slog.Any("exitError", waitErr),
		)
	}
	return nil
}

// forwardDiagnostics drains the subprocess's stderr into the log. Output
// here never gates delivery.
func (p *Pipeline) forwardDiagnostics(diag io.ReadCloser) {
	defer diag.Close()
	scanner := bufio.NewScanner(diag)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.Contains(strings.ToLower(line), "error") {
			p.logger.Warn("transcoder stderr", slog.String("line", line))
		} else {
			p.logger.Debug("transcoder stderr", slog.String("line", line))
		}
	}
}

// readFirstChunk blocks until the subprocess emits its first bytes or its
// output closes. Header timing hinges on this: a failure before any output
// can still be reported as an HTTP error.
func readFirstChunk(r io.Reader) ([]byte, error) {
	buf := make([]byte, 64<<10)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			return buf[:n], err
		}
		if err != nil {
			return nil, err
		}
	}
}

type flushWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func newFlushWriter(w http.ResponseWriter) *flushWriter {
	fw := &flushWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		fw.flusher = f
	}
	return fw
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.flusher != nil {
		fw.flusher.Flush()
	}
	return n, err
}
