package transcode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"magnetstream/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// echoProcess stands in for a remux subprocess by piping its input straight
// to its output.
type echoProcess struct {
	inR      *io.PipeReader
	inWriter *io.PipeWriter
	outR     *io.PipeReader
	outW     *io.PipeWriter
	done     chan struct{}
	exitErr  error
	killed   int32
	killOnce sync.Once
}

func newEchoProcess() *echoProcess {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	p := &echoProcess{
		inR:      inR,
		inWriter: inW,
		outR:     outR,
		outW:     outW,
		done:     make(chan struct{}),
	}
	go func() {
		_, _ = io.Copy(outW, inR)
		outW.Close()
		close(p.done)
	}()
	return p
}

func (p *echoProcess) Input() io.WriteCloser { return p.inWriter }
func (p *echoProcess) Output() io.ReadCloser { return p.outR }
func (p *echoProcess) Diagnostics() io.ReadCloser {
	return io.NopCloser(strings.NewReader(""))
}

func (p *echoProcess) Kill() {
	p.killOnce.Do(func() {
		atomic.StoreInt32(&p.killed, 1)
		p.exitErr = errors.New("killed")
		p.inR.CloseWithError(p.exitErr)
	})
}

func (p *echoProcess) Wait() error {
	<-p.done
	return p.exitErr
}

func (p *echoProcess) wasKilled() bool { return atomic.LoadInt32(&p.killed) == 1 }

// brokenProcess exits with an error before producing any output.
type brokenProcess struct{}

func (brokenProcess) Input() io.WriteCloser { return nopWriteCloser{} }
func (brokenProcess) Output() io.ReadCloser {
	return io.NopCloser(strings.NewReader(""))
}
func (brokenProcess) Diagnostics() io.ReadCloser {
	return io.NopCloser(strings.NewReader("pipe:0: Invalid data found when processing input"))
}
func (brokenProcess) Kill()       {}
func (brokenProcess) Wait() error { return errors.New("exit status 1") }

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }

type fakeSpawner struct {
	proc     Process
	spawnErr error
	spawns   int32
}

func (f *fakeSpawner) Spawn(ctx context.Context) (Process, error) {
	atomic.AddInt32(&f.spawns, 1)
	if f.spawnErr != nil {
		return nil, f.spawnErr
	}
	return f.proc, nil
}

// blockingReader blocks every Read until closed, simulating a reader stuck
// waiting on swarm bytes.
type blockingReader struct {
	closed chan struct{}
	once   sync.Once
}

func newBlockingReader() *blockingReader {
	return &blockingReader{closed: make(chan struct{})}
}

func (r *blockingReader) Read(p []byte) (int, error) {
	<-r.closed
	return 0, io.EOF
}

func (r *blockingReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}

func TestDeliverDirectSetsLengthAndCopies(t *testing.T) {
	p := NewPipeline(&fakeSpawner{}, testLogger)
	rec := httptest.NewRecorder()
	reader := io.NopCloser(strings.NewReader("hello world"))

	err := p.Deliver(context.Background(), reader, rec, Request{Size: 11})
	if err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != "11" {
		t.Errorf("Content-Length = %q, want 11", got)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q, want bytes", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", got)
	}
	if rec.Body.String() != "hello world" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "hello world")
	}
}

func TestDeliverDirectHonorsOffset(t *testing.T) {
	p := NewPipeline(&fakeSpawner{}, testLogger)
	rec := httptest.NewRecorder()
	reader := io.NopCloser(strings.NewReader("world"))

	err := p.Deliver(context.Background(), reader, rec, Request{Size: 11, Offset: 6})
	if err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	if rec.Code != 206 {
		t.Errorf("status = %d, want 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 6-10/11" {
		t.Errorf("Content-Range = %q, want bytes 6-10/11", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "5" {
		t.Errorf("Content-Length = %q, want 5", got)
	}
}

func TestDeliverTranscodedStreamsSubprocessOutput(t *testing.T) {
	proc := newEchoProcess()
	p := NewPipeline(&fakeSpawner{proc: proc}, testLogger)
	rec := httptest.NewRecorder()
	reader := io.NopCloser(strings.NewReader("raw matroska bytes"))

	err := p.Deliver(context.Background(), reader, rec, Request{Transcode: true})
	if err != nil {
		t.Fatalf("Deliver returned error: %v", err)
	}
	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "none" {
		t.Errorf("Accept-Ranges = %q, want none", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "" {
		t.Errorf("Content-Length = %q, want unset for unbounded transfer", got)
	}
	if rec.Body.String() != "raw matroska bytes" {
		t.Errorf("body = %q, want echoed input", rec.Body.String())
	}
	if proc.wasKilled() {
		t.Error("subprocess killed on the happy path")
	}
}

func TestDeliverTranscodedDisconnectKillsSubprocess(t *testing.T) {
	proc := newEchoProcess()
	p := NewPipeline(&fakeSpawner{proc: proc}, testLogger)
	rec := httptest.NewRecorder()
	reader := newBlockingReader()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Deliver(ctx, reader, rec, Request{Transcode: true})
	}()

	// Give the pipeline time to wire the pumps, then drop the client.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Deliver returned error on disconnect: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Deliver did not return within the grace period after disconnect")
	}
	if !proc.wasKilled() {
		t.Fatal("subprocess not killed after client disconnect")
	}
}

func TestDeliverTranscodedFailureBeforeOutputIsDeliveryError(t *testing.T) {
	p := NewPipeline(&fakeSpawner{proc: brokenProcess{}}, testLogger)
	rec := httptest.NewRecorder()
	reader := io.NopCloser(strings.NewReader("garbage"))

	err := p.Deliver(context.Background(), reader, rec, Request{Transcode: true})
	if !errors.Is(err, domain.ErrDelivery) {
		t.Fatalf("error = %v, want ErrDelivery", err)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("body written despite pre-header failure: %q", rec.Body.String())
	}
}

func TestDeliverTranscodedSpawnFailureIsDeliveryError(t *testing.T) {
	p := NewPipeline(&fakeSpawner{spawnErr: errors.New("ffmpeg not found")}, testLogger)
	rec := httptest.NewRecorder()
	reader := io.NopCloser(strings.NewReader("payload"))

	err := p.Deliver(context.Background(), reader, rec, Request{Transcode: true})
	if !errors.Is(err, domain.ErrDelivery) {
		t.Fatalf("error = %v, want ErrDelivery", err)
	}
}
