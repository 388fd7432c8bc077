// Package transcode pipes torrent bytes to HTTP responses, optionally
// through an external FFmpeg process that remuxes to fragmented MP4.
package transcode

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
)

// FFmpeg spawns one remux subprocess per stream request, reading raw bytes
// on stdin and writing a browser-playable fragmented MP4 on stdout.
type FFmpeg struct {
	Path string
}

func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path}
}

// remuxArgs copies the video track untouched (H.264 passthrough) and
// converts audio to AAC. The fragmented-MP4 movflags make the output
// playable while still being written.
func remuxArgs() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-movflags", "frag_keyframe+empty_moov+faststart",
		"-f", "mp4",
		"pipe:1",
	}
}

func (f *FFmpeg) Spawn(ctx context.Context) (Process, error) {
	cmd := exec.CommandContext(ctx, f.Path, remuxArgs()...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	// Stdout/stderr use explicit pipes so Wait never closes the read ends
	// while the pipeline is still draining them.
	outR, outW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, err
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		outR.Close()
		outW.Close()
		return nil, err
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		stdin.Close()
		outR.Close()
		outW.Close()
		errR.Close()
		errW.Close()
		return nil, err
	}
	outW.Close()
	errW.Close()

	p := &process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: outR,
		stderr: errR,
		done:   make(chan struct{}),
	}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type process struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	stdout   io.ReadCloser
	stderr   io.ReadCloser
	done     chan struct{}
	err      error
	killOnce sync.Once
}

func (p *process) Input() io.WriteCloser      { return p.stdin }
func (p *process) Output() io.ReadCloser      { return p.stdout }
func (p *process) Diagnostics() io.ReadCloser { return p.stderr }

// Kill sends SIGKILL immediately. It never waits for the process to exit;
// Wait observes the result.
func (p *process) Kill() {
	p.killOnce.Do(func() {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
	})
}

func (p *process) Wait() error {
	<-p.done
	return p.err
}
