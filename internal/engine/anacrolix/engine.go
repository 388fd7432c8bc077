// Package anacrolix adapts the anacrolix/torrent client to the engine port.
package anacrolix

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anacrolix/torrent"

	"magnetstream/internal/domain/ports"
)

var (
	ErrMetadataTimeout = errors.New("timeout waiting for metadata")
	ErrClientBusy      = errors.New("torrent client busy, try again later")
)

const (
	// addMagnetTimeout caps the time we wait for the client to accept a
	// magnet link. AddMagnet can block on an internal client mutex while
	// metadata for another torrent is being resolved.
	addMagnetTimeout = 10 * time.Second

	defaultMetadataTimeout = 60 * time.Second
	defaultReadahead       = 16 << 20
)

type Config struct {
	DataDir         string
	MetadataTimeout time.Duration // 0 = default 60s
	Readahead       int64         // reader readahead bytes; 0 = default 16 MiB
}

type Engine struct {
	client          *torrent.Client
	metadataTimeout time.Duration
	readahead       int64
}

func New(cfg Config) (*Engine, error) {
	clientConfig := torrent.NewDefaultClientConfig()
	if cfg.DataDir != "" {
		clientConfig.DataDir = cfg.DataDir
	}

	client, err := torrent.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *torrent.Client, cfg Config) *Engine {
	timeout := cfg.MetadataTimeout
	if timeout <= 0 {
		timeout = defaultMetadataTimeout
	}
	readahead := cfg.Readahead
	if readahead <= 0 {
		readahead = defaultReadahead
	}
	return &Engine{
		client:          client,
		metadataTimeout: timeout,
		readahead:       readahead,
	}
}

// Start adds the magnet and blocks until metadata is resolved or the
// metadata timeout elapses. On timeout or cancellation the torrent is
// dropped before the error is returned, so no engine instance leaks.
func (e *Engine) Start(ctx context.Context, magnetLink string) (ports.Handle, error) {
	if e.client == nil {
		return nil, errors.New("torrent client not configured")
	}

	t, err := e.addMagnet(ctx, magnetLink)
	if err != nil {
		return nil, err
	}

	select {
	case <-t.GotInfo():
	case <-time.After(e.metadataTimeout):
		t.Drop()
		return nil, fmt.Errorf("%w after %s", ErrMetadataTimeout, e.metadataTimeout)
	case <-ctx.Done():
		t.Drop()
		return nil, ctx.Err()
	}

	return newHandle(t, e.readahead), nil
}

func (e *Engine) addMagnet(ctx context.Context, magnetLink string) (*torrent.Torrent, error) {
	type addResult struct {
		t   *torrent.Torrent
		err error
	}
	ch := make(chan addResult, 1)
	go func() {
		t, err := e.client.AddMagnet(magnetLink)
		ch <- addResult{t, err}
	}()

	select {
	case res := <-ch:
		return res.t, res.err
	case <-time.After(addMagnetTimeout):
		// AddMagnet may still complete later; drop the orphaned torrent.
		go func() {
			if res := <-ch; res.t != nil {
				res.t.Drop()
			}
		}()
		return nil, ErrClientBusy
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.t != nil {
				res.t.Drop()
			}
		}()
		return nil, ctx.Err()
	}
}

func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	errList := e.client.Close()
	if len(errList) > 0 {
		return errList[0]
	}
	return nil
}
