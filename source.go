package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/time/rate"

	"github.com/lukemcguire/crawlwatch/monitor"
)

// recordingSource copies every byte of each opened stream into the file at
// path, so a run can be replayed later.
func recordingSource(src monitor.Source, path string) monitor.Source {
	return monitor.SourceFunc(func(ctx context.Context, target string) (io.ReadCloser, error) {
		body, err := src.Open(ctx, target)
		if err != nil {
			return nil, err
		}
		f, err := os.Create(path)
		if err != nil {
			_ = body.Close()
			return nil, fmt.Errorf("create recording: %w", err)
		}
		return &teeBody{Reader: io.TeeReader(body, f), body: body, file: f}, nil
	})
}

type teeBody struct {
	io.Reader
	body io.Closer
	file *os.File
}

func (t *teeBody) Close() error {
	return errors.Join(t.body.Close(), t.file.Close())
}

// fileSource replays a recorded stream. The path "-" reads standard input;
// the crawl target is ignored.
func fileSource(path string, limiter *rate.Limiter) monitor.Source {
	return monitor.SourceFunc(func(ctx context.Context, _ string) (io.ReadCloser, error) {
		var body io.ReadCloser
		if path == "-" {
			body = io.NopCloser(os.Stdin)
		} else {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("open recording: %w", err)
			}
			body = f
		}
		if limiter == nil {
			return body, nil
		}
		return &pacedBody{ctx: ctx, ReadCloser: body, limiter: limiter}, nil
	})
}

// pacedBody waits for the limiter before every read, so a replay unfolds at
// a chosen number of chunks per second.
type pacedBody struct {
	io.ReadCloser
	ctx     context.Context
	limiter *rate.Limiter
}

func (p *pacedBody) Read(buf []byte) (int, error) {
	if err := p.limiter.Wait(p.ctx); err != nil {
		return 0, err
	}
	return p.ReadCloser.Read(buf)
}
