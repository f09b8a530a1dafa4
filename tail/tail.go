// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package tail reads a growing file as an endless stream.
package tail

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const DefaultInterval = 50 * time.Millisecond

type Option func(r *Reader)

// WithInterval sets the polling interval at end of file.
func WithInterval(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(r *Reader) {
		r.clk = c
	}
}

// Reader reads the bytes appended to a file, Read blocks at end of file
// until more bytes are written or the reader is closed.
type Reader struct {
	f        *os.File
	clk      clock.Clock
	interval time.Duration
	offset   int64

	closeO sync.Once
	closeD chan struct{}
}

// Open opens the file at path for tailing from its beginning.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		f:        f,
		clk:      clock.New(),
		interval: DefaultInterval,
		closeD:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Reader) closed() bool {
	select {
	case <-r.closeD:
		return true
	default:
		return false
	}
}

// Read returns io.EOF only after Close.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		if r.closed() {
			return 0, io.EOF
		}

		n, err := r.f.Read(p)
		r.offset += int64(n)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			if r.closed() {
				return 0, io.EOF
			}
			return 0, err
		}

		// truncated, start over
		if fi, serr := r.f.Stat(); serr == nil && fi.Size() < r.offset {
			if _, err := r.f.Seek(0, io.SeekStart); err != nil {
				return 0, err
			}
			r.offset = 0
			continue
		}

		select {
		case <-r.clk.After(r.interval):
		case <-r.closeD:
			return 0, io.EOF
		}
	}
}

// Close releases a blocked Read.
func (r *Reader) Close() error {
	var err error
	r.closeO.Do(func() {
		close(r.closeD)
		err = r.f.Close()
	})
	return err
}
