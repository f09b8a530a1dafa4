// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"context"
	"net"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

const (
	DefaultQueueSize        = 20
	DefaultChannelQueueSize = 64
	DefaultReadBufferSize   = 16 * 1024
	DefaultDialTimeout      = 5 * time.Second
	DefaultDialAttempts     = 1
	DefaultBindAttempts     = 3
	DefaultCloseTimeout     = 5 * time.Second

	// MaxReadBufferSize keeps every encoded data packet, compressed or
	// not, below LineMaxLength.
	MaxReadBufferSize = 16 * 1024 * 1024
)

// DialFunc opens the local connection of the channel id.
//
// The channel id is known before the connection exists, so the new
// connection is registered under the peer's id from the start.
type DialFunc func(ctx context.Context, id string) (net.Conn, error)

type (
	Option func(o *Options)

	Options struct {
		// QueueSize is the capacity of the outbound packet queue.
		QueueSize int
		// ChannelQueueSize is the capacity of every channel's write queue.
		ChannelQueueSize int
		// ReadBufferSize bounds the payload of a data packet, it is capped
		// at MaxReadBufferSize.
		ReadBufferSize int
		// Backpressure makes channels wait for room in the outbound queue
		// instead of dropping data packets.
		Backpressure bool

		DialTimeout  time.Duration
		DialAttempts uint
		BindAttempts uint

		// CloseTimeout bounds the writes of queued payload after the peer
		// closed a channel.
		CloseTimeout time.Duration

		// Dial replaces the default dialer of the client.
		Dial DialFunc
		// NewID generates the ids of the channels accepted by the server.
		NewID func() string

		Logger *zap.Logger
	}
)

func WithQueueSize(n int) Option {
	return func(o *Options) {
		o.QueueSize = n
	}
}

func WithChannelQueueSize(n int) Option {
	return func(o *Options) {
		o.ChannelQueueSize = n
	}
}

func WithReadBufferSize(n int) Option {
	return func(o *Options) {
		o.ReadBufferSize = n
	}
}

func WithBackpressure() Option {
	return func(o *Options) {
		o.Backpressure = true
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.DialTimeout = d
	}
}

func WithDialAttempts(n uint) Option {
	return func(o *Options) {
		o.DialAttempts = n
	}
}

func WithBindAttempts(n uint) Option {
	return func(o *Options) {
		o.BindAttempts = n
	}
}

func WithCloseTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.CloseTimeout = d
	}
}

func WithDialer(f DialFunc) Option {
	return func(o *Options) {
		o.Dial = f
	}
}

func WithIDGenerator(f func() string) Option {
	return func(o *Options) {
		o.NewID = f
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

func newOptions(cbs []Option) *Options {
	opts := &Options{
		QueueSize:        DefaultQueueSize,
		ChannelQueueSize: DefaultChannelQueueSize,
		ReadBufferSize:   DefaultReadBufferSize,
		DialTimeout:      DefaultDialTimeout,
		DialAttempts:     DefaultDialAttempts,
		BindAttempts:     DefaultBindAttempts,
		CloseTimeout:     DefaultCloseTimeout,
	}
	for _, cb := range cbs {
		cb(opts)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.ChannelQueueSize <= 0 {
		opts.ChannelQueueSize = DefaultChannelQueueSize
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = DefaultReadBufferSize
	}
	if opts.ReadBufferSize > MaxReadBufferSize {
		opts.ReadBufferSize = MaxReadBufferSize
	}
	if opts.DialAttempts == 0 {
		opts.DialAttempts = DefaultDialAttempts
	}
	if opts.BindAttempts == 0 {
		opts.BindAttempts = DefaultBindAttempts
	}
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = DefaultCloseTimeout
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return xid.New().String() }
	}
	if opts.Logger == nil {
		opts.Logger = zap.L()
	}
	return opts
}

// tcpDialer returns the default DialFunc, every channel connects to addr.
func tcpDialer(addr string, opts *Options) DialFunc {
	dialer := &net.Dialer{Timeout: opts.DialTimeout}
	return func(ctx context.Context, id string) (conn net.Conn, err error) {
		err = retry.Do(func() error {
			var derr error
			conn, derr = dialer.DialContext(ctx, "tcp", addr)
			return derr
		},
			retry.Attempts(opts.DialAttempts),
			retry.Delay(100*time.Millisecond),
			retry.LastErrorOnly(true),
			retry.Context(ctx),
		)
		return
	}
}
