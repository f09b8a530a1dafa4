// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/someonegg/gox/syncx"
	"go.uber.org/zap"
)

const acceptRetryDelay = 50 * time.Millisecond

// Server is the listening end of the tunnel.
//
// It binds addr when the client's handshake arrives, every accepted
// connection becomes a channel with a freshly generated id.
type Server struct {
	*Mux
	addr string

	bindO   sync.Once
	listenD syncx.DoneChan

	lnL sync.Mutex
	ln  net.Listener
}

// NewServer allocates and returns a new Server.
func NewServer(rw PacketReadWriter, addr string, cbs ...Option) *Server {
	s := &Server{
		addr:    addr,
		listenD: syncx.NewDoneChan(),
	}
	s.Mux = newMux(rw, s, newOptions(cbs), "server")
	return s
}

// ListenD returns a done channel, it will be signaled when the listener
// is bound.
func (s *Server) ListenD() syncx.DoneChanR {
	return s.listenD.R()
}

// Addr returns the bound address, nil before the handshake.
func (s *Server) Addr() net.Addr {
	s.lnL.Lock()
	defer s.lnL.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) start(ctx context.Context) error {
	s.log.Info("waiting for client handshake", zap.String("addr", s.addr))
	return nil
}

func (s *Server) handshake(ctx context.Context) {
	bound := false
	s.bindO.Do(func() {
		bound = true
		s.wg.Go(s.serve)
	})
	if !bound {
		s.log.Warn("repeated handshake ignored")
	}
}

func (s *Server) open(ctx context.Context, id string) {
	s.log.Warn("unexpected open from peer", zap.String("id", id))
}

func (s *Server) stop() error {
	s.lnL.Lock()
	defer s.lnL.Unlock()
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

func (s *Server) bind(ctx context.Context) (ln net.Listener, err error) {
	var lc net.ListenConfig
	err = retry.Do(func() error {
		var lerr error
		ln, lerr = lc.Listen(ctx, "tcp", s.addr)
		return lerr
	},
		retry.Attempts(s.opts.BindAttempts),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	return
}

func (s *Server) serve() {
	ctx := s.ctx

	ln, err := s.bind(ctx)
	if err != nil {
		s.log.Error("bind failed", zap.String("addr", s.addr), zap.Error(err))
		s.fail(err)
		return
	}

	s.lnL.Lock()
	if ctx.Err() != nil {
		s.lnL.Unlock()
		ln.Close()
		return
	}
	s.ln = ln
	s.lnL.Unlock()
	s.listenD.SetDone()

	s.log.Info("server is bound", zap.Stringer("addr", ln.Addr()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			s.log.Warn("accept error", zap.Error(err))
			select {
			case <-time.After(acceptRetryDelay):
			case <-ctx.Done():
				return
			}
			continue
		}
		s.accepted(conn, s.opts.NewID())
	}
}
