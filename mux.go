// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/someonegg/gox/syncx"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// ErrMuxStopped is returned when starting a stopped mux.
var ErrMuxStopped = errors.New("mux stopped")

// role is the server or client specific part of a Mux.
type role interface {
	start(ctx context.Context) error
	// handshake is called for the packet with the reserved InitID.
	handshake(ctx context.Context)
	open(ctx context.Context, id string)
	stop() error
}

// Mux multiplexes the local connections over one packet stream.
//
// It owns the pump and the channel registry, the roles only decide
// how channels are created.
type Mux struct {
	opts *Options
	log  *zap.Logger
	pump *Pump
	reg  *registry
	role role

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	// channels closed because their write queue overflowed
	overflows atomic.Int64

	errL  sync.Mutex
	err   error
	stopD syncx.DoneChan
}

func newMux(rw PacketReadWriter, r role, opts *Options, name string) *Mux {
	m := &Mux{
		opts:  opts,
		log:   opts.Logger.Named(name),
		reg:   newRegistry(),
		role:  r,
		stopD: syncx.NewDoneChan(),
	}
	m.pump = NewPump(rw, m, opts.QueueSize)
	m.pump.SetLogger(opts.Logger.Named("pump"))
	return m
}

// Start starts the pumps and the role.
func (m *Mux) Start(parent context.Context) error {
	if m.Stopped() {
		return ErrMuxStopped
	}
	if parent == nil {
		parent = context.Background()
	}

	m.ctx, m.cancel = context.WithCancel(parent)
	m.pump.Start(m.ctx)
	go m.monitor()

	if err := m.role.start(m.ctx); err != nil {
		m.fail(err)
		return err
	}
	return nil
}

func (m *Mux) monitor() {
	defer m.stopD.SetDone()

	<-m.pump.StopD()
	m.cancel()

	if err := m.role.stop(); err != nil {
		m.log.Warn("stop role", zap.Error(err))
	}
	for _, ch := range m.reg.snapshot() {
		ch.close()
	}

	if r := m.wg.WaitAndRecover(); r != nil {
		m.log.Error("channel panic", zap.String("panic", r.String()))
		m.setErr(fmt.Errorf("channel panic: %v", r.Value))
	}

	m.log.Info("mux stopped", zap.NamedError("reason", m.Error()))
}

func (m *Mux) setErr(err error) {
	m.errL.Lock()
	defer m.errL.Unlock()
	if m.err == nil {
		m.err = err
	}
}

// fail stops the mux with err.
func (m *Mux) fail(err error) {
	m.setErr(err)
	m.pump.Stop()
}

// Stop requests to stop the mux, every channel is closed and the mux
// will stop asynchronously.
func (m *Mux) Stop() {
	m.pump.Stop()
}

// StopD returns a done channel, it will be signaled when the mux is stopped.
func (m *Mux) StopD() syncx.DoneChanR {
	return m.stopD.R()
}

func (m *Mux) Stopped() bool {
	return m.stopD.R().Done()
}

// Error can only be called after mux stopped.
//
// io.EOF means the peer closed the shared stream.
func (m *Mux) Error() error {
	m.errL.Lock()
	err := m.err
	m.errL.Unlock()
	if err != nil {
		return err
	}
	return m.pump.Error()
}

func (m *Mux) Statistics() Statistics {
	return m.pump.Statistics()
}

// Overflows returns the number of channels closed because their local
// end could not keep up with the peer.
func (m *Mux) Overflows() int64 {
	return m.overflows.Load()
}

// Channels returns the number of open channels.
func (m *Mux) Channels() int {
	return m.reg.len()
}

// Process implements the Handler interface.
func (m *Mux) Process(ctx context.Context, p *Packet) {
	if p.ID == InitID {
		m.role.handshake(ctx)
		return
	}

	switch p.Type {
	case TypeOpen:
		m.role.open(ctx, p.ID)
	case TypeData:
		m.onData(p)
	case TypeClose:
		m.onClose(p)
	case TypeError:
		m.log.Warn("peer failed to open channel", zap.String("id", p.ID))
	default:
		m.log.Warn("unknown packet", zap.Stringer("packet", p))
	}
}

// onData never blocks, a channel whose local end can not keep up is
// closed instead of stalling the other channels.
func (m *Mux) onData(p *Packet) {
	ch := m.reg.lookup(p.ID)
	if ch == nil {
		m.log.Warn("channel is no longer manageable", zap.String("id", p.ID))
		return
	}
	if len(p.Payload) == 0 || ch.closed() {
		return
	}
	if ch.deliver(p.Payload) || !ch.overflowed.CompareAndSwap(false, true) {
		return
	}

	m.overflows.Add(1)
	ch.log.Warn("channel write queue is full, close channel", zap.Int("len", len(p.Payload)))
	m.wg.Go(ch.close)
}

func (m *Mux) onClose(p *Packet) {
	ch := m.reg.lookup(p.ID)
	if ch == nil {
		m.log.Debug("close unknown channel", zap.String("id", p.ID))
		return
	}
	ch.closeByPeer()
}

// emitData sends the payload read from a local connection.
func (m *Mux) emitData(id string, b []byte) {
	p := Data(id, b)
	if m.opts.Backpressure {
		m.emit(p)
		return
	}
	if !m.pump.TryOutput(p) {
		m.log.Warn("outbound queue is full, drop data", zap.String("id", id), zap.Int("len", len(b)))
	}
}

// emit sends a packet, it waits for room in the outbound queue.
func (m *Mux) emit(p *Packet) {
	if err := m.pump.Output(m.ctx, p); err != nil {
		m.log.Debug("drop packet", zap.Stringer("packet", p), zap.Error(err))
	}
}

// accepted registers a locally accepted connection and announces it.
func (m *Mux) accepted(conn net.Conn, id string) {
	ch := newChannel(m, id)
	ch.attach(conn)
	m.reg.register(ch)
	if m.ctx.Err() != nil {
		ch.close()
		return
	}

	ch.log.Info("engage channel", zap.Stringer("remote", conn.RemoteAddr()))
	m.emit(Open(id))
	ch.run()
}

// dialing registers the channel opened by the peer and connects it
// asynchronously, payload received meanwhile is queued.
func (m *Mux) dialing(id string, dial DialFunc) {
	ch := newChannel(m, id)
	m.reg.register(ch)

	m.wg.Go(func() {
		conn, err := dial(m.ctx, id)
		if err != nil {
			ch.log.Warn("dial failed", zap.Error(err))
			if !ch.closedByPeer.Load() {
				m.emit(Error(id))
			}
			ch.close()
			return
		}
		if !ch.attach(conn) {
			conn.Close()
			return
		}

		ch.log.Info("engage channel", zap.Stringer("remote", conn.RemoteAddr()))
		ch.run()
	})
}
