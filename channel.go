// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/someonegg/gox/syncx"
	"go.uber.org/zap"
)

// channel is the local end of one tunneled connection.
//
// The connection is attached once. Payload received from the peer is
// queued and written by the channel's own goroutine, the reading loop of
// the pump never waits for a local socket.
type channel struct {
	id  string
	m   *Mux
	log *zap.Logger

	connL sync.Mutex
	conn  net.Conn

	writeC chan []byte

	// finD is signaled when the peer closed the channel, the queued payload
	// is written before the connection is closed.
	finO sync.Once
	finD syncx.DoneChan

	closeO sync.Once
	closeD syncx.DoneChan

	// closedByPeer is set before a close caused by a CLOSE packet, the
	// close is not echoed back.
	closedByPeer atomic.Bool
	overflowed   atomic.Bool
}

func newChannel(m *Mux, id string) *channel {
	return &channel{
		id:     id,
		m:      m,
		log:    m.log.With(zap.String("id", id)),
		writeC: make(chan []byte, m.opts.ChannelQueueSize),
		finD:   syncx.NewDoneChan(),
		closeD: syncx.NewDoneChan(),
	}
}

// attach sets the local connection, it reports false if the channel is
// already closed.
func (ch *channel) attach(conn net.Conn) bool {
	ch.connL.Lock()
	defer ch.connL.Unlock()

	if ch.closeD.R().Done() {
		return false
	}
	ch.conn = conn
	return true
}

// run starts the loops, the connection must be attached.
func (ch *channel) run() {
	ch.m.wg.Go(ch.reading)
	ch.m.wg.Go(ch.writing)
}

func (ch *channel) closed() bool {
	return ch.closeD.R().Done()
}

func (ch *channel) reading() {
	defer ch.close()

	buf := make([]byte, ch.m.opts.ReadBufferSize)
	for {
		n, err := ch.conn.Read(buf)
		if n > 0 {
			ch.m.emitData(ch.id, append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !ch.closed() {
				ch.log.Info("read error", zap.Error(err))
			}
			return
		}
	}
}

func (ch *channel) writing() {
	for {
		select {
		case b := <-ch.writeC:
			if !ch.write(b) {
				return
			}
		case <-ch.finD:
			ch.expireWrites()
			ch.drain()
			ch.close()
			return
		case <-ch.closeD:
			return
		}
	}
}

func (ch *channel) drain() {
	for {
		select {
		case b := <-ch.writeC:
			if !ch.write(b) {
				return
			}
		default:
			return
		}
	}
}

func (ch *channel) write(b []byte) bool {
	if _, err := ch.conn.Write(b); err != nil {
		if !ch.closed() {
			ch.log.Info("write error", zap.Error(err))
		}
		ch.close()
		return false
	}
	return true
}

// deliver queues payload received from the peer, it reports false if the
// queue is full.
func (ch *channel) deliver(b []byte) bool {
	select {
	case ch.writeC <- b:
		return true
	default:
		return false
	}
}

// expireWrites bounds the writes left after the peer closed the channel,
// a local reader which stopped reading can not hold the channel open.
func (ch *channel) expireWrites() {
	ch.connL.Lock()
	defer ch.connL.Unlock()
	if ch.conn != nil {
		ch.conn.SetWriteDeadline(time.Now().Add(ch.m.opts.CloseTimeout))
	}
}

// closeByPeer handles a CLOSE packet of the channel.
func (ch *channel) closeByPeer() {
	ch.closedByPeer.Store(true)
	ch.finO.Do(ch.finD.SetDone)
	ch.expireWrites()
}

// close tears the channel down exactly once, the peer is told unless it
// closed the channel itself.
func (ch *channel) close() {
	ch.closeO.Do(func() {
		ch.connL.Lock()
		ch.closeD.SetDone()
		conn := ch.conn
		ch.connL.Unlock()

		if conn != nil {
			conn.Close()
		}
		ch.m.reg.unregister(ch)

		if ch.closedByPeer.Load() {
			ch.log.Info("disarm channel, closed by peer")
			return
		}
		ch.log.Info("disarm channel")
		ch.m.emit(Close(ch.id))
	})
}
