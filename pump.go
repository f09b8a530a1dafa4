// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/someonegg/gox/syncx"
	"go.uber.org/zap"
)

var (
	// ErrPumpStopped is returned by Output when the pump is quitting.
	ErrPumpStopped = errors.New("pump stopped")

	errUnknownPanic = errors.New("unknown panic")
)

type legalPanic struct {
	err error
}

// Handler is the packet processor.
//
// Process is called from the reading loop, packets are processed strictly
// in the order they were read. ctx is canceled when the pump is quitting.
type Handler interface {
	Process(ctx context.Context, p *Packet)
}

// The HandlerFunc type is an adapter to allow the use of
// ordinary functions as packet handlers.
type HandlerFunc func(ctx context.Context, p *Packet)

// Process calls f(ctx, p).
func (f HandlerFunc) Process(ctx context.Context, p *Packet) {
	f(ctx, p)
}

type Statistics struct {
	// from PacketReadWriter
	ReadedCount int64
	ReadedBytes int64

	// to PacketReadWriter
	WrittenCount int64
	WrittenBytes int64

	// Output and TryOutput calls
	OutputCount int64

	// TryOutput calls rejected by a full write queue
	DroppedCount int64

	// malformed frames skipped by the reading loop
	DecodeErrorCount int64
}

// Pump represents a packet-pump, it has a working loop which reads
// and writes packets parallelly and continuously.
//
// The shared stream is only touched by two goroutines, one reading
// and one writing.
//
// Pump supports concurrently access.
type Pump struct {
	err   error
	quitF context.CancelFunc
	quitO sync.Once
	quitD syncx.DoneChan
	stopD syncx.DoneChan

	rw PacketReadWriter
	h  Handler
	sn StopNotifier

	// read
	rerr error
	rD   syncx.DoneChan
	// write
	werr error
	wD   syncx.DoneChan
	wQ   chan *Packet

	stat Statistics

	log       *zap.Logger
	panicLogF func(interface{})
}

// NewPump allocates and returns a new Pump.
//
// If rw implementes the StopNotifier interface, it will be called when
// the working loop exiting.
func NewPump(rw PacketReadWriter, h Handler, writeQueueSize int) *Pump {
	sn, _ := rw.(StopNotifier)
	p := &Pump{
		quitD: syncx.NewDoneChan(),
		stopD: syncx.NewDoneChan(),

		rw: rw,
		h:  h,
		sn: sn,

		rD: syncx.NewDoneChan(),
		wD: syncx.NewDoneChan(),
		wQ: make(chan *Packet, writeQueueSize),

		log: zap.L().Named("pump"),
	}
	p.panicLogF = p.thePanicLogFunc
	return p
}

// The default panic log function.
func (p *Pump) thePanicLogFunc(v interface{}) {
	p.log.Error("pump panic", zap.Any("panic", v), zap.Stack("stack"))
}

// SetLogger is optional, the default is the global zap logger.
func (p *Pump) SetLogger(l *zap.Logger) {
	p.log = l
}

// SetPanicLogFunc is optional.
func (p *Pump) SetPanicLogFunc(f func(panicV interface{})) {
	p.panicLogF = f
}

// Start will start the working loop.
func (p *Pump) Start(parent context.Context) {
	if parent == nil {
		parent = context.Background()
	}

	var ctx context.Context
	ctx, p.quitF = context.WithCancel(parent)

	go p.reading(ctx)
	go p.writing(ctx)
	go p.monitor(ctx)
}

func (p *Pump) monitor(ctx context.Context) {
	defer p.ending()

	select {
	case <-ctx.Done():
	case <-p.rD:
	case <-p.wD:
	}
}

func (p *Pump) quit() {
	p.quitF()
	p.quitO.Do(p.quitD.SetDone)
}

func (p *Pump) ending() {
	if e := recover(); e != nil {
		legal := false
		switch v := e.(type) {
		case legalPanic:
			legal = true
			p.err = v.err
		case error:
			p.err = v
		default:
			p.err = errUnknownPanic
		}
		if !legal && p.panicLogF != nil {
			p.panicLogF(e)
		}
	}

	defer func() { recover() }()
	defer p.stopD.SetDone()

	// if ending from error.
	p.quit()

	if p.sn != nil {
		p.sn.OnStop()
	}

	<-p.rD
	<-p.wD
}

func (p *Pump) recovering(perr *error, done syncx.DoneChan) {
	if e := recover(); e != nil {
		legal := false
		switch v := e.(type) {
		case legalPanic:
			legal = true
			*perr = v.err
		case error:
			*perr = v
		default:
			*perr = errUnknownPanic
		}
		if !legal && p.panicLogF != nil {
			p.panicLogF(e)
		}
	}

	done.SetDone()
}

func (p *Pump) reading(ctx context.Context) {
	defer p.recovering(&p.rerr, p.rD)

	for q := false; !q; {
		if pk := p.readPacket(); pk != nil {
			p.h.Process(ctx, pk)
		}

		select {
		case <-ctx.Done():
			q = true
		default:
		}
	}
}

// readPacket returns nil if a malformed frame was skipped.
func (p *Pump) readPacket() *Packet {
	pk, err := p.rw.ReadPacket()
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			atomic.AddInt64(&p.stat.DecodeErrorCount, 1)
			p.log.Warn("skip malformed frame", zap.Error(err))
			return nil
		}
		panic(legalPanic{err})
	}
	atomic.AddInt64(&p.stat.ReadedCount, 1)
	atomic.AddInt64(&p.stat.ReadedBytes, int64(len(pk.Payload)))
	if ce := p.log.Check(zap.DebugLevel, "<=="); ce != nil {
		ce.Write(zap.Stringer("packet", pk))
	}
	return pk
}

func (p *Pump) writing(ctx context.Context) {
	defer p.recovering(&p.werr, p.wD)

	for q := false; !q; {
		select {
		case <-ctx.Done():
			q = true
		case pk := <-p.wQ:
			p.writePacket(pk)
		}
	}
}

func (p *Pump) writePacket(pk *Packet) {
	if ce := p.log.Check(zap.DebugLevel, "==>"); ce != nil {
		ce.Write(zap.Stringer("packet", pk))
	}
	err := p.rw.WritePacket(pk)
	if err != nil {
		panic(legalPanic{err})
	}
	atomic.AddInt64(&p.stat.WrittenCount, 1)
	atomic.AddInt64(&p.stat.WrittenBytes, int64(len(pk.Payload)))
}

// Stop requests to stop the pump, the working loop will stop asynchronously.
func (p *Pump) Stop() {
	if p.quitF != nil {
		p.quitF()
	}
}

// StopD returns a done channel, it will be signaled when the pump is stopped.
func (p *Pump) StopD() syncx.DoneChanR {
	return p.stopD.R()
}

func (p *Pump) Stopped() bool {
	return p.stopD.R().Done()
}

// Error can only be called after pump stopped.
//
// io.EOF means the peer closed the stream, which is the natural shutdown.
func (p *Pump) Error() error {
	if p.err != nil {
		return p.err
	}
	if p.rerr != nil {
		return p.rerr
	}
	return p.werr
}

// Output puts the packet to the write queue, it blocks until there is
// room in the queue, ctx is done or the pump is quitting.
func (p *Pump) Output(ctx context.Context, pk *Packet) error {
	select {
	case <-p.quitD:
		return ErrPumpStopped
	default:
	}

	select {
	case p.wQ <- pk:
		atomic.AddInt64(&p.stat.OutputCount, 1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quitD:
		return ErrPumpStopped
	}
}

// TryOutput tries to put the packet to the write queue, the packet is
// dropped if the queue is full.
func (p *Pump) TryOutput(pk *Packet) bool {
	select {
	case p.wQ <- pk:
		atomic.AddInt64(&p.stat.OutputCount, 1)
		return true
	default:
		atomic.AddInt64(&p.stat.DroppedCount, 1)
		return false
	}
}

func (p *Pump) Statistics() Statistics {
	return Statistics{
		ReadedCount:      atomic.LoadInt64(&p.stat.ReadedCount),
		ReadedBytes:      atomic.LoadInt64(&p.stat.ReadedBytes),
		WrittenCount:     atomic.LoadInt64(&p.stat.WrittenCount),
		WrittenBytes:     atomic.LoadInt64(&p.stat.WrittenBytes),
		OutputCount:      atomic.LoadInt64(&p.stat.OutputCount),
		DroppedCount:     atomic.LoadInt64(&p.stat.DroppedCount),
		DecodeErrorCount: atomic.LoadInt64(&p.stat.DecodeErrorCount),
	}
}
