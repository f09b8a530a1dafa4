// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"fmt"
	"io"
	"sync"
)

// PacketDump is a debugging helper, it implements the PacketReadWriter
// interface and provides packet dump function.
//
// The dump format is:
//
//	R|W:Type:ID:PayloadSize\nPayload\n\n
type PacketDump struct {
	RW   PacketReadWriter
	Dump io.Writer

	// Filter can be nil. If nil, dump all packets.
	Filter func(p *Packet, read bool) bool

	mu sync.Mutex
}

func (d *PacketDump) needDump(p *Packet, read bool) bool {
	if d.Filter != nil {
		return d.Filter(p, read)
	}
	return true
}

func (d *PacketDump) dump(dir string, p *Packet) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fmt.Fprintf(d.Dump, "%v:%v:%v:%v\n", dir, p.Type, p.ID, len(p.Payload))
	d.Dump.Write(p.Payload)
	fmt.Fprintf(d.Dump, "\n\n")
}

// OnStop forwards to the wrapped PacketReadWriter.
func (d *PacketDump) OnStop() {
	if sn, ok := d.RW.(StopNotifier); ok {
		sn.OnStop()
	}
}

func (d *PacketDump) ReadPacket() (p *Packet, err error) {
	p, err = d.RW.ReadPacket()
	if err != nil {
		return
	}

	if !d.needDump(p, true) {
		return
	}

	d.dump("R", p)
	return
}

func (d *PacketDump) WritePacket(p *Packet) (err error) {
	err = d.RW.WritePacket(p)
	if err != nil {
		return
	}

	if !d.needDump(p, false) {
		return
	}

	d.dump("W", p)
	return
}
