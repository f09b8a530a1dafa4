// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"fmt"
	"io"
	"sync"
)

type mockPRW struct {
	rsus chan bool
	rcnt int
	rmax int

	wsus chan bool
	wcnt int
	wmax int

	mu sync.Mutex
	// written packets
	w []*Packet
}

func (rw *mockPRW) OnStop() {
	if rw.rsus != nil {
		close(rw.rsus)
	}
	if rw.wsus != nil {
		close(rw.wsus)
	}
}

func (rw *mockPRW) ReadPacket() (*Packet, error) {
	if rw.rsus != nil {
		<-rw.rsus
	}

	if rw.rmax > 0 && rw.rcnt >= rw.rmax {
		return nil, io.EOF
	}

	rw.rcnt++
	return Data(fmt.Sprint("c", rw.rcnt), []byte(fmt.Sprint("m", rw.rcnt))), nil
}

func (rw *mockPRW) WritePacket(p *Packet) error {
	if rw.wsus != nil {
		<-rw.wsus
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.wmax > 0 && rw.wcnt >= rw.wmax {
		return io.ErrClosedPipe
	}

	rw.wcnt++
	rw.w = append(rw.w, p)
	return nil
}

func (rw *mockPRW) written() []*Packet {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return append([]*Packet(nil), rw.w...)
}
