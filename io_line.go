// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"bufio"
	"bytes"
	"io"
)

// LineMaxLength is the maximum frame length.
const LineMaxLength = 32 * 1024 * 1024

type lineRW struct {
	r  io.Reader
	w  io.Writer
	sc *bufio.Scanner
	bw *bufio.Writer
	c  Codec
}

// LineRW converts a byte stream pair to a PacketReadWriter.
//
// In the transport layer, every packet is one encoded line. Both '\r' and
// '\n' terminate a line, empty lines are skipped. Every written packet is
// terminated by '\n' and flushed immediately.
//
// If r or w implements io.Closer, it is closed when the pump stops.
func LineRW(r io.Reader, w io.Writer, c Codec) PacketReadWriter {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), LineMaxLength)
	sc.Split(scanFrames)
	return &lineRW{
		r:  r,
		w:  w,
		sc: sc,
		bw: bufio.NewWriter(w),
		c:  c,
	}
}

func isTerminator(b byte) bool {
	return b == '\r' || b == '\n'
}

func scanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && isTerminator(data[start]) {
		start++
	}
	if i := bytes.IndexAny(data[start:], "\r\n"); i >= 0 {
		return start + i + 1, data[start : start+i], nil
	}
	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

func (rw *lineRW) OnStop() {
	if c, ok := rw.r.(io.Closer); ok {
		c.Close()
	}
	if c, ok := rw.w.(io.Closer); ok {
		c.Close()
	}
}

func (rw *lineRW) ReadPacket() (*Packet, error) {
	if !rw.sc.Scan() {
		if err := rw.sc.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return rw.c.Decode(rw.sc.Bytes())
}

func (rw *lineRW) WritePacket(p *Packet) error {
	b, err := rw.c.Encode(p)
	if err != nil {
		return err
	}

	rw.bw.Write(b)
	rw.bw.WriteByte('\n')

	return rw.bw.Flush()
}
