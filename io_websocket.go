// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"errors"
	"io"
)

var (
	errWebsocketMessageType = errors.New("websocket io: need text message")
)

// WebsocketReader interface, see https://godoc.org/github.com/gorilla/websocket/#Conn.NextReader
type WebsocketReader interface {
	NextReader() (messageType int, r io.Reader, err error)
}

// WebsocketWriter interface, see https://godoc.org/github.com/gorilla/websocket/#Conn.NextWriter
type WebsocketWriter interface {
	NextWriter(messageType int) (io.WriteCloser, error)
}

// WebsocketConn interface, see https://godoc.org/github.com/gorilla/websocket/#Conn
type WebsocketConn interface {
	WebsocketReader
	WebsocketWriter
	io.Closer
}

// See https://godoc.org/github.com/gorilla/websocket#pkg-constants
const (
	TextMessage   = 1
	BinaryMessage = 2
	CloseMessage  = 8
	PingMessage   = 9
	PongMessage   = 10
)

// WebsocketRW converts a WebsocketConn to a PacketReadWriter.
//
// Every packet is one text message holding the encoded line, without
// terminator.
func WebsocketRW(c WebsocketConn, codec Codec) PacketReadWriter {
	return websocketRW{c: c, codec: codec}
}

type websocketRW struct {
	c     WebsocketConn
	codec Codec
}

func (rw websocketRW) OnStop() {
	rw.c.Close()
}

func (rw websocketRW) ReadPacket() (*Packet, error) {
	wst, wsr, err := rw.c.NextReader()
	if err != nil {
		return nil, err
	}

	if wst != TextMessage {
		return nil, errWebsocketMessageType
	}

	p, err := io.ReadAll(wsr)
	if err != nil {
		return nil, err
	}

	return rw.codec.Decode(p)
}

func (rw websocketRW) WritePacket(p *Packet) error {
	b, err := rw.codec.Encode(p)
	if err != nil {
		return err
	}

	wswc, err := rw.c.NextWriter(TextMessage)
	if err != nil {
		return err
	}

	wswc.Write(b)

	return wswc.Close()
}
