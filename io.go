// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

// PacketReader returns io.EOF when the stream ended normally, a
// *DecodeError for a malformed frame the stream can continue after, and
// any other error when the stream is broken.
type PacketReader interface {
	ReadPacket() (*Packet, error)
}

type PacketWriter interface {
	WritePacket(p *Packet) error
}

type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// StopNotifier is implemented by streams which must be released when the
// pump stops, typically by closing the underlying connection.
type StopNotifier interface {
	OnStop()
}
