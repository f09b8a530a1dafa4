// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"fmt"
)

// InitID is the reserved channel id of the readiness handshake, it never
// denotes a real channel.
const InitID = "init"

// Type is the packet type.
type Type uint8

const (
	TypeData Type = iota
	TypeOpen
	TypeClose
	TypeError
)

var typeNames = [...]string{
	TypeData:  "DATA",
	TypeOpen:  "OPEN",
	TypeClose: "CLOSE",
	TypeError: "ERROR",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// MarshalText implements the encoding.TextMarshaler interface.
func (t Type) MarshalText() ([]byte, error) {
	if int(t) >= len(typeNames) {
		return nil, fmt.Errorf("unknown packet type %d", uint8(t))
	}
	return []byte(typeNames[t]), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (t *Type) UnmarshalText(b []byte) error {
	for i, name := range typeNames {
		if string(b) == name {
			*t = Type(i)
			return nil
		}
	}
	return fmt.Errorf("unknown packet type %q", b)
}

// Packet is the only message crossing the shared stream.
//
// Payload is only meaningful for data packets.
type Packet struct {
	ID      string
	Type    Type
	Payload []byte
}

func (p *Packet) String() string {
	return fmt.Sprintf("%v id=%v len=%v", p.Type, p.ID, len(p.Payload))
}

// Data, Open, Close and Error construct the packets of a channel.
//
// Only data packets carry a payload.

func Data(id string, payload []byte) *Packet {
	return &Packet{ID: id, Type: TypeData, Payload: payload}
}

func Open(id string) *Packet {
	return &Packet{ID: id, Type: TypeOpen}
}

func Close(id string) *Packet {
	return &Packet{ID: id, Type: TypeClose}
}

// Error reports that the channel could not be established, the reason
// stays in the local log.
func Error(id string) *Packet {
	return &Packet{ID: id, Type: TypeError}
}

// Handshake returns the packet announcing that the sender's pumps are ready.
func Handshake() *Packet {
	return &Packet{ID: InitID}
}
