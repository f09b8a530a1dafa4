// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
)

// DecodeError reports a malformed frame. It is recoverable, the frame
// is skipped and the stream continues.
type DecodeError struct {
	Line []byte
	Err  error
}

func newDecodeError(line []byte, err error) *DecodeError {
	return &DecodeError{Line: append([]byte(nil), line...), Err: err}
}

func (e *DecodeError) Error() string {
	const limit = 64
	line := e.Line
	if len(line) > limit {
		line = line[:limit]
	}
	return fmt.Sprintf("decode %q: %v", line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// wirePacket is the json layout of a frame, default fields are omitted.
type wirePacket struct {
	ID     string `json:"id"`
	Type   Type   `json:"type,omitempty"`
	Data   []byte `json:"data,omitempty"`
	Snappy bool   `json:"z,omitempty"`
}

// Codec converts packets to and from single-line text records, the
// record terminator is not part of the encoded form.
//
// If CompressThreshold is positive, payloads of at least that length are
// snappy compressed. Decode always accepts compressed payloads.
type Codec struct {
	CompressThreshold int
}

func (c Codec) Encode(p *Packet) ([]byte, error) {
	w := wirePacket{ID: p.ID, Type: p.Type, Data: p.Payload}
	if c.CompressThreshold > 0 && len(p.Payload) >= c.CompressThreshold {
		w.Data = snappy.Encode(nil, p.Payload)
		w.Snappy = true
	}
	return json.Marshal(&w)
}

func (c Codec) Decode(line []byte) (*Packet, error) {
	var w wirePacket
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, newDecodeError(line, err)
	}

	p := &Packet{ID: w.ID, Type: w.Type}
	if len(w.Data) == 0 {
		return p, nil
	}

	if w.Snappy {
		b, err := snappy.Decode(nil, w.Data)
		if err != nil {
			return nil, newDecodeError(line, err)
		}
		w.Data = b
	}
	if len(w.Data) > 0 {
		p.Payload = w.Data
	}
	return p, nil
}
