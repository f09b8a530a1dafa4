// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestLineRead(test *testing.T) {
	in := "\r\n\n{\"id\":\"c1\",\"type\":\"OPEN\"}\r{\"id\":\"c1\",\"data\":\"aGk=\"}\r\n\r\n{\"id\":\"c1\",\"type\":\"CLOSE\"}"
	rw := LineRW(strings.NewReader(in), io.Discard, Codec{})

	for _, want := range []*Packet{Open("c1"), Data("c1", []byte("hi")), Close("c1")} {
		p, err := rw.ReadPacket()
		require.NoError(test, err)
		assert.Equal(test, want, p)
	}

	_, err := rw.ReadPacket()
	assert.ErrorIs(test, err, io.EOF)
}

func TestLineReadMalformed(test *testing.T) {
	rw := LineRW(strings.NewReader("oops\n{\"id\":\"c1\"}\n"), io.Discard, Codec{})

	_, err := rw.ReadPacket()
	var de *DecodeError
	require.ErrorAs(test, err, &de)

	p, err := rw.ReadPacket()
	require.NoError(test, err)
	assert.Equal(test, Data("c1", nil), p)
}

func TestLineWrite(test *testing.T) {
	var b bytes.Buffer
	rw := LineRW(strings.NewReader(""), &b, Codec{})

	require.NoError(test, rw.WritePacket(Handshake()))
	require.NoError(test, rw.WritePacket(Data("c1", []byte("hi"))))

	assert.Equal(test, "{\"id\":\"init\"}\n{\"id\":\"c1\",\"data\":\"aGk=\"}\n", b.String())
}

func TestLineOnStop(test *testing.T) {
	r := &closeRecorder{Reader: strings.NewReader("")}
	rw := LineRW(r, io.Discard, Codec{})

	rw.(StopNotifier).OnStop()
	assert.True(test, r.closed)
}
