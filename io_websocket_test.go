// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferCloser struct {
	bytes.Buffer
}

func (bc *bufferCloser) Close() error {
	return nil
}

type mockWebsocketConn struct {
	rt int
	rb string

	wt int
	wb bufferCloser

	closed bool
}

func (c *mockWebsocketConn) NextReader() (int, io.Reader, error) {
	return c.rt, bytes.NewBufferString(c.rb), nil
}

func (c *mockWebsocketConn) NextWriter(messageType int) (io.WriteCloser, error) {
	c.wt = messageType
	return &c.wb, nil
}

func (c *mockWebsocketConn) Close() error {
	c.closed = true
	return nil
}

func TestWebsocketRead(test *testing.T) {
	c := &mockWebsocketConn{}
	rw := WebsocketRW(c, Codec{})

	c.rt = TextMessage
	c.rb = `{"id":"c1","data":"aGk="}`
	p, err := rw.ReadPacket()
	require.NoError(test, err)
	assert.Equal(test, Data("c1", []byte("hi")), p)

	c.rt = BinaryMessage
	_, err = rw.ReadPacket()
	assert.Equal(test, errWebsocketMessageType, err)

	c.rt = TextMessage
	c.rb = `{"id":`
	_, err = rw.ReadPacket()
	var de *DecodeError
	assert.ErrorAs(test, err, &de)
}

func TestWebsocketWrite(test *testing.T) {
	c := &mockWebsocketConn{}
	rw := WebsocketRW(c, Codec{})

	require.NoError(test, rw.WritePacket(Open("c1")))
	assert.Equal(test, TextMessage, c.wt)
	assert.Equal(test, `{"id":"c1","type":"OPEN"}`, c.wb.String())

	rw.(StopNotifier).OnStop()
	assert.True(test, c.closed)
}
