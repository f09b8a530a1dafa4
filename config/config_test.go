// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/someonegg/msgtunnel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "localhost:3128", c.Addr())
	assert.Equal(t, Stdio, c.Input)
	assert.Equal(t, Stdio, c.Output)
	assert.Equal(t, 20, c.QueueSize)
	assert.Equal(t, 50*time.Millisecond, c.TailInterval)

	lvl, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	// role is the only thing left to choose
	assert.Error(t, c.Validate())
	c.Role = RoleClient
	assert.NoError(t, c.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msgtunnel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
role: server
input: /tmp/in
host: 0.0.0.0
port: 8080
logLevel: debug
backpressure: true
compressThreshold: 512
tailInterval: 10ms
websocket:
  listen: ":9000"
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, RoleServer, c.Role)
	assert.Equal(t, "/tmp/in", c.Input)
	assert.Equal(t, Stdio, c.Output)
	assert.Equal(t, "0.0.0.0:8080", c.Addr())
	assert.True(t, c.Backpressure)
	assert.Equal(t, 512, c.CompressThreshold)
	assert.Equal(t, 10*time.Millisecond, c.TailInterval)
	assert.Equal(t, ":9000", c.Websocket.Listen)
	assert.Equal(t, "/tunnel", c.Websocket.Path)
	assert.Equal(t, 20, c.QueueSize)
}

func TestParseEmpty(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestParseUnknownField(t *testing.T) {
	_, err := Parse([]byte("role: server\nspeed: 10\n"))
	assert.Error(t, err)
}

func TestValidateAggregates(t *testing.T) {
	c := Default()
	c.Role = "proxy"
	c.Port = 70000
	c.QueueSize = -1
	c.LogLevel = "loud"
	c.Websocket.Listen = ":9000"
	c.Websocket.Dial = "ws://localhost:9000/tunnel"

	err := c.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 5)
}

func TestValidateReadBufferSize(t *testing.T) {
	c := Default()
	c.Role = RoleServer

	c.ReadBufferSize = msgtunnel.MaxReadBufferSize
	assert.NoError(t, c.Validate())

	// larger payloads could not be framed within a line
	c.ReadBufferSize = msgtunnel.MaxReadBufferSize + 1
	assert.ErrorContains(t, c.Validate(), "readBufferSize")
}
