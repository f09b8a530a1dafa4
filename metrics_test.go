// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(test *testing.T) {
	rw := newChanPRW(16)
	s := startServer(test, rw)
	bindServer(test, s, rw)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(test, reg.Register(NewCollector(s.Mux, "server")))

	assert.Equal(test, 9, testutil.CollectAndCount(NewCollector(s.Mux, "server")))

	rw.in <- Data("nobody", []byte("x"))
	rw.in <- Data("nobody", []byte("y"))
	assert.Eventually(test, func() bool {
		return s.Statistics().ReadedCount == 3
	}, waitTimeout, 10*time.Millisecond)

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP msgtunnel_channels Open channels.
# TYPE msgtunnel_channels gauge
msgtunnel_channels{role="server"} 0
# HELP msgtunnel_packets_read_total Packets read from the shared stream.
# TYPE msgtunnel_packets_read_total counter
msgtunnel_packets_read_total{role="server"} 3
# HELP msgtunnel_payload_read_bytes_total Payload bytes read from the shared stream.
# TYPE msgtunnel_payload_read_bytes_total counter
msgtunnel_payload_read_bytes_total{role="server"} 2
`), "msgtunnel_channels", "msgtunnel_packets_read_total", "msgtunnel_payload_read_bytes_total")
	assert.NoError(test, err)
}
