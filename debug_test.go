// Copyright 2017 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketDump(test *testing.T) {
	rw := &mockPRW{}

	dump := &bytes.Buffer{}

	d := &PacketDump{
		RW:   rw,
		Dump: dump,
	}

	p, err := d.ReadPacket()
	require.NoError(test, err)

	require.NoError(test, d.WritePacket(p))

	assert.Equal(test, "R:DATA:c1:2\nm1\n\nW:DATA:c1:2\nm1\n\n", dump.String())
}

func TestPacketDumpFilter(test *testing.T) {
	rw := &mockPRW{}

	dump := &bytes.Buffer{}

	d := &PacketDump{
		RW:     rw,
		Dump:   dump,
		Filter: func(p *Packet, read bool) bool { return !read },
	}

	p, err := d.ReadPacket()
	require.NoError(test, err)

	require.NoError(test, d.WritePacket(p))

	assert.Equal(test, "W:DATA:c1:2\nm1\n\n", dump.String())
}
