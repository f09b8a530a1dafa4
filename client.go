// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package msgtunnel

import (
	"context"

	"go.uber.org/zap"
)

// Client is the connecting end of the tunnel.
//
// It sends the handshake when started, every channel opened by the
// server is connected to addr under the server's channel id.
type Client struct {
	*Mux
	addr string
	dial DialFunc
}

// NewClient allocates and returns a new Client.
//
// The local connections are dialed with WithDialer's function if set,
// otherwise with a tcp dialer targeted on addr.
func NewClient(rw PacketReadWriter, addr string, cbs ...Option) *Client {
	opts := newOptions(cbs)
	c := &Client{
		addr: addr,
		dial: opts.Dial,
	}
	if c.dial == nil {
		c.dial = tcpDialer(addr, opts)
	}
	c.Mux = newMux(rw, c, opts, "client")
	return c
}

func (c *Client) start(ctx context.Context) error {
	c.log.Info("client is targeted", zap.String("addr", c.addr))
	return c.pump.Output(ctx, Handshake())
}

func (c *Client) handshake(ctx context.Context) {
	c.log.Debug("ignore handshake")
}

func (c *Client) open(ctx context.Context, id string) {
	c.dialing(id, c.dial)
}

func (c *Client) stop() error {
	return nil
}
