// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/someonegg/msgtunnel"
	"github.com/someonegg/msgtunnel/config"
	"github.com/someonegg/msgtunnel/tail"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// openStream selects the shared stream of the tunnel.
func openStream(ctx context.Context, cfg *config.Config, codec msgtunnel.Codec, log *zap.Logger) (msgtunnel.PacketReadWriter, error) {
	switch {
	case cfg.Websocket.Dial != "":
		return dialWebsocket(ctx, cfg.Websocket.Dial, codec, log)
	case cfg.Websocket.Listen != "":
		return acceptWebsocket(ctx, cfg.Websocket.Listen, cfg.Websocket.Path, codec, log)
	}

	r, err := openInput(cfg.Input, cfg.TailInterval)
	if err != nil {
		return nil, err
	}
	w, err := openOutput(cfg.Output)
	if err != nil {
		return nil, multierr.Append(err, r.Close())
	}
	return msgtunnel.LineRW(r, w, codec), nil
}

// prepareFile creates the file or truncates it.
func prepareFile(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", path, err)
	}
	return f.Close()
}

func openInput(path string, interval time.Duration) (io.ReadCloser, error) {
	if path == config.Stdio {
		return os.Stdin, nil
	}
	if err := prepareFile(path); err != nil {
		return nil, err
	}
	return tail.Open(path, tail.WithInterval(interval))
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == config.Stdio {
		return os.Stdout, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|os.O_SYNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	return f, nil
}

func dialWebsocket(ctx context.Context, url string, codec msgtunnel.Codec, log *zap.Logger) (msgtunnel.PacketReadWriter, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	log.Info("websocket connected", zap.String("url", url))
	return msgtunnel.WebsocketRW(conn, codec), nil
}

// acceptWebsocket serves addr until the first peer upgrades, the
// listener is closed afterwards.
func acceptWebsocket(ctx context.Context, addr, path string, codec msgtunnel.Codec, log *zap.Logger) (msgtunnel.PacketReadWriter, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("websocket listen: %w", err)
	}
	log.Info("websocket waiting for peer", zap.Stringer("addr", ln.Addr()), zap.String("path", path))

	connC := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade", zap.Error(err))
			return
		}
		select {
		case connC <- conn:
		default:
			log.Warn("websocket peer rejected, tunnel is busy", zap.Stringer("remote", conn.RemoteAddr()))
			conn.Close()
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errC := make(chan error, 1)
	go func() { errC <- srv.Serve(ln) }()
	defer srv.Close()

	select {
	case conn := <-connC:
		log.Info("websocket accepted", zap.Stringer("remote", conn.RemoteAddr()))
		return msgtunnel.WebsocketRW(conn, codec), nil
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("websocket serve: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
