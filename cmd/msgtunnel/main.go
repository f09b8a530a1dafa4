// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command msgtunnel multiplexes tcp connections over one line stream.
//
// The server listens on host:port after the client's handshake, the
// client connects every tunneled connection to host:port.
//
//	msgtunnel -s -i in.pipe -o out.pipe -P 8080
//	msgtunnel -c -i out.pipe -o in.pipe -H example.com -P 80
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/someonegg/msgtunnel"
	"github.com/someonegg/msgtunnel/config"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type flags struct {
	server, client   bool
	verbose, debug   bool
	quiet            bool
	input, output    string
	host             string
	port             int
	configPath       string
	metrics, dump    string
	compress         int
	wsListen, wsDial string
}

func parseFlags(args []string) (*config.Config, error) {
	var f flags
	fs := flag.NewFlagSet("msgtunnel", flag.ContinueOnError)
	fs.BoolVar(&f.server, "s", false, "run as server")
	fs.BoolVar(&f.client, "c", false, "run as client")
	fs.BoolVar(&f.verbose, "v", false, "verbose logging")
	fs.BoolVar(&f.debug, "vv", false, "debug logging")
	fs.BoolVar(&f.quiet, "q", false, "log fatal errors only")
	fs.StringVar(&f.input, "i", config.Stdio, "input file, - for stdin")
	fs.StringVar(&f.output, "o", config.Stdio, "output file, - for stdout")
	fs.StringVar(&f.host, "H", "localhost", "host to bind (server) or to connect (client)")
	fs.IntVar(&f.port, "P", 3128, "port to bind (server) or to connect (client)")
	fs.StringVar(&f.configPath, "config", "", "yaml configuration file")
	fs.StringVar(&f.metrics, "metrics", "", "serve prometheus metrics on this address")
	fs.StringVar(&f.dump, "dump", "", "dump every packet to this file")
	fs.IntVar(&f.compress, "compress", 0, "compress payload not smaller than this size, 0 disables")
	fs.StringVar(&f.wsListen, "ws-listen", "", "accept the stream as a websocket on this address")
	fs.StringVar(&f.wsDial, "ws-dial", "", "dial the stream as a websocket url")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if f.server && f.client {
		return nil, errors.New("-s and -c are exclusive")
	}

	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "s":
			if f.server {
				cfg.Role = config.RoleServer
			}
		case "c":
			if f.client {
				cfg.Role = config.RoleClient
			}
		case "i":
			cfg.Input = f.input
		case "o":
			cfg.Output = f.output
		case "H":
			cfg.Host = f.host
		case "P":
			cfg.Port = f.port
		case "metrics":
			cfg.Metrics = f.metrics
		case "dump":
			cfg.Dump = f.dump
		case "compress":
			cfg.CompressThreshold = f.compress
		case "ws-listen":
			cfg.Websocket.Listen = f.wsListen
		case "ws-dial":
			cfg.Websocket.Dial = f.wsDial
		}
	})
	switch {
	case f.quiet:
		cfg.LogLevel = "fatal"
	case f.debug:
		cfg.LogLevel = "debug"
	case f.verbose:
		cfg.LogLevel = "info"
	}

	return cfg, cfg.Validate()
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "msgtunnel:", err)
		os.Exit(2)
	}

	level, _ := cfg.Level()
	log := newLogger(level)
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("tunnel failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) (err error) {
	codec := msgtunnel.Codec{CompressThreshold: cfg.CompressThreshold}
	rw, err := openStream(ctx, cfg, codec, log)
	if err != nil {
		return err
	}

	if cfg.Dump != "" {
		df, derr := os.Create(cfg.Dump)
		if derr != nil {
			return derr
		}
		defer func() { err = multierr.Append(err, df.Close()) }()
		rw = &msgtunnel.PacketDump{RW: rw, Dump: df}
	}

	opts := []msgtunnel.Option{
		msgtunnel.WithQueueSize(cfg.QueueSize),
		msgtunnel.WithChannelQueueSize(cfg.ChannelQueueSize),
		msgtunnel.WithReadBufferSize(cfg.ReadBufferSize),
		msgtunnel.WithDialTimeout(cfg.DialTimeout),
		msgtunnel.WithDialAttempts(cfg.DialAttempts),
		msgtunnel.WithBindAttempts(cfg.BindAttempts),
		msgtunnel.WithCloseTimeout(cfg.CloseTimeout),
		msgtunnel.WithLogger(log),
	}
	if cfg.Backpressure {
		opts = append(opts, msgtunnel.WithBackpressure())
	}

	var mux *msgtunnel.Mux
	if cfg.Role == config.RoleServer {
		mux = msgtunnel.NewServer(rw, cfg.Addr(), opts...).Mux
	} else {
		mux = msgtunnel.NewClient(rw, cfg.Addr(), opts...).Mux
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			msgtunnel.NewCollector(mux, cfg.Role),
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		srv := &http.Server{
			Addr:              cfg.Metrics,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
	}

	g.Go(func() error {
		defer cancel()
		return tunnel(ctx, mux, log)
	})

	return g.Wait()
}

// tunnel runs mux until the shared stream ends or ctx is done.
func tunnel(ctx context.Context, mux *msgtunnel.Mux, log *zap.Logger) error {
	if err := mux.Start(ctx); err != nil {
		return err
	}

	select {
	case <-mux.StopD():
	case <-ctx.Done():
		log.Info("shutting down")
		mux.Stop()
		select {
		case <-mux.StopD():
		case <-time.After(shutdownTimeout):
			// a read blocked on the standard input is not interruptible
			log.Warn("shutdown timed out")
			return nil
		}
	}

	err := mux.Error()
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
