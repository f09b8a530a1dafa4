// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config defines the configuration file of the msgtunnel command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/someonegg/msgtunnel"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	RoleServer = "server"
	RoleClient = "client"

	// Stdio selects the standard input or output as the stream.
	Stdio = "-"
)

type (
	Websocket struct {
		// Listen serves the shared stream on a websocket endpoint.
		Listen string `yaml:"listen"`
		// Dial connects the shared stream to a websocket url.
		Dial string `yaml:"dial"`
		Path string `yaml:"path"`
	}

	Config struct {
		Role   string `yaml:"role"`
		Input  string `yaml:"input"`
		Output string `yaml:"output"`
		Host   string `yaml:"host"`
		Port   int    `yaml:"port"`

		LogLevel string `yaml:"logLevel"`

		QueueSize         int           `yaml:"queueSize"`
		ChannelQueueSize  int           `yaml:"channelQueueSize"`
		ReadBufferSize    int           `yaml:"readBufferSize"`
		Backpressure      bool          `yaml:"backpressure"`
		CompressThreshold int           `yaml:"compressThreshold"`
		DialTimeout       time.Duration `yaml:"dialTimeout"`
		DialAttempts      uint          `yaml:"dialAttempts"`
		BindAttempts      uint          `yaml:"bindAttempts"`
		CloseTimeout      time.Duration `yaml:"closeTimeout"`
		TailInterval      time.Duration `yaml:"tailInterval"`

		Metrics string `yaml:"metrics"`
		Dump    string `yaml:"dump"`

		Websocket Websocket `yaml:"websocket"`
	}
)

func Default() *Config {
	return &Config{
		Input:        Stdio,
		Output:       Stdio,
		Host:         "localhost",
		Port:         3128,
		LogLevel:     "warn",
		QueueSize:    20,
		DialTimeout:  5 * time.Second,
		DialAttempts: 1,
		BindAttempts: 3,
		CloseTimeout: 5 * time.Second,
		TailInterval: 50 * time.Millisecond,
		Websocket:    Websocket{Path: "/tunnel"},
	}
}

// Load reads the file at path over the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes a yaml document over the defaults, unknown fields are
// rejected.
func Parse(b []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// Addr is the address the server binds or the client dials.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.LogLevel)
}

// Validate reports every problem of the configuration.
func (c *Config) Validate() error {
	var err error

	switch c.Role {
	case RoleServer, RoleClient:
	case "":
		err = multierr.Append(err, errors.New("role is required, use -s or -c"))
	default:
		err = multierr.Append(err, fmt.Errorf("unknown role %q", c.Role))
	}

	if c.Input == "" {
		err = multierr.Append(err, errors.New("input is empty"))
	}
	if c.Output == "" {
		err = multierr.Append(err, errors.New("output is empty"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("port %d out of range", c.Port))
	}
	if _, lerr := c.Level(); lerr != nil {
		err = multierr.Append(err, lerr)
	}

	if c.QueueSize < 0 {
		err = multierr.Append(err, fmt.Errorf("negative queueSize %d", c.QueueSize))
	}
	if c.ChannelQueueSize < 0 {
		err = multierr.Append(err, fmt.Errorf("negative channelQueueSize %d", c.ChannelQueueSize))
	}
	if c.ReadBufferSize < 0 {
		err = multierr.Append(err, fmt.Errorf("negative readBufferSize %d", c.ReadBufferSize))
	}
	if c.ReadBufferSize > msgtunnel.MaxReadBufferSize {
		err = multierr.Append(err, fmt.Errorf("readBufferSize %d exceeds %d", c.ReadBufferSize, msgtunnel.MaxReadBufferSize))
	}
	if c.CompressThreshold < 0 {
		err = multierr.Append(err, fmt.Errorf("negative compressThreshold %d", c.CompressThreshold))
	}
	if c.DialTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("negative dialTimeout %v", c.DialTimeout))
	}
	if c.CloseTimeout < 0 {
		err = multierr.Append(err, fmt.Errorf("negative closeTimeout %v", c.CloseTimeout))
	}
	if c.TailInterval < 0 {
		err = multierr.Append(err, fmt.Errorf("negative tailInterval %v", c.TailInterval))
	}

	if c.Websocket.Listen != "" && c.Websocket.Dial != "" {
		err = multierr.Append(err, errors.New("websocket listen and dial are exclusive"))
	}

	return err
}
