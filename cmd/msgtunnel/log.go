// Copyright 2026 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger logs to stderr, stdout may carry the shared stream.
func newLogger(level zapcore.Level) *zap.Logger {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(ec),
		zapcore.Lock(os.Stderr),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
}
