// Copyright The OpenTelemetry Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging builds the *zap.Logger the engine's own operational
// log (distinct from the .arrows telemetry files pkg/otel/filewriter
// rolls) is written to. It is opt-in: embedders that already own a
// *zap.Logger construct one their own way and pass it to exporter.New
// directly; this package exists for the common case of wanting rotated
// file output without wiring zapcore by hand.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig configures rotation for an operational log file, mirroring
// lumberjack.Logger's own fields so callers do not need to import
// lumberjack themselves.
type FileConfig struct {
	// Path is the log file path. Required.
	Path string

	// MaxSizeMB rotates the file once it exceeds this size. Defaults to
	// 100 if zero, matching lumberjack's own default.
	MaxSizeMB int

	// MaxBackups caps the number of rotated files retained; 0 keeps all.
	MaxBackups int

	// MaxAgeDays caps how long a rotated file is kept; 0 keeps forever.
	MaxAgeDays int

	// Compress gzips rotated files.
	Compress bool

	// Level sets the minimum enabled log level; defaults to zap.InfoLevel.
	Level zapcore.Level
}

// NewFileLogger builds a *zap.Logger that writes JSON-encoded entries to
// a lumberjack-rotated file, for embedders that want the engine's own
// operational logging rotated the same way the teacher's collector
// binary rotates its log file.
func NewFileLogger(cfg FileConfig) *zap.Logger {
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	if lj.MaxSize == 0 {
		lj.MaxSize = 100
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(lj), cfg.Level)
	return zap.New(core, zap.AddCaller())
}
