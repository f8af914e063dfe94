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

// Package filewriter persists RecordBatches to rolling Arrow IPC stream
// files on disk (§5.1). Rotation is size-based, like
// gopkg.in/natefinch/lumberjack.v2, but filewriter additionally needs to
// keep an open ipc.Writer bound per-file (§5.1: many records share one
// stream between rotations), so it does not use lumberjack directly; it
// follows the teacher's plain os.OpenFile/os.MkdirAll file-handling
// style (pkg/benchmark/profiler.go) instead. lumberjack itself backs the
// engine's own operational log file via pkg/otel/logging, which rotates
// ordinary log lines rather than these Arrow streams.
package filewriter

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/dustin/go-humanize"

	"github.com/otelpipe/otlp-engine/pkg/otel/arrowcodec"
	"github.com/otelpipe/otlp-engine/pkg/werror"
)

// Kind names the two data streams this engine persists, used both for
// the subdirectory name and the filename's kind segment (§5.1).
type Kind string

const (
	KindTraces  Kind = "traces"
	KindMetrics Kind = "metrics"
)

// Writer rolls RecordBatches of a single Kind into size-bounded Arrow
// IPC stream files under baseDir/otlp/<kind>/. It is safe for
// concurrent use; writes are serialized under a mutex since the
// underlying ipc.Writer is not itself concurrency-safe.
type Writer struct {
	baseDir     string
	kind        Kind
	schema      *arrow.Schema
	maxFileSize int64
	now         func() time.Time

	mu       sync.Mutex
	file     *os.File
	counter  *countingWriter
	appender *arrowcodec.StreamAppender
	seq      int
	openedAt time.Time
	path     string
}

// countingWriter tracks total bytes written to the underlying file so
// Writer can decide when to rotate without re-encoding each record just
// to measure it.
type countingWriter struct {
	w *os.File
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// New creates a Writer rooted at baseDir for the given kind and schema.
// The directory baseDir/otlp/<kind> is created if it does not exist.
func New(baseDir string, kind Kind, schema *arrow.Schema, maxFileSize int64) (*Writer, error) {
	dir := filepath.Join(baseDir, "otlp", string(kind))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, werror.WrapWithMsgf(err, "create %s", dir)
	}
	return &Writer{
		baseDir:     baseDir,
		kind:        kind,
		schema:      schema,
		maxFileSize: maxFileSize,
		now:         time.Now,
	}, nil
}

// Dir returns the directory this writer rolls files into.
func (w *Writer) Dir() string {
	return filepath.Join(w.baseDir, "otlp", string(w.kind))
}

// CurrentPath returns the path of the currently-open file, or "" if no
// file is open yet. Used by the retention sweeper to avoid deleting a
// file still being written to.
func (w *Writer) CurrentPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// Write appends rec to the current file, rotating first if the file is
// already at or above maxFileSize (§5.1 "rotation is driven by
// cumulative file size"). It returns whether a rotation occurred.
func (w *Writer) Write(rec arrow.Record) (rotated bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		if err := w.openLocked(); err != nil {
			return false, err
		}
	} else if w.maxFileSize > 0 && w.counter.n >= w.maxFileSize {
		if err := w.rotateLocked(); err != nil {
			return false, err
		}
		rotated = true
	}

	if err := w.appender.Append(rec); err != nil {
		return rotated, werror.WrapWithMsgf(err, "append to %s", w.path)
	}
	if err := w.file.Sync(); err != nil {
		return rotated, werror.WrapWithMsgf(err, "sync %s", w.path)
	}

	return rotated, nil
}

// Close finalizes and closes the current file, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) closeLocked() error {
	if w.file == nil {
		return nil
	}
	var errs []error
	if err := w.appender.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, err)
	}
	w.file = nil
	w.appender = nil
	w.counter = nil
	if len(errs) > 0 {
		return werror.WrapWithMsgf(errs[0], "closing %s", w.path)
	}
	return nil
}

func (w *Writer) rotateLocked() error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	w.seq++
	return w.openLocked()
}

func (w *Writer) openLocked() error {
	now := w.now()
	// strictly increasing (timestamp, seq) filenames (§5.1): seq resets
	// to 0 when more than a second has passed since the previous open
	// (the timestamp second has then changed), otherwise it keeps the
	// value rotateLocked incremented.
	if now.After(w.openedAt.Add(time.Second)) || w.openedAt.IsZero() {
		w.seq = 0
	}
	w.openedAt = now

	name := fmt.Sprintf("otlp_%s_%s_%04d.arrows", w.kind, now.UTC().Format("20060102_150405"), w.seq)
	path := filepath.Join(w.Dir(), name)

	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return werror.WrapWithMsgf(err, "create %s", path)
	}

	w.file = f
	w.path = path
	w.counter = &countingWriter{w: f}
	w.appender = arrowcodec.NewStreamAppender(w.counter, w.schema)
	return nil
}

// HumanWritten reports the current file's byte count in human-readable
// form.
func (w *Writer) HumanWritten() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.counter == nil {
		return humanize.Bytes(0)
	}
	return humanize.Bytes(uint64(w.counter.n))
}
