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

// Package exporter wires the Batch Buffer, Format Codec, File Writer,
// Retention Sweeper, Forwarder, and Circuit Breaker into the single
// front-end API ingest front-ends call (§4). Its Start/Shutdown
// lifecycle and background-goroutine bookkeeping follow the teacher's
// otelarrowexporter/internal/arrow.Exporter shape: a cancelable
// background context plus one sync.WaitGroup counting every goroutine
// started under it, so Shutdown can cancel and wait deterministically
// rather than guessing how long draining takes.
package exporter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/otelpipe/otlp-engine/pkg/config"
	"github.com/otelpipe/otlp-engine/pkg/otel/arrowcodec"
	"github.com/otelpipe/otlp-engine/pkg/otel/buffer"
	"github.com/otelpipe/otlp-engine/pkg/otel/filewriter"
	"github.com/otelpipe/otlp-engine/pkg/otel/forwarder"
	"github.com/otelpipe/otlp-engine/pkg/otel/model"
	"github.com/otelpipe/otlp-engine/pkg/otel/retention"
	"github.com/otelpipe/otlp-engine/pkg/otel/stats"
	"github.com/otelpipe/otlp-engine/pkg/werror"
)

// Exporter is the engine's single front-end: ingest front-ends call
// ExportTrace(s)/ExportMetricRequest, and a background write ticker
// drains the buffers into rolled Arrow files, optionally replicating
// each batch via an attached Forwarder (§4).
type Exporter struct {
	cfg    *config.Config
	logger *zap.Logger
	stats  *stats.Counters
	codec  *arrowcodec.Codec

	traceBuffer  *buffer.Buffer[model.SpanRecord]
	metricBuffer *buffer.Buffer[model.MetricRequest]

	traceWriter  *filewriter.Writer
	metricWriter *filewriter.Writer

	traceRetention  *retention.Sweeper
	metricRetention *retention.Sweeper

	forwarder *forwarder.Forwarder

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	started  bool
	shutdown bool
}

// New validates cfg and constructs every wired component, but does not
// start any background goroutine; call Start to begin draining.
func New(cfg *config.Config, logger *zap.Logger) (*Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, werror.WrapWithMsg(err, "invalid config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	counters := &stats.Counters{}

	traceWriter, err := filewriter.New(cfg.OutputDir, filewriter.KindTraces, arrowcodec.TraceSchema, cfg.MaxFileSize)
	if err != nil {
		return nil, werror.WrapWithMsg(err, "create trace writer")
	}
	metricWriter, err := filewriter.New(cfg.OutputDir, filewriter.KindMetrics, arrowcodec.MetricSchema, cfg.MaxFileSize)
	if err != nil {
		return nil, werror.WrapWithMsg(err, "create metric writer")
	}

	var fwd *forwarder.Forwarder
	if cfg.Forwarding != nil && cfg.Forwarding.Enabled {
		fwd, err = forwarder.New(*cfg.Forwarding, logger, counters)
		if err != nil {
			return nil, werror.WrapWithMsg(err, "create forwarder")
		}
	}

	e := &Exporter{
		cfg:          cfg,
		logger:       logger,
		stats:        counters,
		codec:        arrowcodec.New(),
		traceBuffer:  buffer.New[model.SpanRecord](cfg.MaxTraceBuffer),
		metricBuffer: buffer.New[model.MetricRequest](cfg.MaxMetricBuffer),
		traceWriter:  traceWriter,
		metricWriter: metricWriter,
		forwarder:    fwd,
	}
	e.traceRetention = retention.New(traceWriter.Dir(), cfg.TraceRetention, traceWriter.CurrentPath, logger)
	e.traceRetention.OnSweep = func(deleted int) {
		if deleted > 0 {
			counters.FilesDeleted.Add(uint64(deleted))
		}
	}
	e.metricRetention = retention.New(metricWriter.Dir(), cfg.MetricRetention, metricWriter.CurrentPath, logger)
	e.metricRetention.OnSweep = e.traceRetention.OnSweep
	return e, nil
}

// Stats exposes the Exporter's observability counters (§4.7).
func (e *Exporter) Stats() *stats.Counters {
	return e.stats
}

// Start spawns the background write-ticker and retention-sweep
// goroutines. Calls after the first have no effect.
func (e *Exporter) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true

	bg, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(1)
	go e.runWriteTicker(bg)

	e.wg.Add(1)
	go e.runRetention(bg, e.traceRetention, e.cfg.TraceRetention)

	e.wg.Add(1)
	go e.runRetention(bg, e.metricRetention, e.cfg.MetricRetention)
}

// ExportTrace pushes a single span into the trace buffer. A full buffer
// is a non-fatal, counted drop (§4.1).
func (e *Exporter) ExportTrace(span model.SpanRecord) error {
	return e.ExportTraces([]model.SpanRecord{span})
}

// ExportTraces pushes a batch of spans into the trace buffer one at a
// time; each span that finds the buffer full is counted as a drop, and
// spans already accepted are not unwound (§4.1 Push is all-or-nothing
// per item, not per batch).
func (e *Exporter) ExportTraces(spans []model.SpanRecord) error {
	e.stats.Received.Add(uint64(len(spans)))
	for _, s := range spans {
		if err := s.Validate(); err != nil {
			e.stats.WriteErrors.Add(1)
			continue
		}
		if err := e.traceBuffer.Push(s); err != nil {
			e.stats.DroppedBufferFull.Add(1)
			continue
		}
		e.stats.Buffered.Add(1)
	}
	return nil
}

// ExportMetricRequest pushes a MetricRequest into the metric buffer. A
// full buffer is a non-fatal, counted drop (§4.1).
func (e *Exporter) ExportMetricRequest(mr model.MetricRequest) error {
	e.stats.Received.Add(1)
	if err := e.metricBuffer.Push(mr); err != nil {
		e.stats.DroppedBufferFull.Add(1)
		return nil
	}
	e.stats.Buffered.Add(1)
	return nil
}

// Flush drains both buffers and writes/forwards them immediately,
// without waiting for the next write-ticker interval.
func (e *Exporter) Flush(ctx context.Context) error {
	return multierr.Combine(
		e.drainTraces(ctx),
		e.drainMetrics(ctx),
	)
}

// Shutdown stops the background goroutines, performs one final flush,
// and closes the file writers. It is idempotent: calling it more than
// once after the first call returns nil immediately.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return nil
	}
	e.shutdown = true
	cancel := e.cancel
	started := e.started
	e.mu.Unlock()

	if started && cancel != nil {
		cancel()
		e.wg.Wait()
	}

	deadline := ctx
	if e.cfg.Forwarding != nil && e.cfg.Forwarding.ShutdownDeadline > 0 {
		var done context.CancelFunc
		deadline, done = context.WithTimeout(ctx, e.cfg.Forwarding.ShutdownDeadline)
		defer done()
	}

	flushErr := e.Flush(deadline)
	closeErr := multierr.Combine(e.traceWriter.Close(), e.metricWriter.Close())
	if e.forwarder != nil {
		closeErr = multierr.Append(closeErr, e.forwarder.Close())
	}
	return multierr.Combine(flushErr, closeErr)
}

func (e *Exporter) runWriteTicker(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.WriteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Flush(ctx); err != nil {
				e.logger.Warn("exporter: periodic flush failed", zap.Error(err))
			}
		}
	}
}

// retentionSweepFraction is how often, relative to the retention period
// itself, the Sweeper polls: frequently enough that expired files are
// cleared promptly without polling far more than the period could ever
// change.
const retentionSweepFraction = 10

func (e *Exporter) runRetention(ctx context.Context, s *retention.Sweeper, period time.Duration) {
	defer e.wg.Done()
	interval := period / retentionSweepFraction
	if interval < time.Second {
		interval = time.Second
	}
	s.Run(ctx, interval)
}

func (e *Exporter) drainTraces(ctx context.Context) error {
	spans := e.traceBuffer.Drain()
	if len(spans) == 0 {
		return nil
	}

	rec, dropped, err := e.codec.SpansToColumnar(spans)
	if err != nil {
		e.stats.WriteErrors.Add(1)
		return werror.WrapWithMsg(err, "encode trace batch")
	}
	defer rec.Release()
	if dropped > 0 {
		e.stats.WriteErrors.Add(uint64(dropped))
	}

	rotated, err := e.traceWriter.Write(rec)
	if err != nil {
		e.stats.WriteErrors.Add(1)
		return werror.WrapWithMsg(err, "write trace batch")
	}
	e.stats.Written.Add(uint64(rec.NumRows()))
	if rotated {
		e.stats.FilesRotated.Add(1)
	}

	if e.forwarder != nil {
		if err := e.forwarder.ForwardTraces(ctx, spans); err != nil {
			e.logger.Debug("exporter: trace forward skipped or failed", zap.Error(err))
		}
	}
	return nil
}

func (e *Exporter) drainMetrics(ctx context.Context) error {
	reqs := e.metricBuffer.Drain()
	if len(reqs) == 0 {
		return nil
	}

	var firstErr error
	for _, mr := range reqs {
		rec, err := e.codec.MetricsRequestToColumnar(mr)
		if err != nil {
			e.stats.WriteErrors.Add(1)
			if firstErr == nil {
				firstErr = werror.WrapWithMsg(err, "encode metric request")
			}
			continue
		}

		rotated, err := e.metricWriter.Write(rec)
		rec.Release()
		if err != nil {
			e.stats.WriteErrors.Add(1)
			if firstErr == nil {
				firstErr = werror.WrapWithMsg(err, "write metric batch")
			}
			continue
		}
		e.stats.Written.Add(1)
		if rotated {
			e.stats.FilesRotated.Add(1)
		}

		if e.forwarder != nil {
			if err := e.forwarder.ForwardMetricRequest(ctx, mr); err != nil {
				e.logger.Debug("exporter: metric forward skipped or failed", zap.Error(err))
			}
		}
	}
	return firstErr
}
