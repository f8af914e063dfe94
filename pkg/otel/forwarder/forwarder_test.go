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

package forwarder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/otelpipe/otlp-engine/pkg/config"
	"github.com/otelpipe/otlp-engine/pkg/otel/breaker"
	"github.com/otelpipe/otlp-engine/pkg/otel/model"
	"github.com/otelpipe/otlp-engine/pkg/otel/stats"
)

func baseForwardingConfig(endpoint string) config.ForwardingConfig {
	return config.ForwardingConfig{
		Enabled:          true,
		EndpointURL:      endpoint,
		TargetProtocol:   config.LineProto,
		Auth:             config.AuthConfig{Kind: config.AuthNone},
		DispatchTimeout:  2 * time.Second,
		ShutdownDeadline: 2 * time.Second,
		FailureThreshold: 2,
		OpenDuration:     50 * time.Millisecond,
	}
}

func sampleSpans() []model.SpanRecord {
	return []model.SpanRecord{{
		TraceID:           [16]byte{1},
		SpanID:            [8]byte{2},
		Name:              "op",
		ServiceName:       "svc",
		StartTimeUnixNano: 1,
		EndTimeUnixNano:   2,
	}}
}

func TestForwardTracesSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f, err := New(baseForwardingConfig(srv.URL), zap.NewNop(), &stats.Counters{})
	require.NoError(t, err)
	defer f.Close()

	err = f.ForwardTraces(context.Background(), sampleSpans())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestForwardTracesBreakerOpensThenProbes(t *testing.T) {
	var calls atomic.Int32
	var failUntil atomic.Int32
	failUntil.Store(2) // first two calls fail, then succeed
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= failUntil.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := baseForwardingConfig(srv.URL)
	f, err := New(cfg, zap.NewNop(), &stats.Counters{})
	require.NoError(t, err)
	defer f.Close()

	// Two failures trip the breaker open (FailureThreshold=2).
	assert.Error(t, f.ForwardTraces(context.Background(), sampleSpans()))
	assert.Error(t, f.ForwardTraces(context.Background(), sampleSpans()))

	// While open, further attempts are skipped without hitting the server.
	err = f.ForwardTraces(context.Background(), sampleSpans())
	assert.ErrorIs(t, err, ErrSkipped)
	assert.Equal(t, int32(2), calls.Load(), "skipped attempt must not reach the server")

	time.Sleep(cfg.OpenDuration + 20*time.Millisecond)

	// The next attempt is the probe; the server now returns 200.
	err = f.ForwardTraces(context.Background(), sampleSpans())
	assert.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	// Breaker is closed again; subsequent calls are admitted normally.
	require.NoError(t, f.ForwardTraces(context.Background(), sampleSpans()))
}

func TestForwardMetricRequestLineProto(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "application/x-protobuf", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f, err := New(baseForwardingConfig(srv.URL), zap.NewNop(), &stats.Counters{})
	require.NoError(t, err)
	defer f.Close()

	err = f.ForwardMetricRequest(context.Background(), model.NewMetricRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestColumnarTargetRejectsGRPCEndpoint(t *testing.T) {
	cfg := baseForwardingConfig("grpc://localhost:4317")
	cfg.TargetProtocol = config.Columnar
	_, err := New(cfg, zap.NewNop(), &stats.Counters{})
	assert.Error(t, err)
}

func TestForwardTracesColumnarDispatchesArrowBlob(t *testing.T) {
	var gotContentType, gotPath string
	var bodyLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		buf := make([]byte, 0, 1024)
		n, _ := r.Body.Read(buf[:cap(buf)])
		bodyLen = n
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := baseForwardingConfig(srv.URL)
	cfg.TargetProtocol = config.Columnar
	f, err := New(cfg, zap.NewNop(), &stats.Counters{})
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.ForwardTraces(context.Background(), sampleSpans()))
	assert.Equal(t, "/v1/traces/columnar", gotPath)
	assert.Equal(t, "application/vnd.arrow.stream", gotContentType)
	assert.Greater(t, bodyLen, 0)
}

func TestForwardMetricRequestColumnarCodecErrorDoesNotTouchBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := baseForwardingConfig(srv.URL)
	cfg.TargetProtocol = config.Columnar
	f, err := New(cfg, zap.NewNop(), &stats.Counters{})
	require.NoError(t, err)
	defer f.Close()

	// Raw bytes that do not decode as a valid ExportMetricsServiceRequest
	// (field number 0 is an illegal protobuf tag), forcing
	// MetricsRequestToColumnar's ResourceCount/Decode call to fail before
	// any dispatch is attempted.
	malformed := model.NewMetricRequest([]byte{0x00})

	err = f.ForwardMetricRequest(context.Background(), malformed)
	require.Error(t, err)
	assert.Equal(t, int32(0), calls.Load(), "a codec failure must never reach the transport")

	snap := f.breaker.Snapshot()
	assert.Equal(t, breaker.Closed, snap.State)
	assert.Equal(t, 0, snap.Failures, "a local codec error must not count as a breaker failure")
}

func TestAuthHeadersAttachedOverHTTP(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := baseForwardingConfig(srv.URL)
	cfg.Auth = config.AuthConfig{Kind: config.AuthBearer, Token: config.NewSecret("s3cr3t")}
	f, err := New(cfg, zap.NewNop(), &stats.Counters{})
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.ForwardTraces(context.Background(), sampleSpans()))
	assert.Equal(t, "Bearer s3cr3t", gotAuth)
}
