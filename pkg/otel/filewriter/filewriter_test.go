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

package filewriter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otelpipe/otlp-engine/pkg/otel/arrowcodec"
	"github.com/otelpipe/otlp-engine/pkg/otel/model"
)

func sampleRecord(t *testing.T) arrow.Record {
	t.Helper()
	c := arrowcodec.New()
	rec, dropped, err := c.SpansToColumnar([]model.SpanRecord{
		{
			TraceID:           [16]byte{1},
			SpanID:            [8]byte{2},
			Name:              "op",
			ServiceName:       "svc",
			StartTimeUnixNano: 1,
			EndTimeUnixNano:   2,
		},
	})
	require.NoError(t, err)
	require.Equal(t, 0, dropped)
	return rec
}

func TestWriteCreatesFileUnderKindDir(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, KindTraces, arrowcodec.TraceSchema, 0)
	require.NoError(t, err)
	defer w.Close()

	rec := sampleRecord(t)
	defer rec.Release()

	rotated, err := w.Write(rec)
	require.NoError(t, err)
	assert.False(t, rotated)

	entries, err := os.ReadDir(filepath.Join(dir, "otlp", "traces"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "otlp_traces_")
	assert.Contains(t, entries[0].Name(), ".arrows")
}

func TestWriteRotatesWhenOverMaxSize(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, KindTraces, arrowcodec.TraceSchema, 1)
	require.NoError(t, err)
	defer w.Close()

	rec := sampleRecord(t)
	defer rec.Release()

	_, err = w.Write(rec)
	require.NoError(t, err)

	rotated, err := w.Write(rec)
	require.NoError(t, err)
	assert.True(t, rotated, "second write should rotate since maxFileSize=1 is exceeded after the first write")

	entries, err := os.ReadDir(filepath.Join(dir, "otlp", "traces"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, KindTraces, arrowcodec.TraceSchema, 0)
	require.NoError(t, err)

	rec := sampleRecord(t)
	defer rec.Release()

	_, err = w.Write(rec)
	require.NoError(t, err)
	path := w.CurrentPath()
	require.NoError(t, w.Close())

	result, err := ReadFile(path)
	require.NoError(t, err)
	assert.False(t, result.Truncated)
	require.Len(t, result.Batches, 1)
	assert.Equal(t, rec.NumRows(), result.Batches[0].NumRows())
}

func TestReadFileTruncatedTail(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, KindTraces, arrowcodec.TraceSchema, 0)
	require.NoError(t, err)

	rec := sampleRecord(t)
	defer rec.Release()

	_, err = w.Write(rec)
	require.NoError(t, err)
	path := w.CurrentPath()
	require.NoError(t, w.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-4))

	result, err := ReadFile(path)
	require.NoError(t, err)
	assert.True(t, result.Truncated)
}

func TestOpenedAtFilenamesAreStrictlyIncreasing(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, KindMetrics, arrowcodec.MetricSchema, 1)
	require.NoError(t, err)
	defer w.Close()

	req, err := arrowcodec.New().MetricsRequestToColumnar(model.NewMetricRequest([]byte{0x0a, 0x00}))
	require.NoError(t, err)
	defer req.Release()

	_, err = w.Write(req)
	require.NoError(t, err)
	first := w.CurrentPath()

	time.Sleep(1100 * time.Millisecond)
	_, err = w.Write(req)
	require.NoError(t, err)
	second := w.CurrentPath()

	assert.NotEqual(t, first, second)
	assert.True(t, second > first, "later rotated filename must sort after the earlier one")
}
