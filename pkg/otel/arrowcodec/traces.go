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

package arrowcodec

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/otelpipe/otlp-engine/pkg/otel/model"
	"github.com/otelpipe/otlp-engine/pkg/werror"
)

// ErrUnsupportedAttributeType is returned by the codec when an
// AttributeValue carries a Type this engine does not know about; the
// offending item is dropped and the rest of the batch proceeds (§7
// Codec error kind).
var ErrUnsupportedAttributeType = fmt.Errorf("arrowcodec: unsupported attribute value type")

// ErrUnknownSchemaVersion is returned when decoding a RecordBatch whose
// schema-version metadata this codec does not recognize (§4.2).
var ErrUnknownSchemaVersion = fmt.Errorf("arrowcodec: unknown schema version")

// Codec converts between model.SpanRecord/model.MetricRequest and Arrow
// RecordBatches. It holds only an allocator; it is safe for concurrent
// use (array builders are not shared across calls).
type Codec struct {
	Pool memory.Allocator
}

// New returns a Codec using the Go heap allocator, matching the
// teacher's config.DefaultConfig() choice of memory.NewGoAllocator().
func New() *Codec {
	return &Codec{Pool: memory.NewGoAllocator()}
}

// SpansToColumnar builds a RecordBatch from a sequence of SpanRecords
// using the fixed TraceSchema (§4.2). Spans are appended in order;
// validation failures (start_time > end_time) drop the offending span
// and let the rest of the batch proceed (§7 Codec error policy) — the
// caller can inspect the returned dropped count.
func (c *Codec) SpansToColumnar(spans []model.SpanRecord) (arrow.Record, int, error) {
	b := array.NewRecordBuilder(c.Pool, TraceSchema)
	defer b.Release()

	traceIDB := b.Field(0).(*array.FixedSizeBinaryBuilder)
	spanIDB := b.Field(1).(*array.FixedSizeBinaryBuilder)
	parentIDB := b.Field(2).(*array.FixedSizeBinaryBuilder)
	nameB := b.Field(3).(*array.StringBuilder)
	kindB := b.Field(4).(*array.Uint8Builder)
	serviceB := b.Field(5).(*array.StringBuilder)
	statusCodeB := b.Field(6).(*array.Uint8Builder)
	statusMsgB := b.Field(7).(*array.StringBuilder)
	startB := b.Field(8).(*array.Int64Builder)
	endB := b.Field(9).(*array.Int64Builder)
	attrsB := b.Field(10).(*array.BinaryBuilder)
	eventsB := b.Field(11).(*array.BinaryBuilder)
	linksB := b.Field(12).(*array.BinaryBuilder)

	dropped := 0
	for _, s := range spans {
		if err := s.Validate(); err != nil {
			dropped++
			continue
		}

		traceIDB.Append(s.TraceID[:])
		spanIDB.Append(s.SpanID[:])
		if s.ParentSpanID != nil {
			parentIDB.Append(s.ParentSpanID[:])
		} else {
			parentIDB.AppendNull()
		}
		nameB.Append(s.Name)
		kindB.Append(uint8(s.Kind))
		serviceB.Append(s.ServiceName)
		statusCodeB.Append(uint8(s.Status.Code))
		if s.Status.Message != "" {
			statusMsgB.Append(s.Status.Message)
		} else {
			statusMsgB.AppendNull()
		}
		startB.Append(s.StartTimeUnixNano)
		endB.Append(s.EndTimeUnixNano)

		if len(s.Attributes) > 0 {
			attrsB.Append(encodeAttributes(s.Attributes))
		} else {
			attrsB.AppendNull()
		}
		if len(s.Events) > 0 {
			eventsB.Append(encodeEvents(s.Events))
		} else {
			eventsB.AppendNull()
		}
		if len(s.Links) > 0 {
			linksB.Append(encodeLinks(s.Links))
		} else {
			linksB.AppendNull()
		}
	}

	return b.NewRecord(), dropped, nil
}

// ColumnarToSpans is the reverse of SpansToColumnar; round-tripping
// SpansToColumnar . ColumnarToSpans must reproduce every field of the
// original SpanRecord without loss (§8.8).
func (c *Codec) ColumnarToSpans(rec arrow.Record) ([]model.SpanRecord, error) {
	if err := checkSchemaVersion(rec.Schema(), TraceSchemaVersion); err != nil {
		return nil, err
	}

	traceIDCol, ok := rec.Column(0).(*array.FixedSizeBinary)
	if !ok {
		return nil, werror.Wrap(fmt.Errorf("arrowcodec: column 0 is not FixedSizeBinary"))
	}
	spanIDCol := rec.Column(1).(*array.FixedSizeBinary)
	parentIDCol := rec.Column(2).(*array.FixedSizeBinary)
	nameCol := rec.Column(3).(*array.String)
	kindCol := rec.Column(4).(*array.Uint8)
	serviceCol := rec.Column(5).(*array.String)
	statusCodeCol := rec.Column(6).(*array.Uint8)
	statusMsgCol := rec.Column(7).(*array.String)
	startCol := rec.Column(8).(*array.Int64)
	endCol := rec.Column(9).(*array.Int64)
	attrsCol := rec.Column(10).(*array.Binary)
	eventsCol := rec.Column(11).(*array.Binary)
	linksCol := rec.Column(12).(*array.Binary)

	n := int(rec.NumRows())
	out := make([]model.SpanRecord, 0, n)
	for i := 0; i < n; i++ {
		var s model.SpanRecord
		copy(s.TraceID[:], traceIDCol.Value(i))
		copy(s.SpanID[:], spanIDCol.Value(i))
		if !parentIDCol.IsNull(i) {
			var p [8]byte
			copy(p[:], parentIDCol.Value(i))
			s.ParentSpanID = &p
		}
		s.Name = nameCol.Value(i)
		s.Kind = model.Kind(kindCol.Value(i))
		s.ServiceName = serviceCol.Value(i)
		s.Status.Code = model.StatusCode(statusCodeCol.Value(i))
		if !statusMsgCol.IsNull(i) {
			s.Status.Message = statusMsgCol.Value(i)
		}
		s.StartTimeUnixNano = startCol.Value(i)
		s.EndTimeUnixNano = endCol.Value(i)

		if !attrsCol.IsNull(i) {
			attrs, err := decodeAttributes(attrsCol.Value(i))
			if err != nil {
				return nil, werror.WrapWithMsgf(err, "span %x attributes", s.SpanID)
			}
			s.Attributes = attrs
		}
		if !eventsCol.IsNull(i) {
			events, err := decodeEvents(eventsCol.Value(i))
			if err != nil {
				return nil, werror.WrapWithMsgf(err, "span %x events", s.SpanID)
			}
			s.Events = events
		}
		if !linksCol.IsNull(i) {
			links, err := decodeLinks(linksCol.Value(i))
			if err != nil {
				return nil, werror.WrapWithMsgf(err, "span %x links", s.SpanID)
			}
			s.Links = links
		}

		out = append(out, s)
	}
	return out, nil
}

func checkSchemaVersion(s *arrow.Schema, want string) error {
	got, ok := SchemaVersion(s)
	if !ok || got != want {
		return werror.WrapWithMsgf(ErrUnknownSchemaVersion, "got %q want %q", got, want)
	}
	return nil
}
