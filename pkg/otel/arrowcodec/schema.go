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

// Package arrowcodec implements the Format Codec (§4.2): lossless
// mediation between the line-protocol encoded request form and the
// columnar Arrow record-batch form, plus streaming-blob
// serialization/append.
//
// Unlike the teacher's pkg/otel/traces/arrow (which builds a
// dictionary-encoded, adaptively-optimized multi-record related-data
// graph via AdaptiveSchema/RelatedData), this codec targets spec.md's
// fixed, flat, per-kind schema: one arrow.Schema for traces, one for
// metrics, each stable across a run so a streaming reader can decode any
// suffix of a file against the header alone (§3 RecordBatch invariant).
package arrowcodec

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/otelpipe/otlp-engine/pkg/otel/constants"
)

// TraceSchemaVersion/MetricSchemaVersion are bumped whenever a column is
// added or removed (§4.2: "adding a column is a breaking change... must
// bump a schema version field").
const (
	TraceSchemaVersion  = "1"
	MetricSchemaVersion = "1"
)

// TraceSchema is the fixed Arrow schema for the trace RecordBatch (§4.2
// "Operations" lists its exact column set).
var TraceSchema = arrow.NewSchema(
	[]arrow.Field{
		{Name: constants.TraceID, Type: &arrow.FixedSizeBinaryType{ByteWidth: 16}},
		{Name: constants.SpanID, Type: &arrow.FixedSizeBinaryType{ByteWidth: 8}},
		{Name: constants.ParentSpanID, Type: &arrow.FixedSizeBinaryType{ByteWidth: 8}, Nullable: true},
		{Name: constants.Name, Type: arrow.BinaryTypes.String},
		{Name: constants.Kind, Type: arrow.PrimitiveTypes.Uint8},
		{Name: constants.ServiceName, Type: arrow.BinaryTypes.String},
		{Name: constants.StatusCode, Type: arrow.PrimitiveTypes.Uint8},
		{Name: constants.StatusMessage, Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: constants.StartTimeUnixNano, Type: arrow.PrimitiveTypes.Int64},
		{Name: constants.EndTimeUnixNano, Type: arrow.PrimitiveTypes.Int64},
		// attributes/events/links hold this engine's self-describing
		// binary encoding (attrcodec.go) rather than a nested Arrow
		// struct/list tree, so arbitrary attribute nesting (§3: "nested
		// map") round-trips without needing a recursive Arrow type.
		{Name: constants.Attributes, Type: arrow.BinaryTypes.Binary, Nullable: true},
		{Name: constants.Events, Type: arrow.BinaryTypes.Binary, Nullable: true},
		{Name: constants.Links, Type: arrow.BinaryTypes.Binary, Nullable: true},
	},
	nil,
)

// MetricSchema is the fixed Arrow schema for the metric RecordBatch. Per
// §4.2, when the original line-protocol request is available the
// persistence path stores it as a single opaque column rather than
// decoding/re-encoding it (avoids lossy reconstruction); ResourceCount
// and MetricCount are small denormalized columns so a columnar-only
// reader can report shape without decoding the payload.
var MetricSchema = arrow.NewSchema(
	[]arrow.Field{
		{Name: constants.MetricPayload, Type: arrow.BinaryTypes.Binary},
		{Name: constants.MetricResourceCount, Type: arrow.PrimitiveTypes.Int64},
		{Name: constants.MetricCount, Type: arrow.PrimitiveTypes.Int64},
	},
	nil,
)

func init() {
	TraceSchema = withSchemaVersion(TraceSchema, TraceSchemaVersion)
	MetricSchema = withSchemaVersion(MetricSchema, MetricSchemaVersion)
}

func withSchemaVersion(s *arrow.Schema, version string) *arrow.Schema {
	md := arrow.NewMetadata([]string{constants.SchemaVersionKey}, []string{version})
	return arrow.NewSchema(s.Fields(), &md)
}

// SchemaVersion reads the schema-version metadata key back off a schema,
// used by the reverse codec to reject batches from an incompatible
// writer (§4.2).
func SchemaVersion(s *arrow.Schema) (string, bool) {
	md := s.Metadata()
	idx := md.FindKey(constants.SchemaVersionKey)
	if idx < 0 {
		return "", false
	}
	return md.Values()[idx], true
}
