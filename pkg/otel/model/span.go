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

// Package model holds the logical data types ingest front-ends hand to the
// Exporter (§3): SpanRecord and MetricRequest. These are the "decoded"
// side of the Format Codec; MetricRequest deliberately keeps the original
// line-protocol bytes instead of decoding eagerly (§4.2).
package model

import "fmt"

// Kind is a span's OTLP SpanKind.
type Kind int

const (
	KindUnspecified Kind = iota
	KindInternal
	KindServer
	KindClient
	KindProducer
	KindConsumer
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindProducer:
		return "producer"
	case KindConsumer:
		return "consumer"
	default:
		return "unspecified"
	}
}

// StatusCode is a span's OTLP status code.
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unset"
	}
}

// Status carries a span's status code and optional message.
type Status struct {
	Code    StatusCode
	Message string
}

// ValueType tags the scalar/composite kinds AttributeValue can hold (§4.2
// "Attribute value types preserved").
type ValueType int

const (
	ValueString ValueType = iota
	ValueBool
	ValueInt64
	ValueFloat64
	ValueBytes
	ValueArray
	ValueMap
)

// AttributeValue is a tagged union over the attribute value types the
// codec must preserve without loss.
type AttributeValue struct {
	Type ValueType

	Str   string
	Bool  bool
	Int   int64
	Float float64
	Bytes []byte
	Array []AttributeValue
	Map   map[string]AttributeValue
}

func StringValue(v string) AttributeValue    { return AttributeValue{Type: ValueString, Str: v} }
func BoolValue(v bool) AttributeValue        { return AttributeValue{Type: ValueBool, Bool: v} }
func IntValue(v int64) AttributeValue        { return AttributeValue{Type: ValueInt64, Int: v} }
func FloatValue(v float64) AttributeValue    { return AttributeValue{Type: ValueFloat64, Float: v} }
func BytesValue(v []byte) AttributeValue     { return AttributeValue{Type: ValueBytes, Bytes: v} }
func ArrayValue(v []AttributeValue) AttributeValue {
	return AttributeValue{Type: ValueArray, Array: v}
}
func MapValue(v map[string]AttributeValue) AttributeValue {
	return AttributeValue{Type: ValueMap, Map: v}
}

// Equal reports deep value equality, used by round-trip tests (§8.8).
func (v AttributeValue) Equal(o AttributeValue) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case ValueString:
		return v.Str == o.Str
	case ValueBool:
		return v.Bool == o.Bool
	case ValueInt64:
		return v.Int == o.Int
	case ValueFloat64:
		return v.Float == o.Float
	case ValueBytes:
		if len(v.Bytes) != len(o.Bytes) {
			return false
		}
		for i := range v.Bytes {
			if v.Bytes[i] != o.Bytes[i] {
				return false
			}
		}
		return true
	case ValueArray:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	case ValueMap:
		if len(v.Map) != len(o.Map) {
			return false
		}
		for k, mv := range v.Map {
			ov, ok := o.Map[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Attributes is an ordered-key-insensitive string-keyed map; Go maps
// already enforce key uniqueness (§3).
type Attributes map[string]AttributeValue

// SpanEvent is a timestamped annotation on a span.
type SpanEvent struct {
	Name       string
	TimeUnixNano int64
	Attributes Attributes
}

// SpanLink references another span, optionally in a different trace.
type SpanLink struct {
	TraceID    [16]byte
	SpanID     [8]byte
	Attributes Attributes
}

// SpanRecord is the logical span shape ingest front-ends decode into
// before calling Exporter.export_traces (§3).
type SpanRecord struct {
	TraceID      [16]byte
	SpanID       [8]byte
	ParentSpanID *[8]byte // nil means no parent

	Name        string
	Kind        Kind
	Status      Status
	ServiceName string

	StartTimeUnixNano int64
	EndTimeUnixNano   int64

	Attributes Attributes
	Events     []SpanEvent
	Links      []SpanLink
}

// Validate enforces the start<=end invariant (§3).
func (s SpanRecord) Validate() error {
	if s.StartTimeUnixNano > s.EndTimeUnixNano {
		return fmt.Errorf("span %x: start_time %d > end_time %d", s.SpanID, s.StartTimeUnixNano, s.EndTimeUnixNano)
	}
	return nil
}
