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
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/otelpipe/otlp-engine/pkg/otel/model"
)

// spansToResourceSpans groups a flat slice of SpanRecord by ServiceName
// into the line-protocol ResourceSpans shape the Forwarder dispatches
// over the wire (§4.6: forwarding converts to the target protocol when
// it differs from the Exporter's native in-memory form).
func spansToResourceSpans(spans []model.SpanRecord) []*tracepb.ResourceSpans {
	byService := make(map[string][]*tracepb.Span)
	order := make([]string, 0)
	for _, s := range spans {
		if _, ok := byService[s.ServiceName]; !ok {
			order = append(order, s.ServiceName)
		}
		byService[s.ServiceName] = append(byService[s.ServiceName], spanToProto(s))
	}

	out := make([]*tracepb.ResourceSpans, 0, len(order))
	for _, svc := range order {
		out = append(out, &tracepb.ResourceSpans{
			Resource: &resourcepb.Resource{
				Attributes: []*commonpb.KeyValue{stringKV("service.name", svc)},
			},
			ScopeSpans: []*tracepb.ScopeSpans{
				{Spans: byService[svc]},
			},
		})
	}
	return out
}

func spanToProto(s model.SpanRecord) *tracepb.Span {
	p := &tracepb.Span{
		TraceId:           s.TraceID[:],
		SpanId:            s.SpanID[:],
		Name:              s.Name,
		Kind:              kindToProto(s.Kind),
		StartTimeUnixNano: uint64(s.StartTimeUnixNano),
		EndTimeUnixNano:   uint64(s.EndTimeUnixNano),
		Status: &tracepb.Status{
			Code:    statusCodeToProto(s.Status.Code),
			Message: s.Status.Message,
		},
		Attributes: attributesToProto(s.Attributes),
	}
	if s.ParentSpanID != nil {
		p.ParentSpanId = s.ParentSpanID[:]
	}
	for _, e := range s.Events {
		p.Events = append(p.Events, &tracepb.Span_Event{
			Name:         e.Name,
			TimeUnixNano: uint64(e.TimeUnixNano),
			Attributes:   attributesToProto(e.Attributes),
		})
	}
	for _, l := range s.Links {
		p.Links = append(p.Links, &tracepb.Span_Link{
			TraceId:    l.TraceID[:],
			SpanId:     l.SpanID[:],
			Attributes: attributesToProto(l.Attributes),
		})
	}
	return p
}

func kindToProto(k model.Kind) tracepb.Span_SpanKind {
	switch k {
	case model.KindInternal:
		return tracepb.Span_SPAN_KIND_INTERNAL
	case model.KindServer:
		return tracepb.Span_SPAN_KIND_SERVER
	case model.KindClient:
		return tracepb.Span_SPAN_KIND_CLIENT
	case model.KindProducer:
		return tracepb.Span_SPAN_KIND_PRODUCER
	case model.KindConsumer:
		return tracepb.Span_SPAN_KIND_CONSUMER
	default:
		return tracepb.Span_SPAN_KIND_UNSPECIFIED
	}
}

func statusCodeToProto(c model.StatusCode) tracepb.Status_StatusCode {
	switch c {
	case model.StatusOK:
		return tracepb.Status_STATUS_CODE_OK
	case model.StatusError:
		return tracepb.Status_STATUS_CODE_ERROR
	default:
		return tracepb.Status_STATUS_CODE_UNSET
	}
}

func attributesToProto(attrs model.Attributes) []*commonpb.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]*commonpb.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		out = append(out, &commonpb.KeyValue{Key: k, Value: valueToProto(v)})
	}
	return out
}

func valueToProto(v model.AttributeValue) *commonpb.AnyValue {
	switch v.Type {
	case model.ValueString:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v.Str}}
	case model.ValueBool:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: v.Bool}}
	case model.ValueInt64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: v.Int}}
	case model.ValueFloat64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: v.Float}}
	case model.ValueBytes:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BytesValue{BytesValue: v.Bytes}}
	case model.ValueArray:
		vals := make([]*commonpb.AnyValue, 0, len(v.Array))
		for _, el := range v.Array {
			vals = append(vals, valueToProto(el))
		}
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_ArrayValue{ArrayValue: &commonpb.ArrayValue{Values: vals}}}
	case model.ValueMap:
		kvs := make([]*commonpb.KeyValue, 0, len(v.Map))
		for k, el := range v.Map {
			kvs = append(kvs, &commonpb.KeyValue{Key: k, Value: valueToProto(el)})
		}
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_KvlistValue{KvlistValue: &commonpb.KeyValueList{Values: kvs}}}
	default:
		return &commonpb.AnyValue{}
	}
}

func stringKV(k, v string) *commonpb.KeyValue {
	return &commonpb.KeyValue{Key: k, Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v}}}
}
