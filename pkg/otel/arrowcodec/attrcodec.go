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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/otelpipe/otlp-engine/pkg/otel/model"
	"github.com/otelpipe/otlp-engine/pkg/werror"
)

// This file implements a small self-describing binary encoding for
// model.AttributeValue trees (and the SpanEvent/SpanLink lists that
// carry them), used as the payload of the attributes/events/links Arrow
// Binary columns (schema.go). JSON cannot represent the string/bool/
// int64/float64/bytes distinction losslessly (§4.2 "loss of type
// fidelity is a bug" — JSON has one numeric type), so a tagged
// length-prefixed encoding is used instead.

type valueTag byte

const (
	tagString valueTag = iota
	tagBool
	tagInt64
	tagFloat64
	tagBytes
	tagArray
	tagMap
)

func encodeAttributes(attrs model.Attributes) []byte {
	var buf []byte
	buf = appendUvarint(buf, uint64(len(attrs)))
	for k, v := range attrs {
		buf = appendString(buf, k)
		buf = encodeValue(buf, v)
	}
	return buf
}

func decodeAttributes(b []byte) (model.Attributes, error) {
	if len(b) == 0 {
		return nil, nil
	}
	attrs, _, err := decodeAttributesPrefix(b)
	if err != nil {
		return nil, werror.WrapWithMsg(err, "attributes")
	}
	return attrs, nil
}

func encodeValue(buf []byte, v model.AttributeValue) []byte {
	switch v.Type {
	case model.ValueString:
		buf = append(buf, byte(tagString))
		buf = appendString(buf, v.Str)
	case model.ValueBool:
		buf = append(buf, byte(tagBool))
		if v.Bool {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case model.ValueInt64:
		buf = append(buf, byte(tagInt64))
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v.Int))
		buf = append(buf, tmp[:]...)
	case model.ValueFloat64:
		buf = append(buf, byte(tagFloat64))
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v.Float))
		buf = append(buf, tmp[:]...)
	case model.ValueBytes:
		buf = append(buf, byte(tagBytes))
		buf = appendBytes(buf, v.Bytes)
	case model.ValueArray:
		buf = append(buf, byte(tagArray))
		buf = appendUvarint(buf, uint64(len(v.Array)))
		for _, el := range v.Array {
			buf = encodeValue(buf, el)
		}
	case model.ValueMap:
		buf = append(buf, byte(tagMap))
		buf = appendUvarint(buf, uint64(len(v.Map)))
		for k, el := range v.Map {
			buf = appendString(buf, k)
			buf = encodeValue(buf, el)
		}
	}
	return buf
}

func decodeValue(b []byte) (model.AttributeValue, []byte, error) {
	if len(b) == 0 {
		return model.AttributeValue{}, nil, fmt.Errorf("attrcodec: unexpected end of buffer")
	}
	tag := valueTag(b[0])
	b = b[1:]
	switch tag {
	case tagString:
		s, rest, err := readString(b)
		return model.StringValue(s), rest, err
	case tagBool:
		if len(b) < 1 {
			return model.AttributeValue{}, nil, fmt.Errorf("attrcodec: truncated bool")
		}
		return model.BoolValue(b[0] != 0), b[1:], nil
	case tagInt64:
		if len(b) < 8 {
			return model.AttributeValue{}, nil, fmt.Errorf("attrcodec: truncated int64")
		}
		return model.IntValue(int64(binary.BigEndian.Uint64(b[:8]))), b[8:], nil
	case tagFloat64:
		if len(b) < 8 {
			return model.AttributeValue{}, nil, fmt.Errorf("attrcodec: truncated float64")
		}
		return model.FloatValue(math.Float64frombits(binary.BigEndian.Uint64(b[:8]))), b[8:], nil
	case tagBytes:
		bs, rest, err := readBytes(b)
		return model.BytesValue(bs), rest, err
	case tagArray:
		n, rest, err := readUvarint(b)
		if err != nil {
			return model.AttributeValue{}, nil, err
		}
		arr := make([]model.AttributeValue, 0, n)
		for i := uint64(0); i < n; i++ {
			var el model.AttributeValue
			el, rest, err = decodeValue(rest)
			if err != nil {
				return model.AttributeValue{}, nil, err
			}
			arr = append(arr, el)
		}
		return model.ArrayValue(arr), rest, nil
	case tagMap:
		n, rest, err := readUvarint(b)
		if err != nil {
			return model.AttributeValue{}, nil, err
		}
		m := make(map[string]model.AttributeValue, n)
		for i := uint64(0); i < n; i++ {
			var key string
			key, rest, err = readString(rest)
			if err != nil {
				return model.AttributeValue{}, nil, err
			}
			var el model.AttributeValue
			el, rest, err = decodeValue(rest)
			if err != nil {
				return model.AttributeValue{}, nil, err
			}
			m[key] = el
		}
		return model.MapValue(m), rest, nil
	default:
		return model.AttributeValue{}, nil, fmt.Errorf("attrcodec: unknown value tag %d", tag)
	}
}

func encodeEvents(events []model.SpanEvent) []byte {
	var buf []byte
	buf = appendUvarint(buf, uint64(len(events)))
	for _, e := range events {
		buf = appendString(buf, e.Name)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(e.TimeUnixNano))
		buf = append(buf, tmp[:]...)
		buf = append(buf, encodeAttributes(e.Attributes)...)
	}
	return buf
}

func decodeEvents(b []byte) ([]model.SpanEvent, error) {
	if len(b) == 0 {
		return nil, nil
	}
	n, b, err := readUvarint(b)
	if err != nil {
		return nil, werror.WrapWithMsg(err, "events: count")
	}
	out := make([]model.SpanEvent, 0, n)
	for i := uint64(0); i < n; i++ {
		var name string
		name, b, err = readString(b)
		if err != nil {
			return nil, werror.WrapWithMsg(err, "events: name")
		}
		if len(b) < 8 {
			return nil, fmt.Errorf("events: truncated timestamp")
		}
		ts := int64(binary.BigEndian.Uint64(b[:8]))
		b = b[8:]
		var attrs model.Attributes
		attrs, b, err = decodeAttributesPrefix(b)
		if err != nil {
			return nil, werror.WrapWithMsg(err, "events: attributes")
		}
		out = append(out, model.SpanEvent{Name: name, TimeUnixNano: ts, Attributes: attrs})
	}
	return out, nil
}

func encodeLinks(links []model.SpanLink) []byte {
	var buf []byte
	buf = appendUvarint(buf, uint64(len(links)))
	for _, l := range links {
		buf = append(buf, l.TraceID[:]...)
		buf = append(buf, l.SpanID[:]...)
		buf = append(buf, encodeAttributes(l.Attributes)...)
	}
	return buf
}

func decodeLinks(b []byte) ([]model.SpanLink, error) {
	if len(b) == 0 {
		return nil, nil
	}
	n, b, err := readUvarint(b)
	if err != nil {
		return nil, werror.WrapWithMsg(err, "links: count")
	}
	out := make([]model.SpanLink, 0, n)
	for i := uint64(0); i < n; i++ {
		if len(b) < 24 {
			return nil, fmt.Errorf("links: truncated id pair")
		}
		var l model.SpanLink
		copy(l.TraceID[:], b[:16])
		copy(l.SpanID[:], b[16:24])
		b = b[24:]
		l.Attributes, b, err = decodeAttributesPrefix(b)
		if err != nil {
			return nil, werror.WrapWithMsg(err, "links: attributes")
		}
		out = append(out, l)
	}
	return out, nil
}

// decodeAttributesPrefix decodes one encodeAttributes block from the
// front of b and returns the remaining bytes, for use inside the
// events/links decoders which are themselves prefix-based.
func decodeAttributesPrefix(b []byte) (model.Attributes, []byte, error) {
	n, b, err := readUvarint(b)
	if err != nil {
		return nil, nil, err
	}
	out := make(model.Attributes, n)
	for i := uint64(0); i < n; i++ {
		var key string
		key, b, err = readString(b)
		if err != nil {
			return nil, nil, err
		}
		var val model.AttributeValue
		val, b, err = decodeValue(b)
		if err != nil {
			return nil, nil, err
		}
		out[key] = val
	}
	return out, b, nil
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func readUvarint(b []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, nil, fmt.Errorf("attrcodec: malformed varint")
	}
	return v, b[n:], nil
}

func appendString(buf []byte, s string) []byte {
	return appendBytes(buf, []byte(s))
}

func readString(b []byte) (string, []byte, error) {
	bs, rest, err := readBytes(b)
	if err != nil {
		return "", nil, err
	}
	return string(bs), rest, nil
}

func appendBytes(buf []byte, v []byte) []byte {
	buf = appendUvarint(buf, uint64(len(v)))
	return append(buf, v...)
}

func readBytes(b []byte) ([]byte, []byte, error) {
	n, b, err := readUvarint(b)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(b)) < n {
		return nil, nil, fmt.Errorf("attrcodec: truncated bytes field (need %d, have %d)", n, len(b))
	}
	return b[:n], b[n:], nil
}
