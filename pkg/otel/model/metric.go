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

package model

import (
	colmetricpb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	"google.golang.org/protobuf/proto"

	"github.com/otelpipe/otlp-engine/pkg/werror"
)

// MetricRequest is the line-protocol-encoded metric export payload (§3),
// kept in its original encoded form so the buffer/forward path never has
// to round-trip it through a lossy intermediate. Decode is lazy and
// memoized per value: persistence decodes each request once to fill the
// resource/metric count columns, but stores the original bytes as the
// payload rather than a re-encoding.
type MetricRequest struct {
	// Raw is the original wire-encoded ExportMetricsServiceRequest.
	Raw []byte

	decoded *colmetricpb.ExportMetricsServiceRequest
}

// NewMetricRequest wraps an already-encoded request payload.
func NewMetricRequest(raw []byte) MetricRequest {
	return MetricRequest{Raw: append([]byte(nil), raw...)}
}

// FromProto encodes a decoded request into its line-protocol form. Used
// by columnar ingest front-ends (§6) that hand the codec a decoded
// message rather than raw bytes.
func FromProto(req *colmetricpb.ExportMetricsServiceRequest) (MetricRequest, error) {
	raw, err := proto.Marshal(req)
	if err != nil {
		return MetricRequest{}, werror.WrapWithMsg(err, "marshal ExportMetricsServiceRequest")
	}
	return MetricRequest{Raw: raw, decoded: req}, nil
}

// Decode lazily parses Raw into the OTLP proto message, memoizing the
// result. It is the only place in the ingest/buffer/write path that pays
// a decode cost; the columnar codec path calls it (through ResourceCount
// and MetricCount) for every request it persists.
func (m *MetricRequest) Decode() (*colmetricpb.ExportMetricsServiceRequest, error) {
	if m.decoded != nil {
		return m.decoded, nil
	}
	req := &colmetricpb.ExportMetricsServiceRequest{}
	if err := proto.Unmarshal(m.Raw, req); err != nil {
		return nil, werror.WrapWithMsg(err, "unmarshal ExportMetricsServiceRequest")
	}
	m.decoded = req
	return req, nil
}

// ResourceCount reports how many ResourceMetrics entries the request
// carries, decoding only if necessary. Used for the columnar payload's
// metadata columns (§4.2).
func (m *MetricRequest) ResourceCount() (int, error) {
	req, err := m.Decode()
	if err != nil {
		return 0, err
	}
	return len(req.ResourceMetrics), nil
}

// MetricCount reports the total number of individual metrics across all
// resource/scope groups.
func (m *MetricRequest) MetricCount() (int, error) {
	req, err := m.Decode()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, rm := range req.ResourceMetrics {
		for _, sm := range rm.ScopeMetrics {
			n += len(sm.Metrics)
		}
	}
	return n, nil
}
