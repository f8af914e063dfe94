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

// Package constants holds the column names shared by the trace and metric
// Arrow schemas, and the schema-version metadata key used to detect
// incompatible readers.
package constants

const (
	TraceID       string = "trace_id"
	SpanID        string = "span_id"
	ParentSpanID  string = "parent_span_id"
	Name          string = "name"
	Kind          string = "kind"
	ServiceName   string = "service_name"
	StatusCode    string = "status_code"
	StatusMessage string = "status_message"

	StartTimeUnixNano string = "start_time_unix_nano"
	EndTimeUnixNano   string = "end_time_unix_nano"

	Attributes string = "attributes"
	Events     string = "events"
	Links      string = "links"

	// MetricPayload is the column holding the original line-protocol encoded
	// metric export request, kept opaque to avoid lossy re-encoding.
	MetricPayload string = "payload"
	// MetricResourceCount/MetricCount are small metadata columns recorded
	// alongside the opaque payload so a columnar-only reader can report
	// shape without decoding the payload.
	MetricResourceCount string = "resource_count"
	MetricCount         string = "metric_count"

	// SchemaVersionKey is the schema metadata key carrying the integer
	// schema version. Bumped whenever a column is added or removed.
	SchemaVersionKey string = "schema_version"
)
