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

// Package config holds the immutable-after-start Config record consumed by
// the Exporter, along with the ForwardingConfig/Auth/Secret types used by
// the Forwarder.
package config

import (
	"fmt"
	"time"

	"go.opentelemetry.io/collector/config/configcompression"
	"go.opentelemetry.io/collector/config/configgrpc"
	"go.opentelemetry.io/collector/config/configopaque"
	"go.opentelemetry.io/collector/config/configtls"
)

// TargetProtocol selects the wire form the Forwarder dispatches in.
type TargetProtocol int

const (
	LineProto TargetProtocol = iota
	Columnar
)

func (p TargetProtocol) String() string {
	switch p {
	case LineProto:
		return "line_proto"
	case Columnar:
		return "columnar"
	default:
		return "unknown"
	}
}

// AuthKind selects how the Forwarder authenticates to the remote endpoint.
type AuthKind int

const (
	AuthNone AuthKind = iota
	AuthAPIKey
	AuthBearer
	AuthBasic
)

// Secret wraps credential material so it never appears in a default
// Stringer/debug/JSON rendering and can be explicitly zeroed on release.
//
// The value is held as a []byte (not a Go string, which is immutable and
// cannot be overwritten in place) so Zero can actually scrub the backing
// memory rather than merely dropping a reference to it. configopaque.String
// is used alongside Secret wherever a third-party API (e.g. configgrpc
// headers) requires that exact type; Secret is for material this package
// owns end to end.
type Secret struct {
	value []byte
}

// NewSecret wraps a plaintext credential.
func NewSecret(plaintext string) Secret {
	return Secret{value: []byte(plaintext)}
}

// String intentionally does not return the secret; satisfies fmt.Stringer
// so %v/%s formatting of a Secret never leaks material.
func (s Secret) String() string {
	if len(s.value) == 0 {
		return ""
	}
	return "***"
}

// GoString blanks %#v the same way String blanks %v/%s.
func (s Secret) GoString() string {
	return s.String()
}

// Reveal returns the plaintext. Callers must not log or persist the
// result; it exists only for attaching the value to an outbound request.
func (s Secret) Reveal() string {
	return string(s.value)
}

// AsOpaque converts to configopaque.String for APIs (e.g. configgrpc
// header maps) that require that exact type.
func (s Secret) AsOpaque() configopaque.String {
	return configopaque.String(s.value)
}

// IsZero reports whether no credential was set.
func (s Secret) IsZero() bool {
	return len(s.value) == 0
}

// Zero overwrites the backing bytes with zeroes and drops the reference,
// so the credential does not linger in the heap after release.
func (s *Secret) Zero() {
	for i := range s.value {
		s.value[i] = 0
	}
	s.value = nil
}

// AuthConfig is a tagged variant over the four forwarder auth methods.
type AuthConfig struct {
	Kind AuthKind

	APIKey   Secret // AuthAPIKey
	Token    Secret // AuthBearer
	User     string // AuthBasic
	Password Secret // AuthBasic
}

// Zero clears all credential material held by the AuthConfig.
func (a *AuthConfig) Zero() {
	a.APIKey.Zero()
	a.Token.Zero()
	a.Password.Zero()
}

// Validate checks that the declared Kind has the credentials it needs.
func (a AuthConfig) Validate() error {
	switch a.Kind {
	case AuthNone:
		return nil
	case AuthAPIKey:
		if a.APIKey.IsZero() {
			return fmt.Errorf("auth: api_key method declared without a key")
		}
	case AuthBearer:
		if a.Token.IsZero() {
			return fmt.Errorf("auth: bearer method declared without a token")
		}
	case AuthBasic:
		if a.User == "" || a.Password.IsZero() {
			return fmt.Errorf("auth: basic method requires both user and password")
		}
	default:
		return fmt.Errorf("auth: unknown auth kind %d", a.Kind)
	}
	return nil
}

// ForwardingConfig controls the optional best-effort replication path.
type ForwardingConfig struct {
	Enabled        bool
	EndpointURL    string
	TargetProtocol TargetProtocol
	Auth           AuthConfig

	// DispatchTimeout bounds a single forward attempt; exceeding it counts
	// as a circuit-breaker failure (§5 Cancellation & timeouts).
	DispatchTimeout time.Duration

	// ShutdownDeadline bounds how long Exporter.shutdown waits for
	// in-flight dispatches before giving up.
	ShutdownDeadline time.Duration

	// FailureThreshold/OpenDuration parameterize the Circuit Breaker
	// guarding this forwarder.
	FailureThreshold int
	OpenDuration     time.Duration

	// Compression selects the wire compression applied to outbound
	// payloads; configcompression.Zstd is the teacher's default.
	Compression configcompression.CompressionType

	// GRPCClient carries transport tuning for the gRPC dispatch path,
	// reused verbatim from the teacher's exporter factory shape. Only
	// BalancerName, ReadBufferSize, WriteBufferSize, Compression (gzip)
	// and WaitForReady are applied; its keepalive and TLS settings are
	// not used (transport TLS comes from the TLS field below).
	GRPCClient configgrpc.GRPCClientSettings

	// TLS configures the outbound client when EndpointURL is an https://
	// or grpcs:// URL; only InsecureSkipVerify is applied. Transport TLS
	// is otherwise assumed provided (§1 Non-goals); this only applies to
	// traffic the Forwarder itself originates.
	TLS configtls.TLSClientSetting
}

// Validate enforces the ForwardingConfig invariants needed before the
// Forwarder/CircuitBreaker can be constructed.
func (f ForwardingConfig) Validate() error {
	if !f.Enabled {
		return nil
	}
	if f.EndpointURL == "" {
		return fmt.Errorf("forwarding: enabled but endpoint_url is empty")
	}
	if err := f.Auth.Validate(); err != nil {
		return err
	}
	if f.FailureThreshold <= 0 {
		return fmt.Errorf("forwarding: failure_threshold must be > 0, got %d", f.FailureThreshold)
	}
	if f.OpenDuration <= 0 {
		return fmt.Errorf("forwarding: open_duration must be > 0")
	}
	if f.DispatchTimeout <= 0 {
		return fmt.Errorf("forwarding: dispatch_timeout must be > 0")
	}
	return nil
}

// ProtocolsConfig controls which ingest wire protocols are considered
// enabled; the servers themselves are out of this module's scope (§1),
// but the Exporter still validates the declared combination (§3).
type ProtocolsConfig struct {
	LineProtoEnabled bool
	LineProtoPort    int
	ColumnarEnabled  bool
	ColumnarPort     int
}

func (p ProtocolsConfig) Validate() error {
	if !p.LineProtoEnabled && !p.ColumnarEnabled {
		return fmt.Errorf("protocols: at least one of line_proto/columnar must be enabled")
	}
	if p.LineProtoEnabled && p.ColumnarEnabled && p.LineProtoPort == p.ColumnarPort {
		return fmt.Errorf("protocols: line_proto and columnar cannot share port %d", p.LineProtoPort)
	}
	return nil
}

const (
	minBufferCapacity = 1
	maxBufferCapacity = 1_000_000
)

// Config is the immutable-after-start configuration record (§3).
type Config struct {
	OutputDir       string
	WriteInterval   time.Duration
	TraceRetention  time.Duration
	MetricRetention time.Duration

	MaxTraceBuffer  int
	MaxMetricBuffer int

	Protocols  ProtocolsConfig
	Forwarding *ForwardingConfig // nil means disabled

	MaxFileSize int64
}

// Option mutates a Config during construction, mirroring the teacher's
// pkg/config functional-options shape (config.WithAllocator, etc.).
type Option func(*Config)

// DefaultConfig returns a Config with conservative defaults; OutputDir
// must still be set by the caller (there is no sensible default path).
func DefaultConfig() *Config {
	return &Config{
		WriteInterval:   5 * time.Second,
		TraceRetention:  7 * 24 * time.Hour,
		MetricRetention: 7 * 24 * time.Hour,
		MaxTraceBuffer:  100_000,
		MaxMetricBuffer: 100_000,
		Protocols: ProtocolsConfig{
			LineProtoEnabled: true,
			LineProtoPort:    4317,
		},
		MaxFileSize: 64 * 1024 * 1024,
	}
}

// New builds a Config from DefaultConfig plus the given options and
// validates it.
func New(outputDir string, opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	cfg.OutputDir = outputDir
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func WithWriteInterval(d time.Duration) Option {
	return func(c *Config) { c.WriteInterval = d }
}

func WithRetention(trace, metric time.Duration) Option {
	return func(c *Config) {
		c.TraceRetention = trace
		c.MetricRetention = metric
	}
}

func WithBufferCapacity(trace, metric int) Option {
	return func(c *Config) {
		c.MaxTraceBuffer = trace
		c.MaxMetricBuffer = metric
	}
}

func WithMaxFileSize(n int64) Option {
	return func(c *Config) { c.MaxFileSize = n }
}

func WithProtocols(p ProtocolsConfig) Option {
	return func(c *Config) { c.Protocols = p }
}

func WithForwarding(f ForwardingConfig) Option {
	return func(c *Config) { c.Forwarding = &f }
}

// Validate enforces §3's invariants. Only Config errors are fatal (§7).
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("config: output_dir must not be empty")
	}
	if c.WriteInterval <= 0 {
		return fmt.Errorf("config: write_interval must be > 0")
	}
	if c.TraceRetention <= 0 || c.MetricRetention <= 0 {
		return fmt.Errorf("config: retention periods must be > 0")
	}
	if c.MaxTraceBuffer < minBufferCapacity || c.MaxTraceBuffer > maxBufferCapacity {
		return fmt.Errorf("config: max_trace_buffer_size %d out of range [%d, %d]", c.MaxTraceBuffer, minBufferCapacity, maxBufferCapacity)
	}
	if c.MaxMetricBuffer < minBufferCapacity || c.MaxMetricBuffer > maxBufferCapacity {
		return fmt.Errorf("config: max_metric_buffer_size %d out of range [%d, %d]", c.MaxMetricBuffer, minBufferCapacity, maxBufferCapacity)
	}
	if err := c.Protocols.Validate(); err != nil {
		return err
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("config: max_file_size must be > 0")
	}
	if c.Forwarding != nil {
		if err := c.Forwarding.Validate(); err != nil {
			return err
		}
	}
	return nil
}
