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

package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretNeverLeaksPlaintextInFormatting(t *testing.T) {
	s := NewSecret("s3cr3t-value")

	assert.NotContains(t, fmt.Sprintf("%v", s), "s3cr3t-value")
	assert.NotContains(t, fmt.Sprintf("%s", s), "s3cr3t-value")
	assert.NotContains(t, fmt.Sprintf("%#v", s), "s3cr3t-value")
	assert.Equal(t, "***", s.String())
	assert.Equal(t, "***", s.GoString())

	assert.Equal(t, "s3cr3t-value", s.Reveal(), "Reveal is the one sanctioned escape hatch")
}

func TestSecretZeroString(t *testing.T) {
	var s Secret
	assert.True(t, s.IsZero())
	assert.Equal(t, "", s.String())
	assert.Equal(t, "", s.Reveal())
}

func TestSecretZeroClearsRevealedMaterial(t *testing.T) {
	s := NewSecret("top-secret")
	require.False(t, s.IsZero())

	s.Zero()
	assert.True(t, s.IsZero())
	assert.Equal(t, "", s.Reveal())
}

func TestAuthConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     AuthConfig
		wantErr bool
	}{
		{"none", AuthConfig{Kind: AuthNone}, false},
		{"api key missing", AuthConfig{Kind: AuthAPIKey}, true},
		{"api key present", AuthConfig{Kind: AuthAPIKey, APIKey: NewSecret("k")}, false},
		{"bearer missing", AuthConfig{Kind: AuthBearer}, true},
		{"bearer present", AuthConfig{Kind: AuthBearer, Token: NewSecret("t")}, false},
		{"basic missing password", AuthConfig{Kind: AuthBasic, User: "u"}, true},
		{"basic missing user", AuthConfig{Kind: AuthBasic, Password: NewSecret("p")}, true},
		{"basic present", AuthConfig{Kind: AuthBasic, User: "u", Password: NewSecret("p")}, false},
		{"unknown kind", AuthConfig{Kind: AuthKind(99)}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAuthConfigZeroClearsAllCredentials(t *testing.T) {
	a := AuthConfig{
		Kind:     AuthBasic,
		APIKey:   NewSecret("k"),
		Token:    NewSecret("t"),
		User:     "u",
		Password: NewSecret("p"),
	}
	a.Zero()
	assert.True(t, a.APIKey.IsZero())
	assert.True(t, a.Token.IsZero())
	assert.True(t, a.Password.IsZero())
}

func baseForwardingConfig() ForwardingConfig {
	return ForwardingConfig{
		Enabled:          true,
		EndpointURL:      "https://collector.example.com:4318",
		Auth:             AuthConfig{Kind: AuthNone},
		DispatchTimeout:  time.Second,
		ShutdownDeadline: time.Second,
		FailureThreshold: 1,
		OpenDuration:     time.Second,
	}
}

func TestForwardingConfigValidate(t *testing.T) {
	t.Run("disabled skips all other checks", func(t *testing.T) {
		assert.NoError(t, ForwardingConfig{Enabled: false}.Validate())
	})

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, baseForwardingConfig().Validate())
	})

	t.Run("missing endpoint", func(t *testing.T) {
		cfg := baseForwardingConfig()
		cfg.EndpointURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid auth propagates", func(t *testing.T) {
		cfg := baseForwardingConfig()
		cfg.Auth = AuthConfig{Kind: AuthBearer}
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive failure threshold", func(t *testing.T) {
		cfg := baseForwardingConfig()
		cfg.FailureThreshold = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive open duration", func(t *testing.T) {
		cfg := baseForwardingConfig()
		cfg.OpenDuration = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive dispatch timeout", func(t *testing.T) {
		cfg := baseForwardingConfig()
		cfg.DispatchTimeout = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestProtocolsConfigValidate(t *testing.T) {
	t.Run("neither enabled", func(t *testing.T) {
		assert.Error(t, ProtocolsConfig{}.Validate())
	})

	t.Run("line proto only", func(t *testing.T) {
		assert.NoError(t, ProtocolsConfig{LineProtoEnabled: true, LineProtoPort: 4317}.Validate())
	})

	t.Run("both on distinct ports", func(t *testing.T) {
		p := ProtocolsConfig{LineProtoEnabled: true, LineProtoPort: 4317, ColumnarEnabled: true, ColumnarPort: 4318}
		assert.NoError(t, p.Validate())
	})

	t.Run("both on the same port", func(t *testing.T) {
		p := ProtocolsConfig{LineProtoEnabled: true, LineProtoPort: 4317, ColumnarEnabled: true, ColumnarPort: 4317}
		assert.Error(t, p.Validate())
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := New("/var/lib/otlp-engine")
		require.NoError(t, err)
		return cfg
	}

	t.Run("defaults validate", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("empty output dir", func(t *testing.T) {
		cfg := valid()
		cfg.OutputDir = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive write interval", func(t *testing.T) {
		cfg := valid()
		cfg.WriteInterval = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive retention", func(t *testing.T) {
		cfg := valid()
		cfg.TraceRetention = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("buffer size out of range", func(t *testing.T) {
		cfg := valid()
		cfg.MaxTraceBuffer = 0
		assert.Error(t, cfg.Validate())

		cfg = valid()
		cfg.MaxMetricBuffer = maxBufferCapacity + 1
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid protocols propagates", func(t *testing.T) {
		cfg := valid()
		cfg.Protocols = ProtocolsConfig{}
		assert.Error(t, cfg.Validate())
	})
}

func TestNewAppliesOptions(t *testing.T) {
	cfg, err := New("/data",
		WithWriteInterval(time.Minute),
		WithRetention(time.Hour, 2*time.Hour),
		WithBufferCapacity(10, 20),
		WithMaxFileSize(1024),
	)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.WriteInterval)
	assert.Equal(t, time.Hour, cfg.TraceRetention)
	assert.Equal(t, 2*time.Hour, cfg.MetricRetention)
	assert.Equal(t, 10, cfg.MaxTraceBuffer)
	assert.Equal(t, 20, cfg.MaxMetricBuffer)
	assert.Equal(t, int64(1024), cfg.MaxFileSize)
}
