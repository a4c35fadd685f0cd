package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"disabled skips checks", func(c *Config) { c.Endpoint = "" }, false},
		{"enabled defaults", func(c *Config) { c.Enabled = true }, false},
		{"missing endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, true},
		{"insecure remote", func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317" }, true},
		{"secure remote", func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317"; c.Insecure = false }, false},
		{"http scheme local", func(c *Config) { c.Enabled = true; c.Endpoint = "http://127.0.0.1:4318"; c.Protocol = "http/protobuf" }, false},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, true},
		{"bad sampling", func(c *Config) { c.Enabled = true; c.SamplingRate = 2 }, true},
		{"zero interval", func(c *Config) { c.Enabled = true; c.ExportInterval = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, HealthStatus{}, tel.Health())
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_EnabledWithUnreachableCollector(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = "localhost:1"
	cfg.ShutdownTimeout = 100 * time.Millisecond

	// Exporters connect lazily, so New succeeds without a collector.
	tel, err := New(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, tel.Health().Enabled)
	_ = tel.Shutdown(context.Background())
}

func TestTestTelemetry(t *testing.T) {
	tt := NewTestTelemetry()

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	span.SetAttributes(attribute.Int("chunks", 3))
	span.End()

	require.NotNil(t, tt.SpanByName("op"))
	tt.AssertSpanAttribute(t, "op", "chunks", int64(3))
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	assert.Equal(t, "collector:4317", stripScheme("collector:4317"))
}

func TestSkipVerifyTLS(t *testing.T) {
	assert.Nil(t, skipVerifyTLS(&Config{}))
	assert.Nil(t, skipVerifyTLS(&Config{Insecure: true, TLSSkipVerify: true}))

	tlsCfg := skipVerifyTLS(&Config{TLSSkipVerify: true})
	if assert.NotNil(t, tlsCfg) {
		assert.True(t, tlsCfg.InsecureSkipVerify)
	}
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased{0.25}")
}
