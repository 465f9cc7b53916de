package config

import (
	"errors"
	"strings"
)

// InstrumentationConfig groups the Prometheus, pprof and OpenTelemetry settings of the node.
type InstrumentationConfig struct {
	Prometheus           bool   `mapstructure:"prometheus" yaml:"prometheus" comment:"Serve Prometheus metrics under /metrics"`
	PrometheusListenAddr string `mapstructure:"prometheus_listen_addr" yaml:"prometheus_listen_addr" comment:"Address of the Prometheus metrics server"`
	// 0 means no limit.
	MaxOpenConnections int    `mapstructure:"max_open_connections" yaml:"max_open_connections" comment:"Maximum number of concurrent metrics requests"`
	Namespace          string `mapstructure:"namespace" yaml:"namespace" comment:"Prefix of every metric name"`

	Pprof           bool   `mapstructure:"pprof" yaml:"pprof" comment:"Serve pprof profiles under /debug/pprof/"`
	PprofListenAddr string `mapstructure:"pprof_listen_addr" yaml:"pprof_listen_addr" comment:"Address of the pprof server"`

	Tracing         bool   `mapstructure:"tracing" yaml:"tracing" comment:"Export OpenTelemetry traces"`
	TracingEndpoint string `mapstructure:"tracing_endpoint" yaml:"tracing_endpoint" comment:"OTLP/HTTP endpoint traces are exported to (host:port or URL)"`
	// TracingServiceName is reported as the service.name resource attribute.
	TracingServiceName string  `mapstructure:"tracing_service_name" yaml:"tracing_service_name" comment:"OpenTelemetry service.name of this process"`
	TracingSampleRate  float64 `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate" comment:"Ratio of traces sampled (0.0-1.0)"`
}

const defaultPprofListenAddr = ":6060"

// DefaultInstrumentationConfig returns the instrumentation defaults: everything disabled.
func DefaultInstrumentationConfig() *InstrumentationConfig {
	return &InstrumentationConfig{
		PrometheusListenAddr: ":26660",
		MaxOpenConnections:   3,
		Namespace:            "movement",
		PprofListenAddr:      defaultPprofListenAddr,
		TracingEndpoint:      "localhost:4318",
		TracingServiceName:   "movement-partial-node",
		TracingSampleRate:    0.1,
	}
}

// ValidateBasic checks the bounds of the settings.
func (cfg *InstrumentationConfig) ValidateBasic() error {
	if cfg.MaxOpenConnections < 0 {
		return errors.New("max_open_connections can't be negative")
	}
	if !cfg.Tracing {
		return nil
	}
	if cfg.TracingSampleRate < 0 || cfg.TracingSampleRate > 1 {
		return errors.New("tracing_sample_rate must be between 0 and 1")
	}
	if strings.TrimSpace(cfg.TracingEndpoint) == "" {
		return errors.New("tracing_endpoint cannot be empty")
	}
	return nil
}

func (cfg *InstrumentationConfig) IsPrometheusEnabled() bool {
	return cfg != nil && cfg.Prometheus && cfg.PrometheusListenAddr != ""
}

func (cfg *InstrumentationConfig) IsPprofEnabled() bool {
	return cfg != nil && cfg.Pprof
}

// GetPprofListenAddr returns the pprof address, or the default one when unset.
func (cfg *InstrumentationConfig) GetPprofListenAddr() string {
	if cfg.PprofListenAddr == "" {
		return defaultPprofListenAddr
	}
	return cfg.PprofListenAddr
}

// IsTracingEnabled reports whether traces are exported. It is safe on a nil config.
func (cfg *InstrumentationConfig) IsTracingEnabled() bool {
	return cfg != nil && cfg.Tracing && cfg.TracingEndpoint != ""
}
