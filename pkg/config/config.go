// Package config provides the unified configuration system for vecops.
// A single Config structure drives the kernel, the IO layer and the CLI.
//
// The configuration is organized into logical sections:
//   - Kernel: intra-column parallelism and column concurrency
//   - Logging: zap level, encoding and outputs
//   - Metrics: Prometheus namespace and listen address
//   - Tracing: OpenTelemetry sampling and exporter
//   - IO: default file formats and compression
//
// Example usage:
//
//	cfg := config.NewDefault()
//	cfg.Kernel.Parallelism = 4
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"runtime"

	"github.com/ajitpratap0/vecops/pkg/errors"
)

// Config is the single configuration structure for vecops.
type Config struct {
	// Name identifies the deployment in logs and traces
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version" mapstructure:"version"`

	// Kernel controls how the vertical kernels schedule work
	Kernel KernelConfig `yaml:"kernel" json:"kernel" mapstructure:"kernel"`

	// Logging configures the global zap logger
	Logging LoggingConfig `yaml:"logging" json:"logging" mapstructure:"logging"`

	// Metrics configures Prometheus instrumentation
	Metrics MetricsConfig `yaml:"metrics" json:"metrics" mapstructure:"metrics"`

	// Tracing configures OpenTelemetry tracing
	Tracing TracingConfig `yaml:"tracing" json:"tracing" mapstructure:"tracing"`

	// IO selects default input and output formats
	IO IOConfig `yaml:"io" json:"io" mapstructure:"io"`
}

// KernelConfig contains the scheduling knobs of the kernels. None of them
// changes results beyond floating-point reassociation.
type KernelConfig struct {
	// Parallelism caps the goroutines folding one column (1 disables partitioning)
	Parallelism int `yaml:"parallelism" json:"parallelism" mapstructure:"parallelism"`
	// ParallelThreshold is the element count below which a column is folded inline
	ParallelThreshold int `yaml:"parallel_threshold" json:"parallel_threshold" mapstructure:"parallel_threshold"`
	// MaxConcurrentColumns caps the columns processed at once by one call
	MaxConcurrentColumns int `yaml:"max_concurrent_columns" json:"max_concurrent_columns" mapstructure:"max_concurrent_columns"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	// Level sets logging verbosity (debug, info, warn, error)
	Level string `yaml:"level" json:"level" mapstructure:"level"`
	// Encoding is json or console
	Encoding string `yaml:"encoding" json:"encoding" mapstructure:"encoding"`
	// Development enables colored levels and error stack traces
	Development bool `yaml:"development" json:"development" mapstructure:"development"`
	// OutputPaths lists log sinks (defaults to stderr)
	OutputPaths []string `yaml:"output_paths" json:"output_paths" mapstructure:"output_paths"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled activates metrics collection
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	// Namespace prefixes every metric name
	Namespace string `yaml:"namespace" json:"namespace" mapstructure:"namespace"`
	// ListenAddress serves /metrics when non-empty
	ListenAddress string `yaml:"listen_address" json:"listen_address" mapstructure:"listen_address"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled activates tracing
	Enabled bool `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	// ServiceName is reported on every span
	ServiceName string `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
	// SamplingRate controls trace sampling (0.0-1.0)
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate" mapstructure:"sampling_rate"`
	// Exporter selects the span exporter (stdout)
	Exporter string `yaml:"exporter" json:"exporter" mapstructure:"exporter"`
}

// IOConfig contains file format defaults.
type IOConfig struct {
	// Format is the input format when it cannot be detected from the path
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	// OutputFormat is the output format when it cannot be detected from the path
	OutputFormat string `yaml:"output_format" json:"output_format" mapstructure:"output_format"`
	// Compression is applied to outputs whose path carries no compression extension
	Compression string `yaml:"compression" json:"compression" mapstructure:"compression"`
	// CompressionLevel sets compression ratio vs speed (1-9)
	CompressionLevel int `yaml:"compression_level" json:"compression_level" mapstructure:"compression_level"`
}

// NewDefault creates a Config with sensible defaults.
func NewDefault() *Config {
	return &Config{
		Name:    "vecops",
		Version: "1.0.0",
		Kernel:  DefaultKernelConfig(),
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "vecops",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			ServiceName:  "vecops",
			SamplingRate: 1.0,
			Exporter:     "stdout",
		},
		IO: IOConfig{
			Format:           "arrow",
			OutputFormat:     "arrow",
			Compression:      "none",
			CompressionLevel: 5,
		},
	}
}

// DefaultKernelConfig returns the kernel defaults: one goroutine per CPU
// for columns of at least 64k elements, and up to NumCPU columns at once.
func DefaultKernelConfig() KernelConfig {
	return KernelConfig{
		Parallelism:          runtime.NumCPU(),
		ParallelThreshold:    1 << 16,
		MaxConcurrentColumns: runtime.NumCPU(),
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if err := c.Kernel.Validate(); err != nil {
		return err
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return errors.Newf(errors.ErrorTypeConfig, "tracing.sampling_rate must be within [0, 1], got %g", c.Tracing.SamplingRate)
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return errors.New(errors.ErrorTypeConfig, "metrics.namespace is required when metrics are enabled")
	}
	if c.IO.CompressionLevel < 0 || c.IO.CompressionLevel > 9 {
		return errors.Newf(errors.ErrorTypeConfig, "io.compression_level must be within [0, 9], got %d", c.IO.CompressionLevel)
	}
	return nil
}

// Validate checks the kernel section.
func (k *KernelConfig) Validate() error {
	if k.Parallelism < 0 {
		return errors.New(errors.ErrorTypeConfig, "kernel.parallelism cannot be negative")
	}
	if k.ParallelThreshold < 0 {
		return errors.New(errors.ErrorTypeConfig, "kernel.parallel_threshold cannot be negative")
	}
	if k.MaxConcurrentColumns < 0 {
		return errors.New(errors.ErrorTypeConfig, "kernel.max_concurrent_columns cannot be negative")
	}
	return nil
}

// GetParallelism returns the fold parallelism, defaulting to NumCPU
func (k *KernelConfig) GetParallelism() int {
	if k.Parallelism <= 0 {
		return runtime.NumCPU()
	}
	return k.Parallelism
}

// GetMaxConcurrentColumns returns the column concurrency, defaulting to NumCPU
func (k *KernelConfig) GetMaxConcurrentColumns() int {
	if k.MaxConcurrentColumns <= 0 {
		return runtime.NumCPU()
	}
	return k.MaxConcurrentColumns
}

// IsServing returns true if a metrics endpoint should be exposed
func (m *MetricsConfig) IsServing() bool {
	return m.Enabled && m.ListenAddress != ""
}
