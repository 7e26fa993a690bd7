package main

import (
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/vecops/pkg/config"
	"github.com/ajitpratap0/vecops/pkg/errors"
)

// settings is the configuration of one CLI invocation.
type settings struct {
	Config  *config.Config
	Timeout time.Duration
}

// flagKeys maps apply flags onto configuration keys. VECOPS_<KEY> with dots
// replaced by underscores overrides the same keys from the environment.
var flagKeys = map[string]string{
	"log-level":    "logging.level",
	"metrics-addr": "metrics.listen_address",
	"parallelism":  "kernel.parallelism",
	"timeout":      "timeout",
}

// loadSettings layers the configuration file (or the defaults), VECOPS_*
// environment variables and explicitly set flags, in increasing priority.
func loadSettings(path string, flags *pflag.FlagSet) (*settings, error) {
	cfg := config.NewDefault()
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	v := viper.New()
	v.SetEnvPrefix("VECOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind flag "+name)
			}
		}
	}

	s := &settings{Config: cfg, Timeout: 30 * time.Minute}
	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.encoding") {
		cfg.Logging.Encoding = v.GetString("logging.encoding")
	}
	if v.IsSet("metrics.listen_address") {
		if addr := v.GetString("metrics.listen_address"); addr != "" {
			cfg.Metrics.Enabled = true
			cfg.Metrics.ListenAddress = addr
		}
	}
	if v.IsSet("kernel.parallelism") {
		cfg.Kernel.Parallelism = v.GetInt("kernel.parallelism")
	}
	if v.IsSet("kernel.parallel_threshold") {
		cfg.Kernel.ParallelThreshold = v.GetInt("kernel.parallel_threshold")
	}
	if v.IsSet("tracing.enabled") {
		cfg.Tracing.Enabled = v.GetBool("tracing.enabled")
	}
	if v.IsSet("io.compression") {
		cfg.IO.Compression = v.GetString("io.compression")
	}
	if v.IsSet("timeout") {
		s.Timeout = v.GetDuration("timeout")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s.Timeout <= 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "timeout must be positive, got %s", s.Timeout)
	}
	return s, nil
}

var elemTypes = map[string]arrow.DataType{
	"int8":    arrow.PrimitiveTypes.Int8,
	"int16":   arrow.PrimitiveTypes.Int16,
	"int32":   arrow.PrimitiveTypes.Int32,
	"int64":   arrow.PrimitiveTypes.Int64,
	"uint8":   arrow.PrimitiveTypes.Uint8,
	"uint16":  arrow.PrimitiveTypes.Uint16,
	"uint32":  arrow.PrimitiveTypes.Uint32,
	"uint64":  arrow.PrimitiveTypes.Uint64,
	"float32": arrow.PrimitiveTypes.Float32,
	"float64": arrow.PrimitiveTypes.Float64,
}

func parseElemType(name string) (arrow.DataType, error) {
	dt, ok := elemTypes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown element type %q", name)
	}
	return dt, nil
}
