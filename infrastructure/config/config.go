// Package config loads the cache's runtime configuration from YAML with
// environment-variable overrides, and watches the file for hot reload.
// It is grounded on the teacher's internal/config loader
// (backend/internal/config/loader.go: yaml.v3 decode over a
// defaults-then-file-then-env hierarchy) and its companion
// fsnotify-based ConfigWatcher (backend/internal/config/watcher.go).
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"graphcache/application/execution"
)

// validate is a package-level singleton, following the teacher's
// validator.Validate being expensive to construct and safe to share
// (backend/internal/interfaces/http/validation/validator.go's
// sync.Once-guarded singleton).
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Environment selects the logging preset a Cache runs under.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config is the cache's runtime configuration (spec §6 "Configuration",
// plus the ambient logging/tracing/metrics knobs SPEC_FULL adds).
type Config struct {
	Environment Environment `yaml:"environment" validate:"oneof=development production"`

	CachePolicy         string `yaml:"cache_policy" validate:"oneof=cache_first cache_only network_only cache_and_network"`
	SuspensionTimeoutMS int    `yaml:"suspension_timeout_ms" validate:"gte=0"`
	HydrationTimeoutMS  int    `yaml:"hydration_timeout_ms" validate:"gte=0"`

	LogLevel        string `yaml:"log_level" validate:"oneof=debug info warn error"`
	MetricsEnabled  bool   `yaml:"metrics_enabled"`
	TracingEndpoint string `yaml:"tracing_endpoint"`
}

// Default returns the configuration used when no file or environment
// variable overrides a field.
func Default() Config {
	return Config{
		Environment:         Development,
		CachePolicy:         "cache_first",
		SuspensionTimeoutMS: 0,
		HydrationTimeoutMS:  0,
		LogLevel:            "info",
		MetricsEnabled:      false,
		TracingEndpoint:     "",
	}
}

// Load reads path (if it exists) as YAML over Default(), then applies
// environment-variable overrides, matching the teacher's
// defaults-then-file-then-env precedence. An empty path skips the file
// step entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("graphcache: parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// no file to load; defaults plus env stand.
		default:
			return Config{}, fmt.Errorf("graphcache: read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GRAPHCACHE_ENVIRONMENT"); v != "" {
		cfg.Environment = Environment(v)
	}
	if v := os.Getenv("GRAPHCACHE_CACHE_POLICY"); v != "" {
		cfg.CachePolicy = v
	}
	if v := os.Getenv("GRAPHCACHE_SUSPENSION_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SuspensionTimeoutMS = n
		}
	}
	if v := os.Getenv("GRAPHCACHE_HYDRATION_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HydrationTimeoutMS = n
		}
	}
	if v := os.Getenv("GRAPHCACHE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GRAPHCACHE_METRICS_ENABLED"); v != "" {
		cfg.MetricsEnabled = v == "true" || v == "1" || v == "yes"
	}
	if v := os.Getenv("GRAPHCACHE_TRACING_ENDPOINT"); v != "" {
		cfg.TracingEndpoint = v
	}
}

// Validate rejects an unrecognized cache_policy, environment, or
// log_level early, rather than letting Policy() silently fall back to
// cache-first. Struct-tag rules are declarative (spec §6
// "Configuration"); resolving a field to a runtime type stays ordinary
// Go in Policy()/SuspensionTimeout()/etc.
func (c Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return fmt.Errorf("graphcache: invalid config field %q (%s): %w", first.Field(), first.Tag(), err)
		}
		return fmt.Errorf("graphcache: invalid config: %w", err)
	}
	return nil
}

// Policy translates the configured policy name into execution.Policy.
func (c Config) Policy() execution.Policy {
	switch c.CachePolicy {
	case "cache_only":
		return execution.CacheOnly
	case "network_only":
		return execution.NetworkOnly
	case "cache_and_network":
		return execution.CacheAndNetwork
	default:
		return execution.CacheFirst
	}
}

// SuspensionTimeout returns the configured in-flight dedup window.
func (c Config) SuspensionTimeout() time.Duration {
	return time.Duration(c.SuspensionTimeoutMS) * time.Millisecond
}

// HydrationTimeout returns the configured post-hydrate miss window.
func (c Config) HydrationTimeout() time.Duration {
	return time.Duration(c.HydrationTimeoutMS) * time.Millisecond
}

// IsDevelopment reports whether the configured environment is development.
func (c Config) IsDevelopment() bool {
	return c.Environment == Development
}
