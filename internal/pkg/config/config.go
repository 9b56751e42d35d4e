package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/pqtiles/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Datasets  DatasetsConfig  `mapstructure:"datasets"`
	Tiles     TilesConfig     `mapstructure:"tiles"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	TileTimeout  int    `mapstructure:"tile_timeout"`
	CORSOrigins  string `mapstructure:"cors_origins"`
}

// TileTimeoutDuration is the per-request budget for tile generation.
func (s ServerConfig) TileTimeoutDuration() time.Duration {
	return time.Duration(s.TileTimeout) * time.Second
}

type DatasetsConfig struct {
	ConfigDir  string `mapstructure:"config_dir"`
	File       string `mapstructure:"file"`
	CacheFiles bool   `mapstructure:"cache_files"`
}

// DescriptorPath is the location of the dataset descriptor file.
func (d DatasetsConfig) DescriptorPath() string {
	return filepath.Join(d.ConfigDir, d.File)
}

type TilesConfig struct {
	Extent          uint32 `mapstructure:"extent"`
	FailurePolicy   string `mapstructure:"failure_policy"`
	ScanConcurrency int    `mapstructure:"scan_concurrency"`
	MaxZoom         uint32 `mapstructure:"max_zoom"`
	MaxPoints       int    `mapstructure:"max_points"`
}

// Policy returns the parsed failure policy. Validate guarantees it parses.
func (t TilesConfig) Policy() domain.FailurePolicy {
	p, _ := domain.ParseFailurePolicy(t.FailurePolicy)
	return p
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Enabled      bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: read config: %w", domain.ErrConfig, err)
		}
	}

	// Environment variables: PQTILES_TILES_FAILURE_POLICY → tiles.failure_policy
	v.SetEnvPrefix("PQTILES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return unmarshal(v)
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.tile_timeout", 20)
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("datasets.config_dir", "config")
	v.SetDefault("datasets.file", "parquet.json")
	v.SetDefault("datasets.cache_files", true)
	v.SetDefault("tiles.extent", domain.DefaultExtent)
	v.SetDefault("tiles.failure_policy", domain.DegradeEmpty.String())
	v.SetDefault("tiles.scan_concurrency", runtime.NumCPU())
	v.SetDefault("tiles.max_zoom", 24)
	v.SetDefault("tiles.max_points", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config: %w", domain.ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.TileTimeout <= 0 {
		errs = append(errs, "server.tile_timeout must be positive")
	}
	if c.Datasets.File == "" {
		errs = append(errs, "datasets.file is required")
	}
	if c.Tiles.Extent == 0 || c.Tiles.Extent > 1<<24 {
		errs = append(errs, fmt.Sprintf("tiles.extent must be 1-%d, got %d", 1<<24, c.Tiles.Extent))
	}
	if _, ok := domain.ParseFailurePolicy(c.Tiles.FailurePolicy); !ok {
		errs = append(errs, fmt.Sprintf("tiles.failure_policy must be %q or %q, got %q",
			domain.DegradeEmpty, domain.FailFast, c.Tiles.FailurePolicy))
	}
	if c.Tiles.ScanConcurrency <= 0 {
		errs = append(errs, "tiles.scan_concurrency must be positive")
	}
	if c.Tiles.MaxZoom == 0 || c.Tiles.MaxZoom > 31 {
		errs = append(errs, fmt.Sprintf("tiles.max_zoom must be 1-31, got %d", c.Tiles.MaxZoom))
	}
	if c.Tiles.MaxPoints < 0 {
		errs = append(errs, "tiles.max_points must not be negative")
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		errs = append(errs, "telemetry.otlp_endpoint is required when telemetry is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: validation failed:\n  - %s", domain.ErrConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}
