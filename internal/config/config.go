package config

import (
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModelPath    = "models/text_analysis_model.onnx"
	DefaultCacheDir     = "models/cache"
	DefaultAddr         = ":8080"
	DefaultMaxBodyBytes = 1 << 20
)

// Config holds aidetect configuration.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ModelConfig struct {
	// Path is a local path, file://, http(s):// or gs:// reference.
	Path string `yaml:"path" validate:"required"`
	// LibraryPath points at the onnxruntime shared library.
	LibraryPath string `yaml:"library_path"`
	// CacheDir receives downloaded remote models.
	CacheDir string `yaml:"cache_dir" validate:"required"`
	// SHA256 is the expected digest of a downloaded model.
	SHA256 string `yaml:"sha256" validate:"omitempty,len=64,hexadecimal"`
	// GCSEndpoint overrides the storage endpoint, e.g. for an emulator.
	GCSEndpoint string `yaml:"gcs_endpoint" validate:"omitempty,url"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr" validate:"required,hostname_port"` // HTTP listen address, e.g. ":8080"
	MaxBodyBytes int64  `yaml:"max_body_bytes" validate:"gt=0"`
	// APIKeys, when set, are required as bearer tokens on /v1 routes.
	APIKeys []APIKeyConfig `yaml:"api_keys" validate:"omitempty,unique=Key,dive"`
}

type APIKeyConfig struct {
	Name string `yaml:"name" validate:"required"`
	Key  string `yaml:"key" validate:"required,min=16"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Style string `yaml:"style" validate:"oneof=json console"`
}

type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// envOverrides are applied on top of the file. Unset variables leave the
// file value alone.
type envOverrides struct {
	ModelPath    *string `envconfig:"AIDETECT_MODEL_PATH"`
	LibraryPath  *string `envconfig:"AIDETECT_ONNX_LIBRARY_PATH"`
	CacheDir     *string `envconfig:"AIDETECT_MODEL_CACHE_DIR"`
	ModelSHA256  *string `envconfig:"AIDETECT_MODEL_SHA256"`
	GCSEndpoint  *string `envconfig:"AIDETECT_GCS_ENDPOINT"`
	ServerAddr   *string `envconfig:"AIDETECT_SERVER_ADDR"`
	MaxBodyBytes *int64  `envconfig:"AIDETECT_MAX_BODY_BYTES"`
	LogLevel     *string `envconfig:"AIDETECT_LOG_LEVEL"`
	LogStyle     *string `envconfig:"AIDETECT_LOG_STYLE"`
	Telemetry    *bool   `envconfig:"AIDETECT_TELEMETRY_ENABLED"`
}

// Load reads configuration from a YAML file and applies AIDETECT_*
// environment overrides. If path is empty or the file doesn't exist, it
// starts from the defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Path:     DefaultModelPath,
			CacheDir: DefaultCacheDir,
		},
		Server: ServerConfig{
			Addr:         DefaultAddr,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "json",
		},
	}
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return err
	}
	set(&cfg.Model.Path, env.ModelPath)
	set(&cfg.Model.LibraryPath, env.LibraryPath)
	set(&cfg.Model.CacheDir, env.CacheDir)
	set(&cfg.Model.SHA256, env.ModelSHA256)
	set(&cfg.Model.GCSEndpoint, env.GCSEndpoint)
	set(&cfg.Server.Addr, env.ServerAddr)
	set(&cfg.Server.MaxBodyBytes, env.MaxBodyBytes)
	set(&cfg.Logging.Level, env.LogLevel)
	set(&cfg.Logging.Style, env.LogStyle)
	set(&cfg.Telemetry.Enabled, env.Telemetry)
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// applyDefaults fills fields a file left empty.
func applyDefaults(cfg *Config) {
	if cfg.Model.Path == "" {
		cfg.Model.Path = DefaultModelPath
	}
	if cfg.Model.CacheDir == "" {
		cfg.Model.CacheDir = DefaultCacheDir
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Style == "" {
		cfg.Logging.Style = "json"
	}
}
