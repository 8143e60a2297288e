// Package config loads wasipy settings from defaults, a YAML file and
// WASIPY_ environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultConfigPath is the default path to the config file
	DefaultConfigPath = "~/.wasipy/config.yaml"

	// EnvPrefix is the prefix for environment variables. Nested keys are
	// separated by a double underscore: WASIPY_TEST__MOUNT_POINT.
	EnvPrefix = "WASIPY_"

	// DefaultFetchURL is a WASI build of CPython with its standard library.
	DefaultFetchURL = "https://github.com/vmware-labs/webassembly-language-runtimes/releases/download/python%2F3.12.0%2B20231211-040d5a6/python-3.12.0.tar.gz"
)

// Config holds all wasipy configuration.
type Config struct {
	Python   PythonConfig   `koanf:"python"`
	Executor ExecutorConfig `koanf:"executor"`
	Test     TestConfig     `koanf:"test"`
	Probe    ProbeConfig    `koanf:"probe"`
	Fetch    FetchConfig    `koanf:"fetch"`
	Log      LogConfig      `koanf:"log"`
}

// PythonConfig locates the interpreter.
type PythonConfig struct {
	// Path to the interpreter module
	Wasm string `koanf:"wasm" validate:"required"`

	// Host directory mounted read-only as the interpreter's home (/)
	Home string `koanf:"home"`

	// Extra guest environment
	Env map[string]string `koanf:"env"`
}

// ExecutorConfig tunes the wazero runtime.
type ExecutorConfig struct {
	// Per-run timeout, 0 for none
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`

	// Memory limit: 1mb, 16mb, 64mb, 256mb, 1gb or empty for none
	Memory string `koanf:"memory" validate:"omitempty,oneof=1mb 16mb 64mb 256mb 1gb"`

	DiskCache bool   `koanf:"disk_cache"`
	CacheDir  string `koanf:"cache_dir"`
}

// TestConfig controls the test bootstrap.
type TestConfig struct {
	File       string `koanf:"file" validate:"required"`
	MountPoint string `koanf:"mount_point" validate:"required,startswith=/"`
}

// ProbeConfig controls the version probe cache.
type ProbeConfig struct {
	Cache    bool   `koanf:"cache"`
	CacheDir string `koanf:"cache_dir" validate:"required_if=Cache true"`
}

// FetchConfig says where to download the interpreter from.
type FetchConfig struct {
	URL    string `koanf:"url" validate:"required,url"`
	SHA256 string `koanf:"sha256" validate:"omitempty,len=64,hexadecimal"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
}

// Dir is wasipy's state directory (~/.wasipy).
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".wasipy")
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	dir := Dir()
	return &Config{
		Python: PythonConfig{
			Wasm: filepath.Join(dir, "python", "bin", "python-3.12.0.wasm"),
			Home: filepath.Join(dir, "python", "usr", "local"),
			Env:  map[string]string{},
		},
		Executor: ExecutorConfig{
			DiskCache: true,
		},
		Test: TestConfig{
			File:       "test.py",
			MountPoint: "/package_dir",
		},
		Probe: ProbeConfig{
			Cache:    true,
			CacheDir: filepath.Join(dir, "probes"),
		},
		Fetch: FetchConfig{
			URL: DefaultFetchURL,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load loads configuration from configPath (if it exists) and the
// environment, then validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(newStructProvider(DefaultConfig()), nil); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	expandedPath := ExpandHome(configPath)
	if expandedPath != "" {
		if _, err := os.Stat(expandedPath); err == nil {
			if err := k.Load(file.Provider(expandedPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Python.Wasm = ExpandHome(cfg.Python.Wasm)
	cfg.Python.Home = ExpandHome(cfg.Python.Home)
	cfg.Executor.CacheDir = ExpandHome(cfg.Executor.CacheDir)
	cfg.Probe.CacheDir = ExpandHome(cfg.Probe.CacheDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// envKey maps WASIPY_TEST__MOUNT_POINT to test.mount_point. Variables
// without a level separator are not configuration and are skipped. Names
// under python.env keep their case: WASIPY_PYTHON__ENV__PYTHONPATH sets
// PYTHONPATH in the guest.
func envKey(s string) string {
	parts := strings.Split(strings.TrimPrefix(s, EnvPrefix), "__")
	if len(parts) < 2 {
		return ""
	}
	for i := range parts {
		if i == 2 && parts[0] == "python" && parts[1] == "env" {
			return strings.Join(parts[:2], ".") + "." + strings.Join(parts[2:], "__")
		}
		parts[i] = strings.ToLower(parts[i])
	}
	return strings.Join(parts, ".")
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}

// structProvider loads configuration from a struct
type structProvider struct {
	cfg interface{}
}

func newStructProvider(cfg interface{}) *structProvider {
	return &structProvider{cfg: cfg}
}

// Read converts the struct to a nested map keyed by koanf tags.
func (s *structProvider) Read() (map[string]interface{}, error) {
	var out map[string]interface{}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "koanf",
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(s.cfg); err != nil {
		return nil, err
	}

	return out, nil
}

// ReadBytes is required by the Provider interface but not used for struct providers
func (s *structProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("ReadBytes not supported for struct provider")
}
