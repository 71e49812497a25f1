package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// EnvPrefix is the prefix for environment overrides (e.g., THOUGHTGRAPH_PORT=9090)
	EnvPrefix = "THOUGHTGRAPH_"
	// DefaultFile is the config file read from the working directory
	DefaultFile = "thoughtgraph.toml"
)

// sections are the nested config groups; env and flag names map
// "<section>_<key>" onto "<section>.<key>"
var sections = []string{"store", "layout"}

// Config holds all configuration for the application
type Config struct {
	Library   string       `koanf:"library"`
	Port      int          `koanf:"port" validate:"min=1,max=65535"`
	Watch     bool         `koanf:"watch"`
	Verbosity string       `koanf:"verbosity" validate:"omitempty,oneof=trace debug info warn error"`
	JSONLogs  bool         `koanf:"json_logs"`
	Store     StoreConfig  `koanf:"store"`
	Layout    LayoutConfig `koanf:"layout"`
}

// StoreConfig selects and configures the connection backend
type StoreConfig struct {
	Driver    string `koanf:"driver" validate:"oneof=memory sqlite redis"`
	Path      string `koanf:"path" validate:"required_if=Driver sqlite"`
	RedisAddr string `koanf:"redis_addr" validate:"required_if=Driver redis"`
}

// LayoutConfig tunes the force simulation
type LayoutConfig struct {
	Width   float64 `koanf:"width" validate:"gt=0"`
	Height  float64 `koanf:"height" validate:"gt=0"`
	Charge  float64 `koanf:"charge"`
	FrameMS int     `koanf:"frame_ms" validate:"min=1"`
}

// Defaults returns the built-in configuration values
func Defaults() map[string]any {
	return map[string]any{
		"library":          "library.yaml",
		"port":             8080,
		"watch":            false,
		"verbosity":        "",
		"json_logs":        false,
		"store.driver":     "memory",
		"store.path":       "thoughtgraph.db",
		"store.redis_addr": "localhost:6379",
		"layout.width":     800.0,
		"layout.height":    600.0,
		"layout.charge":    -300.0,
		"layout.frame_ms":  16,
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional)
	path := DefaultFile
	if f != nil {
		if flag := f.Lookup("config"); flag != nil && flag.Value.String() != "" {
			path = flag.Value.String()
		}
	}
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// 3. Environment Variables
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		provider := posflag.ProviderWithFlag(f, ".", k, func(flag *pflag.Flag) (string, any) {
			if flag.Name == "config" {
				return "", nil
			}
			return flagKey(flag.Name), posflag.FlagVal(f, flag)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// envKey maps THOUGHTGRAPH_STORE_REDIS_ADDR to store.redis_addr
func envKey(s string) string {
	return sectionKey(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)))
}

// flagKey maps --store-redis-addr to store.redis_addr
func flagKey(name string) string {
	return sectionKey(strings.ReplaceAll(name, "-", "_"))
}

func sectionKey(key string) string {
	for _, section := range sections {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return key
}
