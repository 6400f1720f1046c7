package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultFile is the optional config file looked up in the working directory
const DefaultFile = "mfa-dashboard.toml"

// EnvPrefix prefixes environment overrides, e.g. MFA_DASHBOARD_PORT=9090
const EnvPrefix = "MFA_DASHBOARD_"

// Config holds all configuration for the application
type Config struct {
	Workbook    string   `koanf:"workbook" validate:"required"`
	WebMode     bool     `koanf:"web"`
	Port        int      `koanf:"port" validate:"min=1,max=65535"`
	Watch       bool     `koanf:"watch"`
	OpenBrowser bool     `koanf:"open"`
	Factor      float64  `koanf:"factor" validate:"min=0,max=1"`
	Baseline    float64  `koanf:"baseline" validate:"min=0,max=1"`
	Sectors     []string `koanf:"sectors" validate:"min=1,dive,required"`
	WriteSample string   `koanf:"write-sample"`
	Verbosity   string   `koanf:"verbosity" validate:"omitempty,oneof=trace debug info warn warning error"`
	VerboseCnt  int      `koanf:"verbose"`
	JSONLogs    bool     `koanf:"json-logs"`
}

// Defaults returns the built-in configuration values
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"workbook":     "data.xlsx",
		"web":          false,
		"port":         8080,
		"watch":        false,
		"open":         true,
		"factor":       0.5,
		"baseline":     0.5,
		"sectors":      []string{"government", "industry"},
		"write-sample": "",
		"verbosity":    "",
		"verbose":      0,
		"json-logs":    false,
	}
}

var validate = validator.New()

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return LoadFile(DefaultFile, f)
}

// LoadFile is Load with an explicit config file path. A missing file is not an error.
func LoadFile(path string, f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
		}
	}

	// MFA_DASHBOARD_JSON_LOGS -> json-logs; nested keys are not used
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "_", "-")
		if key == "sectors" {
			return key, splitList(value)
		}
		return key, value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s%s", fe.Namespace(), fe.Tag(), paramSuffix(fe.Param())))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

// mapProvider feeds a plain map into koanf
type mapProvider map[string]interface{}

func (p mapProvider) Read() (map[string]interface{}, error) {
	return p, nil
}

func (p mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("not implemented")
}
