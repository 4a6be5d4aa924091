// Package config loads contactform settings through Viper from flags,
// CONTACTFORM_ environment variables and an optional YAML file.
//
// Load reads whatever has been registered on the global Viper instance, fills
// in defaults for anything left unset and validates the result. Every failure
// is returned as a config error from internal/errors.
package config

import (
	"fmt"
	"strings"

	"github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/form"
	"github.com/conneroisu/contactform/internal/logging"
	"github.com/conneroisu/contactform/internal/validation"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// CONTACTFORM_SERVER_PORT.
const EnvPrefix = "CONTACTFORM"

// DefaultConfigName is the file looked up in the working directory when no
// --config flag or CONTACTFORM_CONFIG_FILE is given.
const DefaultConfigName = ".contactform"

const (
	DefaultHost = "localhost"
	DefaultPort = 8080
)

type Config struct {
	Endpoint string       `mapstructure:"endpoint" yaml:"endpoint"`
	Server   ServerConfig `mapstructure:"server" yaml:"server"`
	Log      LogConfig    `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Addr is the listen address for the preview server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SetDefaults registers default values on v so that they show up in
// v.AllSettings and env overrides bind to known keys.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("endpoint", form.DefaultEndpoint)
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.allowed_origins", defaultOrigins(DefaultHost, DefaultPort))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func defaultOrigins(host string, port int) []string {
	return []string{fmt.Sprintf("http://%s:%d", host, port)}
}

// Load builds a Config from the global Viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom builds a Config from v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "cannot decode configuration", err)
	}

	// A comma separated env value arrives as a single string.
	if v.IsSet("server.allowed_origins") && len(cfg.Server.AllowedOrigins) <= 1 {
		cfg.Server.AllowedOrigins = splitList(v.GetStringSlice("server.allowed_origins"))
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = form.DefaultEndpoint
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = defaultOrigins(cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks cfg for values the rest of the program cannot work with.
func Validate(cfg *Config) error {
	if err := validation.ValidateURL(cfg.Endpoint); err != nil {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid endpoint", err).
			WithContext("key", "endpoint")
	}

	// 0 asks the OS for a free port, which the tests rely on.
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("port %d is not in valid range 0-65535", cfg.Server.Port), nil).
			WithContext("key", "server.port")
	}

	if strings.ContainsAny(cfg.Server.Host, ";&|$`()<>\"'\\ /") {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			"host contains invalid characters: "+logging.SanitizeForLog(cfg.Server.Host), nil).
			WithContext("key", "server.host")
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		if err := validation.ValidateURL(origin); err != nil {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid allowed origin", err).
				WithContext("key", "server.allowed_origins")
		}
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid log level", err).
			WithContext("key", "log.level")
	}

	switch cfg.Log.Format {
	case "text", "json":
	default:
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("log format must be text or json, got %q", cfg.Log.Format), nil).
			WithContext("key", "log.format")
	}

	return nil
}

// LoggerConfig translates the log section into a logging.LoggerConfig.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	lc := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		lc.Level = level
	}
	lc.Format = c.Log.Format
	return lc
}
