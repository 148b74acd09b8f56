package config

import (
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	OSMatch OSMatchConfig `yaml:"osmatch" mapstructure:"osmatch"`
	Input   InputConfig   `yaml:"input" mapstructure:"input"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// OSMatchConfig holds OS Places match API settings.
type OSMatchConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults  int    `yaml:"max_results" mapstructure:"max_results"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// InputConfig describes the delimited files being enriched. Output files
// use the same conventions.
type InputConfig struct {
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
	Encoding  string `yaml:"encoding" mapstructure:"encoding"`
}

// DelimiterRune returns the configured delimiter, or ',' when unset.
func (c InputConfig) DelimiterRune() rune {
	if c.Delimiter == "" {
		return ','
	}
	if c.Delimiter == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// ServerConfig configures the progress server. Runs may only read files
// under InputDir. AllowedOrigins is empty unless a browser front end needs it.
type ServerConfig struct {
	Host           string   `yaml:"host" mapstructure:"host"`
	Port           int      `yaml:"port" mapstructure:"port"`
	InputDir       string   `yaml:"input_dir" mapstructure:"input_dir"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the settings a command needs. mode is "enrich" or "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	if utf8.RuneCountInString(c.Input.Delimiter) > 1 && c.Input.Delimiter != `\t` {
		errs = append(errs, "input.delimiter must be a single character")
	} else {
		switch c.Input.DelimiterRune() {
		case '\r', '\n', '"', utf8.RuneError:
			errs = append(errs, "input.delimiter must not be a quote or line break")
		}
	}
	if c.OSMatch.MaxResults < 1 {
		errs = append(errs, "osmatch.max_results must be >= 1")
	}
	if c.OSMatch.TimeoutSecs < 0 {
		errs = append(errs, "osmatch.timeout_secs must be >= 0")
	}

	switch mode {
	case "enrich":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if strings.TrimSpace(c.Server.InputDir) == "" {
			errs = append(errs, "server.input_dir is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Redacted returns a copy of the config that is safe to print.
func (c Config) Redacted() Config {
	if c.OSMatch.Key != "" {
		c.OSMatch.Key = "REDACTED"
	}
	c.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	return c
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OSMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("osmatch.key", "")
	v.SetDefault("osmatch.base_url", "https://api.os.uk/search/match/v1/match")
	v.SetDefault("osmatch.max_results", 1)
	v.SetDefault("osmatch.timeout_secs", 0)
	v.SetDefault("input.delimiter", ",")
	v.SetDefault("input.encoding", "utf-8")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.input_dir", ".")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
