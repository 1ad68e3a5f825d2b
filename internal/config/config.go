package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingCredential = errors.New("missing credential")

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Llama     LlamaConfig     `mapstructure:"llama"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type AnalyzerConfig struct {
	Backend string        `mapstructure:"backend"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type LlamaConfig struct {
	Server string `mapstructure:"server"`
	Seed   int    `mapstructure:"seed"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Backends that can be named by analyzer.backend
var Backends = []string{"gemini", "openai", "llama"}

const envPrefix = "HUMAN360"

// DefaultMaxUploadBytes caps uploads against abuse. It sits well above the
// 5MB the upload page suggests, which is advice and not a limit.
const DefaultMaxUploadBytes = 200 << 20

// Load builds the configuration from, in increasing precedence, defaults, a
// YAML file and the environment. A .env file in the working directory is
// loaded into the environment first. path names the YAML file, if it is
// empty config.yaml is looked for in . and ./configs and may be absent.
func Load(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Credentials have no default so AutomaticEnv can't discover them, bind
	// them explicitly. The provider's own variable names work too.
	if err := v.BindEnv("gemini.api_key", envPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("openai.api_key", envPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	// Existing environment variables win over the file
	_ = godotenv.Load(".env")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("analyzer.backend", "gemini")
	v.SetDefault("analyzer.timeout", 60*time.Second)

	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("openai.model", "gpt-4o-mini")

	v.SetDefault("llama.server", "")
	v.SetDefault("llama.seed", 385480504)

	v.SetDefault("ratelimit.requests", 20)
	v.SetDefault("ratelimit.window", time.Minute)

	v.SetDefault("upload.max_bytes", DefaultMaxUploadBytes)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// validateConfig fails fast on settings the server can't start without.
func validateConfig(cfg *Config) error {
	switch cfg.Analyzer.Backend {
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return fmt.Errorf("gemini.api_key (or GEMINI_API_KEY) is required: %w", ErrMissingCredential)
		}
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return fmt.Errorf("openai.api_key (or OPENAI_API_KEY) is required: %w", ErrMissingCredential)
		}
	case "llama":
		if cfg.Llama.Server == "" {
			return fmt.Errorf("llama.server is required: %w", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("analyzer.backend must be one of %s, got %q", strings.Join(Backends, ", "), cfg.Analyzer.Backend)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", cfg.Server.Port)
	}
	if cfg.Analyzer.Timeout <= 0 {
		return fmt.Errorf("analyzer.timeout must be positive")
	}
	if cfg.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	if cfg.RateLimit.Requests < 0 || cfg.RateLimit.Window < 0 {
		return fmt.Errorf("ratelimit values must not be negative")
	}

	return nil
}
