package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in ~/.config/catalog/config.yml.
// Every field can be overridden by a CATALOG_* environment variable.
type GlobalConfig struct {
	DefaultRepo       string  `yaml:"default_repo,omitempty" envconfig:"DEFAULT_REPO"`
	CrossrefMailto    string  `yaml:"crossref_mailto,omitempty" envconfig:"CROSSREF_MAILTO" validate:"omitempty,email"`
	CrossrefRateLimit float64 `yaml:"crossref_rate_limit,omitempty" envconfig:"CROSSREF_RATE_LIMIT" validate:"gte=0"`
	LogLevel          string  `yaml:"log_level,omitempty" envconfig:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
	LogFormat         string  `yaml:"log_format,omitempty" envconfig:"LOG_FORMAT" validate:"omitempty,oneof=json pretty"`
	MetricsFile       string  `yaml:"metrics_file,omitempty" envconfig:"METRICS_FILE"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "catalog"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "CATALOG"

	// DefaultCrossrefRateLimit is the request rate used when none is configured.
	DefaultCrossrefRateLimit = 5.0
)

// ErrInvalidGlobalConfig wraps validation failures of the global config.
var ErrInvalidGlobalConfig = errors.New("invalid global config")

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

var validate = validator.New(validator.WithRequiredStructEnabled())

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/catalog/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file, then applies
// overrides from .env and the environment.
// A missing file is not an error.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	var cfg GlobalConfig
	if path := GlobalConfigPath(); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	_ = godotenv.Load()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.DefaultRepo != "" {
		cfg.DefaultRepo = ExpandPath(cfg.DefaultRepo)
	}
	if cfg.MetricsFile != "" {
		cfg.MetricsFile = ExpandPath(cfg.MetricsFile)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// Validate checks field values and reports every failing field by its
// yaml name.
func (c *GlobalConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidGlobalConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", yamlName(fe.StructField()), describe(fe)))
	}
	return fmt.Errorf("%w: %s", ErrInvalidGlobalConfig, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return "must be an email address"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	}
	return "failed " + fe.Tag()
}

func yamlName(field string) string {
	switch field {
	case "CrossrefMailto":
		return "crossref_mailto"
	case "CrossrefRateLimit":
		return "crossref_rate_limit"
	case "LogLevel":
		return "log_level"
	case "LogFormat":
		return "log_format"
	}
	return field
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// RateLimit returns the configured Crossref request rate, or the default.
func (c *GlobalConfig) RateLimit() float64 {
	if c.CrossrefRateLimit > 0 {
		return c.CrossrefRateLimit
	}
	return DefaultCrossrefRateLimit
}

// GetDefaultRepo returns the configured default repository from global config.
func GetDefaultRepo() string {
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return ""
	}
	return cfg.DefaultRepo
}

// HelpfulConfigMessage returns a helpful message when no repository is found.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`No catalog repository found.

Run 'catalog init' in a directory, or create %s to set a default:
  mkdir -p %s
  echo 'default_repo: /path/to/your/catalog' > %s`,
		configPath,
		filepath.Dir(configPath),
		configPath)
}
