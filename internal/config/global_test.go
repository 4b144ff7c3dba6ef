package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeGlobalConfig points XDG_CONFIG_HOME at a temp dir holding data.
func writeGlobalConfig(t *testing.T, data string) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	configDir := filepath.Join(tmpDir, GlobalConfigDir)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(configDir, GlobalConfigFile)
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := GlobalConfigPath(), "/custom/config/catalog/config.yml"; got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}

	// Empty XDG_CONFIG_HOME falls back to ~/.config
	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	if got, want := GlobalConfigPath(), filepath.Join(home, ".config", "catalog", "config.yml"); got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}
}

func TestLoadGlobalConfig_NotFound(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	if cfg.DefaultRepo != "" || cfg.CrossrefMailto != "" {
		t.Errorf("expected empty config, got %+v", cfg)
	}
	if cfg.RateLimit() != DefaultCrossrefRateLimit {
		t.Errorf("RateLimit() = %v, want %v", cfg.RateLimit(), DefaultCrossrefRateLimit)
	}
}

func TestLoadGlobalConfig_Valid(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()

	writeGlobalConfig(t, `default_repo: ~/papers
crossref_mailto: curator@example.org
crossref_rate_limit: 2.5
log_level: debug
log_format: json
`)

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}

	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "papers"); cfg.DefaultRepo != want {
		t.Errorf("DefaultRepo = %q, want %q", cfg.DefaultRepo, want)
	}
	if cfg.CrossrefMailto != "curator@example.org" {
		t.Errorf("CrossrefMailto = %q", cfg.CrossrefMailto)
	}
	if cfg.RateLimit() != 2.5 {
		t.Errorf("RateLimit() = %v, want 2.5", cfg.RateLimit())
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("LogLevel = %q, LogFormat = %q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadGlobalConfig_EnvOverride(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()

	writeGlobalConfig(t, "crossref_mailto: file@example.org\nlog_level: info\n")
	t.Setenv("CATALOG_CROSSREF_MAILTO", "env@example.org")
	t.Setenv("CATALOG_METRICS_FILE", "/tmp/catalog.prom")

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	if cfg.CrossrefMailto != "env@example.org" {
		t.Errorf("CrossrefMailto = %q, want env@example.org", cfg.CrossrefMailto)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info from file", cfg.LogLevel)
	}
	if cfg.MetricsFile != "/tmp/catalog.prom" {
		t.Errorf("MetricsFile = %q", cfg.MetricsFile)
	}
}

func TestLoadGlobalConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "log_level: [unterminated"},
		{"bad email", "crossref_mailto: not-an-email\n"},
		{"bad level", "log_level: loud\n"},
		{"bad format", "log_format: xml\n"},
		{"negative rate", "crossref_rate_limit: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetGlobalConfigCache()
			defer ResetGlobalConfigCache()
			writeGlobalConfig(t, tt.data)

			if _, err := LoadGlobalConfig(); err == nil {
				t.Error("LoadGlobalConfig() should return error")
			}
		})
	}
}

func TestGlobalConfig_ValidateNamesField(t *testing.T) {
	cfg := &GlobalConfig{LogLevel: "loud"}
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidGlobalConfig) {
		t.Fatalf("Validate() error = %v, want ErrInvalidGlobalConfig", err)
	}
	if got, want := err.Error(), "invalid global config: log_level: must be one of debug info warn error"; got != want {
		t.Errorf("Validate() = %q, want %q", got, want)
	}
}

func TestHelpfulConfigMessage(t *testing.T) {
	msg := HelpfulConfigMessage()
	if len(msg) < 50 {
		t.Error("HelpfulConfigMessage() seems too short")
	}
}

func TestGlobalConfigCache(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()

	path := writeGlobalConfig(t, "default_repo: /first\n")

	cfg1, _ := LoadGlobalConfig()
	if cfg1.DefaultRepo != "/first" {
		t.Errorf("First load: DefaultRepo = %q, want /first", cfg1.DefaultRepo)
	}

	if err := os.WriteFile(path, []byte("default_repo: /second\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// Second load returns the cached value
	cfg2, _ := LoadGlobalConfig()
	if cfg2.DefaultRepo != "/first" {
		t.Errorf("Second load: DefaultRepo = %q, want /first (cached)", cfg2.DefaultRepo)
	}

	ResetGlobalConfigCache()

	cfg3, _ := LoadGlobalConfig()
	if cfg3.DefaultRepo != "/second" {
		t.Errorf("Third load: DefaultRepo = %q, want /second", cfg3.DefaultRepo)
	}
}
