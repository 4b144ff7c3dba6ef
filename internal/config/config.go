// Package config handles repository and global configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config represents repository configuration stored in .catalog/config.json.
type Config struct {
	DBPath          string `json:"db_path,omitempty"` // Relative paths resolve against the repository root
	Curator         string `json:"curator,omitempty"` // Default creator recorded on commands
	LinkAfterIngest bool   `json:"link_after_ingest"` // Run author linkage right after each ingest
}

const (
	CatalogDir = ".catalog"
	ConfigFile = "config.json"
	DBFile     = "catalog.db"
)

// Keys lists the settable repository configuration keys.
var Keys = []string{"db-path", "curator", "link-after-ingest"}

// CatalogPath returns the path to the .catalog directory from a root path.
func CatalogPath(root string) string {
	return filepath.Join(root, CatalogDir)
}

// ConfigPath returns the path to config.json from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, CatalogDir, ConfigFile)
}

// DBPath returns the default database path from a root path.
func DBPath(root string) string {
	return filepath.Join(root, CatalogDir, DBFile)
}

// ResolveDBPath returns the database path configured for the repository.
func (c *Config) ResolveDBPath(root string) string {
	if c.DBPath == "" {
		return DBPath(root)
	}
	p := ExpandPath(c.DBPath)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// IsRepository checks if the given path contains a catalog repository.
func IsRepository(root string) bool {
	info, err := os.Stat(CatalogPath(root))
	return err == nil && info.IsDir()
}

// FindRepository walks up from the given path to find a catalog repository.
// Returns the repository root path or an error if not found.
func FindRepository(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsRepository(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not in a catalog repository (no %s directory found)", CatalogDir)
		}
		abs = parent
	}
}

// Init creates the .catalog directory and a default config at root.
func Init(root string) (*Config, error) {
	if IsRepository(root) {
		return nil, fmt.Errorf("%s already exists in %s", CatalogDir, root)
	}
	if err := os.MkdirAll(CatalogPath(root), 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", CatalogDir, err)
	}
	cfg := &Config{}
	if err := cfg.Save(root); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads configuration from the repository at the given root.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// Save writes configuration to the repository at the given root.
func (c *Config) Save(root string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// NormalizeKey converts key formats (db-path, db_path, DB_PATH) to the
// dashed form used by Keys.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.ReplaceAll(key, "_", "-")
}

// Get returns the value of a configuration key as text.
func (c *Config) Get(key string) (string, error) {
	switch NormalizeKey(key) {
	case "db-path":
		return c.DBPath, nil
	case "curator":
		return c.Curator, nil
	case "link-after-ingest":
		return strconv.FormatBool(c.LinkAfterIngest), nil
	}
	return "", fmt.Errorf("unknown configuration key: %s (valid: %v)", key, Keys)
}

// Set parses value and assigns it to a configuration key.
func (c *Config) Set(key, value string) error {
	switch NormalizeKey(key) {
	case "db-path":
		c.DBPath = ExpandPath(value)
	case "curator":
		c.Curator = strings.TrimSpace(value)
	case "link-after-ingest":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid link-after-ingest: %q (want true or false)", value)
		}
		c.LinkAfterIngest = b
	default:
		return fmt.Errorf("unknown configuration key: %s (valid: %v)", key, Keys)
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
