package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Catalog  CatalogConfig  `toml:"catalog"`
	Google   GoogleConfig   `toml:"google"`
	Database DatabaseConfig `toml:"database"`
	Sync     SyncConfig     `toml:"sync"`
}

// CatalogConfig locates the local Photos library and the osxphotos binary
// used to enumerate and export it.
type CatalogConfig struct {
	LibraryPath   string `toml:"library_path"`   // empty means the system default library
	OSXPhotosPath string `toml:"osxphotos_path"` // defaults to "osxphotos" on PATH
	SharedOnly    bool   `toml:"shared_only"`    // restrict enumeration to shared albums
}

// GoogleConfig contains Google Photos API credentials.
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	TokenPath    string `toml:"token_path"` // defaults to ~/.albumsync/token.json
}

// DatabaseConfig contains sync state database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SyncConfig tunes the transfer pipeline.
type SyncConfig struct {
	Workers     int     `toml:"workers"`      // concurrent materialize/upload workers
	RateLimit   float64 `toml:"rate_limit"`   // remote requests per second
	MaxAttempts int     `toml:"max_attempts"` // bounded retry cap for transient failures
	WorkDir     string  `toml:"work_dir"`     // scratch directory for materialized assets
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// TokenPath resolves the Google token cache location, expanding the default
// under the user home directory when unset.
func (c *Config) TokenPath() (string, error) {
	if c.Google.TokenPath != "" {
		return c.Google.TokenPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".albumsync", "token.json"), nil
}
