package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Source kinds understood by [SourceConfig].
const (
	SourceTakeout = "takeout"
	SourceYTMusic = "ytmusic"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Source      SourceConfig      `toml:"source"`
	Database    DatabaseConfig    `toml:"database"`
	Audit       AuditConfig       `toml:"audit"`
	Sync        SyncConfig        `toml:"sync"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// SpotifyConfig contains Spotify API credentials for the target catalog.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	Username     string `toml:"username"`
}

// Map returns the credentials in the shape expected by services.NewSpotifyService.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
		"username":      s.Username,
	}
}

// YouTubeConfig contains settings for the YouTube Music proxy used as a source catalog.
type YouTubeConfig struct {
	ProxyURL    string `toml:"proxy_url"`
	HeadersPath string `toml:"headers_path"`
	Account     string `toml:"account"`
}

// SourceConfig selects and configures the source catalog.
type SourceConfig struct {
	Kind       string `toml:"kind"`
	TakeoutDir string `toml:"takeout_dir"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// AuditConfig controls the per-entity audit trail file.
type AuditConfig struct {
	Path       string `toml:"path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// SyncConfig tunes how the engine talks to the target catalog.
type SyncConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	PublicPlaylists   bool    `toml:"public_playlists"`
}

// ServerConfig contains the local OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ResolveConfig loads the config at path when it exists and falls back to defaults otherwise.
// Environment overrides are applied in both cases.
func ResolveConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}
	config.ApplyEnv()
	return config, nil
}

// ApplyEnv overrides config values with SPOTIFY_*, YTMUSIC_* and GOOGLE_* environment variables.
func (c *Config) ApplyEnv() {
	setFromEnv(&c.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	setFromEnv(&c.Credentials.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	setFromEnv(&c.Credentials.Spotify.RedirectURI, "SPOTIFY_REDIRECT_URL")
	setFromEnv(&c.Credentials.Spotify.Username, "SPOTIFY_USERNAME")
	setFromEnv(&c.Credentials.YouTube.ProxyURL, "YTMUSIC_PROXY_URL")
	setFromEnv(&c.Credentials.YouTube.Account, "GOOGLE_USERNAME")

	if dir := os.Getenv("GOOGLE_TAKEOUT_DIR"); dir != "" {
		c.Source.Kind = SourceTakeout
		c.Source.TakeoutDir = dir
	} else if os.Getenv("GOOGLE_USERNAME") != "" && c.Source.Kind == "" {
		c.Source.Kind = SourceYTMusic
	}
}

// Validate checks the settings the reconciliation commands depend on.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceTakeout:
		if c.Source.TakeoutDir == "" {
			return fmt.Errorf("%w: source.takeout_dir is required for the takeout source", ErrInvalidConfig)
		}
	case SourceYTMusic:
		if c.Credentials.YouTube.ProxyURL == "" {
			return fmt.Errorf("%w: credentials.youtube.proxy_url is required for the ytmusic source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source kind %q (must be takeout or ytmusic)", ErrInvalidConfig, c.Source.Kind)
	}

	if c.Credentials.Spotify.ClientID == "" || c.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret must be set", ErrMissingCredentials)
	}
	if c.Credentials.Spotify.Username == "" {
		return fmt.Errorf("%w: spotify username must be set", ErrMissingCredentials)
	}
	return nil
}

// LockPath is the advisory lock file guarding concurrent runs against the same database.
func (c *Config) LockPath() string {
	return c.Database.Path + ".lock"
}

// SourceAccount is the identity snapshots are keyed by.
func (c *Config) SourceAccount() string {
	switch c.Source.Kind {
	case SourceTakeout:
		if abs, err := filepath.Abs(c.Source.TakeoutDir); err == nil {
			return "takeout:" + abs
		}
		return "takeout:" + c.Source.TakeoutDir
	case SourceYTMusic:
		if c.Credentials.YouTube.Account != "" {
			return "ytmusic:" + c.Credentials.YouTube.Account
		}
		return "ytmusic:" + c.Credentials.YouTube.ProxyURL
	default:
		return c.Source.Kind
	}
}

// SaveConfig writes config to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
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

// LoadEnv loads .env style files into the process environment. Missing files are ignored
// and variables already set in the environment win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
