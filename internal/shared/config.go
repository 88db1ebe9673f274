package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config is the process configuration, built once at start-up and passed to every component.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Sync        SyncConfig        `toml:"sync"`
	Backup      BackupConfig      `toml:"backup"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	GitHub  GitHubConfig  `toml:"github"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `toml:"client_secret" env:"SPOTIFY_CLIENT_SECRET"`
	RedirectURI  string `toml:"redirect_uri" env:"SPOTIFY_REDIRECT_URI"`
	RefreshToken string `toml:"refresh_token" env:"SPOTIFY_REFRESH_TOKEN"`
}

// GitHubConfig locates the repository secret that stores the Spotify refresh token.
type GitHubConfig struct {
	Token      string `toml:"token" env:"GITHUB_TOKEN"`
	Repository string `toml:"repository" env:"GITHUB_REPOSITORY"`
	SecretName string `toml:"secret_name" env:"GITHUB_SECRET_NAME"`
	APIURL     string `toml:"api_url" env:"GITHUB_API_URL"`
}

// SyncConfig controls the liked songs synchronization.
type SyncConfig struct {
	PlaylistID  string        `toml:"playlist_id" env:"SPOTIFY_PLAYLIST_ID"`
	PageDelay   time.Duration `toml:"page_delay" env:"LIKESYNC_PAGE_DELAY"`
	InsertDelay time.Duration `toml:"insert_delay" env:"LIKESYNC_INSERT_DELAY"`
	BatchSize   int           `toml:"batch_size" env:"LIKESYNC_BATCH_SIZE"`
}

// BackupConfig pairs generated playlists with the playlists they are copied into.
type BackupConfig struct {
	DiscoverWeeklyID       string `toml:"discover_weekly_id" env:"SPOTIFY_DISCOVER_WEEKLY_ID"`
	DiscoverWeeklyBackupID string `toml:"discover_weekly_backup_id" env:"SPOTIFY_DISCOVER_WEEKLY_BACKUP_ID"`
	ReleaseRadarID         string `toml:"release_radar_id" env:"SPOTIFY_RELEASE_RADAR_ID"`
	ReleaseRadarBackupID   string `toml:"release_radar_backup_id" env:"SPOTIFY_RELEASE_RADAR_BACKUP_ID"`
}

// DatabaseConfig contains sync log database settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"LIKESYNC_DATABASE"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig is the address of the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig sets the logger level.
type LogConfig struct {
	Level string `toml:"level" env:"LIKESYNC_LOG_LEVEL"`
}

// Mode names the operation a configuration is validated for.
type Mode string

const (
	ModeSync           Mode = "sync"
	ModeDiscoverWeekly Mode = "discover-weekly"
	ModeReleaseRadar   Mode = "release-radar"
	ModePublish        Mode = "publish"
	ModeLogin          Mode = "login"
)

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
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

// ApplyEnv overrides configuration values with any matching environment variables that are set.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

type requirement struct {
	key   string
	value string
}

// Validate reports the first required value that is empty for mode.
func (c *Config) Validate(mode Mode) error {
	spotify := c.Credentials.Spotify
	github := c.Credentials.GitHub

	required := []requirement{
		{"SPOTIFY_CLIENT_ID", spotify.ClientID},
		{"SPOTIFY_CLIENT_SECRET", spotify.ClientSecret},
	}

	switch mode {
	case ModeLogin:
	case ModeSync:
		required = append(required,
			requirement{"SPOTIFY_REFRESH_TOKEN", spotify.RefreshToken},
			requirement{"SPOTIFY_PLAYLIST_ID", c.Sync.PlaylistID},
		)
	case ModeDiscoverWeekly:
		required = append(required,
			requirement{"SPOTIFY_REFRESH_TOKEN", spotify.RefreshToken},
			requirement{"SPOTIFY_DISCOVER_WEEKLY_ID", c.Backup.DiscoverWeeklyID},
			requirement{"SPOTIFY_DISCOVER_WEEKLY_BACKUP_ID", c.Backup.DiscoverWeeklyBackupID},
		)
	case ModeReleaseRadar:
		required = append(required,
			requirement{"SPOTIFY_REFRESH_TOKEN", spotify.RefreshToken},
			requirement{"SPOTIFY_RELEASE_RADAR_ID", c.Backup.ReleaseRadarID},
			requirement{"SPOTIFY_RELEASE_RADAR_BACKUP_ID", c.Backup.ReleaseRadarBackupID},
		)
	case ModePublish:
		required = append(required, requirement{"SPOTIFY_REFRESH_TOKEN", spotify.RefreshToken})
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, mode)
	}

	// Sync rotates the refresh token, so it needs the secret store as well.
	if mode == ModeSync || mode == ModePublish {
		required = append(required,
			requirement{"GITHUB_TOKEN", github.Token},
			requirement{"GITHUB_REPOSITORY", github.Repository},
			requirement{"GITHUB_SECRET_NAME", github.SecretName},
		)
	}

	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s is not set", ErrMissingConfig, r.key)
		}
	}

	if c.Sync.BatchSize < 1 || c.Sync.BatchSize > 100 {
		return fmt.Errorf("%w: batch_size must be between 1 and 100, got %d", ErrInvalidConfig, c.Sync.BatchSize)
	}

	return nil
}

// Map returns the Spotify credentials in the shape services.NewSpotifyService expects.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Update stores the refresh token carried by token, if any.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", ErrInvalidArgument)
	}
	if token.RefreshToken == "" {
		return ErrNoRefreshToken
	}
	s.RefreshToken = token.RefreshToken
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path, replacing the file.
//
// The file holds a refresh token, so it is written owner-readable only.
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
