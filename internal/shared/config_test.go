package shared

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func validSyncConfig() *Config {
	config := DefaultConfig()
	config.Credentials.Spotify.ClientID = "client"
	config.Credentials.Spotify.ClientSecret = "secret"
	config.Credentials.Spotify.RefreshToken = "refresh"
	config.Credentials.GitHub.Token = "ghp_token"
	config.Credentials.GitHub.Repository = "owner/repo"
	config.Sync.PlaylistID = "playlist"
	return config
}

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./likesync.db" {
			t.Errorf("expected database path ./likesync.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Sync.PageDelay != 10*time.Millisecond {
			t.Errorf("expected page delay 10ms, got %v", config.Sync.PageDelay)
		}

		if config.Sync.InsertDelay != time.Second {
			t.Errorf("expected insert delay 1s, got %v", config.Sync.InsertDelay)
		}

		if config.Sync.BatchSize != 100 {
			t.Errorf("expected batch size 100, got %d", config.Sync.BatchSize)
		}

		if config.Credentials.GitHub.SecretName != "SPOTIFY_REFRESH_TOKEN" {
			t.Errorf("expected default secret name, got %s", config.Credentials.GitHub.SecretName)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[sync]
playlist_id = "37i9dQZF1DX"
page_delay = "0s"
insert_delay = "250ms"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
refresh_token = "test_refresh"

[credentials.github]
repository = "owner/repo"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Sync.PlaylistID != "37i9dQZF1DX" {
			t.Errorf("expected playlist id 37i9dQZF1DX, got %s", config.Sync.PlaylistID)
		}
		if config.Sync.PageDelay != 0 {
			t.Errorf("expected zero page delay, got %v", config.Sync.PageDelay)
		}
		if config.Sync.InsertDelay != 250*time.Millisecond {
			t.Errorf("expected 250ms insert delay, got %v", config.Sync.InsertDelay)
		}
		if config.Sync.BatchSize != 100 {
			t.Errorf("expected default batch size to survive a partial file, got %d", config.Sync.BatchSize)
		}
		if config.Credentials.Spotify.RefreshToken != "test_refresh" {
			t.Errorf("expected refresh token test_refresh, got %s", config.Credentials.Spotify.RefreshToken)
		}
	})

	t.Run("LoadConfig Invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[sync\nplaylist_id ="), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("SPOTIFY_CLIENT_ID", "env_client")
		t.Setenv("SPOTIFY_REFRESH_TOKEN", "env_refresh")
		t.Setenv("GITHUB_REPOSITORY", "env/repo")
		t.Setenv("LIKESYNC_INSERT_DELAY", "2s")

		config := DefaultConfig()
		config.Credentials.Spotify.ClientSecret = "from_file"

		if err := config.ApplyEnv(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "env_client" {
			t.Errorf("expected env client id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Spotify.RefreshToken != "env_refresh" {
			t.Errorf("expected env refresh token, got %s", config.Credentials.Spotify.RefreshToken)
		}
		if config.Credentials.GitHub.Repository != "env/repo" {
			t.Errorf("expected env repository, got %s", config.Credentials.GitHub.Repository)
		}
		if config.Sync.InsertDelay != 2*time.Second {
			t.Errorf("expected 2s insert delay, got %v", config.Sync.InsertDelay)
		}
		if config.Credentials.Spotify.ClientSecret != "from_file" {
			t.Errorf("unset variables must not clear file values, got %q", config.Credentials.Spotify.ClientSecret)
		}
	})

	t.Run("ApplyEnv Invalid Value", func(t *testing.T) {
		t.Setenv("LIKESYNC_BATCH_SIZE", "lots")

		err := DefaultConfig().ApplyEnv()
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("SaveConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := validSyncConfig()

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}

		if loaded.Credentials.Spotify.RefreshToken != "refresh" {
			t.Errorf("expected refresh token to round trip, got %s", loaded.Credentials.Spotify.RefreshToken)
		}
		if loaded.Sync.InsertDelay != config.Sync.InsertDelay {
			t.Errorf("expected insert delay %v, got %v", config.Sync.InsertDelay, loaded.Sync.InsertDelay)
		}

		info, err := os.Stat(configPath)
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
		}
	})
}

func TestConfigValidate(t *testing.T) {
	tc := []struct {
		name    string
		mode    Mode
		mutate  func(c *Config)
		wantErr error
		wantKey string
	}{
		{
			name: "valid sync configuration",
			mode: ModeSync,
		},
		{
			name:    "sync without playlist",
			mode:    ModeSync,
			mutate:  func(c *Config) { c.Sync.PlaylistID = "" },
			wantErr: ErrMissingConfig,
			wantKey: "SPOTIFY_PLAYLIST_ID",
		},
		{
			name:    "sync without refresh token",
			mode:    ModeSync,
			mutate:  func(c *Config) { c.Credentials.Spotify.RefreshToken = "" },
			wantErr: ErrMissingConfig,
			wantKey: "SPOTIFY_REFRESH_TOKEN",
		},
		{
			name:    "sync without github token",
			mode:    ModeSync,
			mutate:  func(c *Config) { c.Credentials.GitHub.Token = "" },
			wantErr: ErrMissingConfig,
			wantKey: "GITHUB_TOKEN",
		},
		{
			name:    "backup without target playlist",
			mode:    ModeDiscoverWeekly,
			mutate:  func(c *Config) { c.Backup.DiscoverWeeklyID = "dw" },
			wantErr: ErrMissingConfig,
			wantKey: "SPOTIFY_DISCOVER_WEEKLY_BACKUP_ID",
		},
		{
			name: "backup does not need github",
			mode: ModeReleaseRadar,
			mutate: func(c *Config) {
				c.Credentials.GitHub = GitHubConfig{}
				c.Backup.ReleaseRadarID = "rr"
				c.Backup.ReleaseRadarBackupID = "rr_backup"
			},
		},
		{
			name:   "login needs no refresh token",
			mode:   ModeLogin,
			mutate: func(c *Config) { c.Credentials.Spotify.RefreshToken = "" },
		},
		{
			name:    "batch size above ceiling",
			mode:    ModeSync,
			mutate:  func(c *Config) { c.Sync.BatchSize = 101 },
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "unknown mode",
			mode:    Mode("shuffle"),
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			config := validSyncConfig()
			if tt.mutate != nil {
				tt.mutate(config)
			}

			err := config.Validate(tt.mode)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantKey != "" && !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("expected error to name %s, got %v", tt.wantKey, err)
			}
		})
	}

	t.Run("defaults without spotify client", func(t *testing.T) {
		config := DefaultConfig()
		config.Credentials.Spotify.RefreshToken = "refresh"
		config.Credentials.GitHub.Token = "ghp_token"
		config.Credentials.GitHub.Repository = "owner/repo"
		config.Sync.PlaylistID = "playlist"

		err := config.Validate(ModeSync)
		if !errors.Is(err, ErrMissingConfig) {
			t.Fatalf("expected %v, got %v", ErrMissingConfig, err)
		}
		if !strings.Contains(err.Error(), "SPOTIFY_CLIENT_ID") {
			t.Errorf("expected error to name SPOTIFY_CLIENT_ID, got %v", err)
		}

		config.Credentials.Spotify.ClientID = "client"
		err = config.Validate(ModeSync)
		if err == nil || !strings.Contains(err.Error(), "SPOTIFY_CLIENT_SECRET") {
			t.Errorf("expected error to name SPOTIFY_CLIENT_SECRET, got %v", err)
		}
	})
}

func TestSpotifyConfigUpdate(t *testing.T) {
	t.Run("stores refresh token", func(t *testing.T) {
		var s SpotifyConfig
		if err := s.Update(&oauth2.Token{AccessToken: "a", RefreshToken: "r"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.RefreshToken != "r" {
			t.Errorf("expected refresh token r, got %s", s.RefreshToken)
		}
	})

	t.Run("rejects token without refresh token", func(t *testing.T) {
		s := SpotifyConfig{RefreshToken: "old"}
		err := s.Update(&oauth2.Token{AccessToken: "a"})
		if !errors.Is(err, ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
		if s.RefreshToken != "old" {
			t.Error("refresh token should be unchanged")
		}
	})

	t.Run("Map", func(t *testing.T) {
		m := SpotifyConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "uri"}.Map()
		if m["client_id"] != "id" || m["client_secret"] != "secret" || m["redirect_uri"] != "uri" {
			t.Errorf("unexpected map %v", m)
		}
	})
}
