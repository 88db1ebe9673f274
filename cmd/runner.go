package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/repositories"
	"github.com/desertthunder/likesync/internal/services"
	"github.com/desertthunder/likesync/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    services.OAuthService
	secrets    services.SecretService
	db         *sql.DB
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Spotify, Secrets and DB are built from Config on first use when nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    services.OAuthService
	Secrets    services.SecretService
	DB         *sql.DB
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		secrets:    opts.Secrets,
		db:         opts.DB,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, backupCommand, authCommand, secretsCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// spotifyService returns the injected service or builds one from the configured client credentials.
func (r *Runner) spotifyService() (services.OAuthService, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}

	svc, err := services.NewSpotifyService(r.config.Credentials.Spotify.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	svc.SetLogger(shared.WithLogger(r.logger, "service", "spotify"))

	r.spotify = svc
	return svc, nil
}

// secretStore returns the injected store or builds one from the configured GitHub credentials.
func (r *Runner) secretStore() (services.SecretService, error) {
	if r.secrets != nil {
		return r.secrets, nil
	}

	github := r.config.Credentials.GitHub
	store, err := services.NewGitHubSecretStore(github.APIURL, github.Repository, github.Token)
	if err != nil {
		return nil, err
	}

	r.secrets = store
	return store, nil
}

// authenticate exchanges the configured refresh token and checks the user profile.
//
// The configured value is either a bare refresh token or a credential published by a previous run.
func (r *Runner) authenticate(ctx context.Context, svc services.Service) (*services.SpotifyUser, error) {
	r.writePlain("Authenticating... ")

	cred, err := models.ParseCredential(r.config.Credentials.Spotify.RefreshToken)
	if err != nil {
		r.writePlain("%s\n", failedMarker())
		return nil, fmt.Errorf("%w: %v", shared.ErrMissingCredentials, err)
	}

	if err := svc.Authenticate(ctx, cred.Token.RefreshToken); err != nil {
		r.writePlain("%s\n", failedMarker())
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	user, err := svc.VerifyUser(ctx)
	if err != nil {
		r.writePlain("%s\n", failedMarker())
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	name := user.DisplayName
	if name == "" {
		name = user.ID
	}
	r.writePlain("%s\n", okMarker(name))
	return user, nil
}

// syncLog opens the sync log database. The returned func closes it unless the database was injected.
func (r *Runner) syncLog() (*repositories.SyncLogRepository, func(), error) {
	if r.db != nil {
		return repositories.NewSyncLogRepository(r.db), func() {}, nil
	}

	dbConfig := r.config.Database
	db, err := shared.NewDatabase(dbConfig.Path)
	if err != nil {
		return nil, nil, err
	}
	if dbConfig.Path != ":memory:" {
		shared.ConfigureDatabase(db, dbConfig.MaxOpenConns, dbConfig.MaxIdleConns)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	closer := func() {
		if err := db.Close(); err != nil {
			r.logger.Warn("failed to close database", "error", err)
		}
	}
	return repositories.NewSyncLogRepository(db), closer, nil
}

// saveTokens stores the refresh token of token in the config file.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: no configuration loaded", shared.ErrMissingConfig)
	}
	if r.configPath == "" {
		return fmt.Errorf("%w: config path", shared.ErrMissingArgument)
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.logger.Info("saved refresh token", "path", r.configPath)
	return nil
}

// credentialRelay hands refreshed tokens to the publisher.
//
// The token source keeps its callback for the life of the client, so sends after Close are dropped.
// Every dropped token is counted.
type credentialRelay struct {
	mu      sync.Mutex
	ch      chan models.Credential
	closed  bool
	dropped int
	logger  *log.Logger
}

func newCredentialRelay(size int, logger *log.Logger) *credentialRelay {
	return &credentialRelay{ch: make(chan models.Credential, size), logger: logger}
}

// Send is a [services.TokenRefreshCallback].
func (c *credentialRelay) Send(token *oauth2.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.dropped++
		c.logger.Warn("token refreshed after rotation stopped, not published")
		return
	}

	select {
	case c.ch <- models.Credential{Token: token}:
	default:
		c.dropped++
		c.logger.Warn("credential queue full, dropping refreshed token")
	}
}

// Dropped returns how many refreshed tokens never reached the publisher.
func (c *credentialRelay) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *credentialRelay) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", styles.title.Render(title))
	r.writePlain("═══════════════════════════════════════\n")
}
