// package services defines the HTTP API clients used by the sync engine
//
// Spotify (library, playlists), GitHub (repository secrets)
package services

import (
	"context"

	"github.com/desertthunder/likesync/internal/models"
	"golang.org/x/oauth2"
)

// Service defines the music provider surface the CLI drives: authentication, paginated reads and playlist mutations.
type Service interface {
	// Authenticate exchanges a refresh token for an access token.
	// Returns an error if the token is rejected.
	Authenticate(ctx context.Context, refreshToken string) error

	// SetTokenRefreshCallback registers a function that receives each new token.
	SetTokenRefreshCallback(fn TokenRefreshCallback)

	// Token returns the current token, refreshing it if it has expired.
	Token() (*oauth2.Token, error)

	// VerifyUser checks that the authenticated user profile is usable.
	VerifyUser(ctx context.Context) (*SpotifyUser, error)

	// FirstPage fetches the first page of a collection.
	FirstPage(ctx context.Context, scope models.Scope) (*models.Page, error)

	// NextPage fetches the page after page, or nil at the end.
	NextPage(ctx context.Context, page *models.Page) (*models.Page, error)

	// InsertAt adds one track at a position of a playlist.
	InsertAt(ctx context.Context, playlistID, uri string, position int) error

	// AddMany appends tracks to the end of a playlist.
	AddMany(ctx context.Context, playlistID string, uris []string) error

	// RemoveMany removes tracks from a playlist.
	RemoveMany(ctx context.Context, playlistID string, uris []string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService is a [Service] that supports an interactive authorization code login.
type OAuthService interface {
	Service

	// GetAuthURL returns the URL the user visits to grant access.
	GetAuthURL(state, verifier string) string

	// Exchange trades the callback code for a token.
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
}

// SecretService stores encrypted values as repository secrets.
type SecretService interface {
	PublicKey(ctx context.Context) (*models.RecipientKey, error)
	PutSecret(ctx context.Context, name string, payload models.SecretPayload) error
}
