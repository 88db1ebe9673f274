// Spotify Web API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	libraryPageSize  = 50
	playlistPageSize = 100

	// MaxBatchSize is the most URIs a single playlist add or remove accepts.
	MaxBatchSize = 100

	// maxRetryAfter is the longest Retry-After, in seconds, honored before the single retry.
	maxRetryAfter = 30
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country"`
	Product     string `json:"product"` // premium, free, etc.
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	Album   SpotifyAlbum    `json:"album"`
	URI     string          `json:"uri"`
	IsLocal bool            `json:"is_local"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifySavedTrack is an item of the liked songs listing or of a playlist listing.
//
// Track is null for tracks that are no longer available.
type SpotifySavedTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of saved or playlist tracks.
type SpotifyPaginatedTracks struct {
	Items  []SpotifySavedTrack `json:"items"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
	Next   *string             `json:"next"`
}

type uriRef struct {
	URI string `json:"uri"`
}

type addTracksRequest struct {
	URIs     []string `json:"uris"`
	Position *int     `json:"position,omitempty"`
}

type removeTracksRequest struct {
	Tracks []uriRef `json:"tracks"`
}

// TokenRefreshCallback receives every new access token the service obtains.
type TokenRefreshCallback func(token *oauth2.Token)

// refreshableTokenSource wraps a token source and reports each token that differs from the last one seen.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback TokenRefreshCallback

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}

// SpotifyService implements [Service] against the Spotify Web API.
//
// Uses [oauth2] refresh-token grants for authentication; each call that fails with 429 or a 5xx status is retried once.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	tokenSource    oauth2.TokenSource
	httpClient     *http.Client
	baseURL        string
	retryWait      time.Duration
	onTokenRefresh TokenRefreshCallback
	logger         *log.Logger
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-library-read",
			"playlist-read-private",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
		retryWait:  time.Second,
		logger:     log.Default(),
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SetLogger replaces the logger used for retry warnings.
func (s *SpotifyService) SetLogger(l *log.Logger) {
	if l != nil {
		s.logger = l
	}
}

// SetTokenRefreshCallback registers fn to receive refreshed tokens. Must be called before [SpotifyService.Authenticate].
func (s *SpotifyService) SetTokenRefreshCallback(fn TokenRefreshCallback) {
	s.onTokenRefresh = fn
}

// Authenticate exchanges refreshToken for an access token and prepares the authenticated client.
//
// The first exchange happens here so that a revoked token fails before any sync work starts.
func (s *SpotifyService) Authenticate(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return shared.ErrNoRefreshToken
	}

	src := &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}),
		callback: s.onTokenRefresh,
	}

	token, err := src.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	s.token = token
	s.tokenSource = src
	s.httpClient = oauth2.NewClient(ctx, src)
	return nil
}

// GetAuthURL returns the authorization URL for a PKCE login with the given verifier.
func (s *SpotifyService) GetAuthURL(state, verifier string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code for a token and authenticates the service with it.
func (s *SpotifyService) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}

	src := &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, token),
		callback: s.onTokenRefresh,
		last:     token.AccessToken,
	}

	s.token = token
	s.tokenSource = src
	s.httpClient = oauth2.NewClient(ctx, src)
	return token, nil
}

// Token returns the current token, refreshing it if expired.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	if s.tokenSource == nil {
		return nil, shared.ErrNotAuthenticated
	}

	token, err := s.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	s.token = token
	return token, nil
}

// doRequest performs an authenticated request, retrying once on 429 and 5xx responses.
//
// endpoint is either a path below the API base URL or an absolute URL such as a page's next link.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if s.tokenSource == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	operation := func() (struct{}, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) {
				return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err))
			}
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %v", shared.ErrAPIRequest, err))
		}
		defer resp.Body.Close()

		return struct{}{}, decodeResponse(resp, result)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(s.retryWait)),
		backoff.WithMaxTries(2),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.logger.Warn("retrying spotify request", "method", method, "url", apiURL, "after", wait, "error", err)
		}),
	)

	var retryAfter *backoff.RetryAfterError
	if errors.As(err, &retryAfter) {
		return fmt.Errorf("%w: %s %s: rate limited", shared.ErrAPIRequest, method, endpoint)
	}
	return err
}

// decodeResponse maps the response status to an error and decodes a successful body into result.
//
// Errors that are not worth retrying are wrapped with [backoff.Permanent].
func decodeResponse(resp *http.Response, result any) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return backoff.Permanent(fmt.Errorf("%w: spotify returned status %d", shared.ErrAuthFailed, resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(fmt.Errorf("%w: spotify returned status %d", shared.ErrPlaylistNotFound, resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds > 0 {
			if seconds > maxRetryAfter {
				return backoff.Permanent(fmt.Errorf("%w: spotify rate limited for %ds", shared.ErrAPIRequest, seconds))
			}
			return backoff.RetryAfter(seconds)
		}
		return fmt.Errorf("%w: spotify returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: spotify returned status %d", shared.ErrAPIRequest, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return backoff.Permanent(fmt.Errorf("%w: spotify returned status %d", shared.ErrAPIRequest, resp.StatusCode))
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
		return backoff.Permanent(fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err))
	}
	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// VerifyUser fetches the profile and fails with [shared.ErrAuthFailed] when it carries no id.
func (s *SpotifyService) VerifyUser(ctx context.Context) (*SpotifyUser, error) {
	user, err := s.UserProfile(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(user.ID) == "" {
		return nil, fmt.Errorf("%w: spotify returned an empty user profile", shared.ErrAuthFailed)
	}
	return user, nil
}

// FirstPage fetches the first page of the library or of a playlist.
func (s *SpotifyService) FirstPage(ctx context.Context, scope models.Scope) (*models.Page, error) {
	var endpoint string
	switch scope.Kind {
	case models.LibraryScope:
		endpoint = fmt.Sprintf("/me/tracks?limit=%d", libraryPageSize)
	case models.PlaylistScope:
		if scope.ID == "" {
			return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
		}
		endpoint = fmt.Sprintf("/playlists/%s/tracks?limit=%d", url.PathEscape(scope.ID), playlistPageSize)
	default:
		return nil, fmt.Errorf("%w: unknown scope %v", shared.ErrInvalidArgument, scope.Kind)
	}

	return s.fetchPage(ctx, scope, endpoint)
}

// NextPage follows the next link of page. Returns nil, nil after the last page.
func (s *SpotifyService) NextPage(ctx context.Context, page *models.Page) (*models.Page, error) {
	if page == nil || page.Next == "" {
		return nil, nil
	}
	return s.fetchPage(ctx, page.Scope, page.Next)
}

func (s *SpotifyService) fetchPage(ctx context.Context, scope models.Scope, endpoint string) (*models.Page, error) {
	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", scope, err)
	}

	page := &models.Page{Scope: scope, Items: make([]models.Track, 0, len(response.Items))}
	if response.Next != nil {
		page.Next = *response.Next
	}

	for _, item := range response.Items {
		if item.Track == nil {
			continue
		}
		track := toTrack(*item.Track)
		if scope.Kind == models.LibraryScope {
			track.AddedAt = parseAddedAt(item.AddedAt)
		}
		page.Items = append(page.Items, track)
	}
	return page, nil
}

// InsertAt adds a single track at position in the playlist.
func (s *SpotifyService) InsertAt(ctx context.Context, playlistID, uri string, position int) error {
	body := addTracksRequest{URIs: []string{uri}, Position: &position}
	return s.doRequest(ctx, http.MethodPost, playlistTracksEndpoint(playlistID), body, nil)
}

// AddMany appends up to [MaxBatchSize] tracks to the end of the playlist.
func (s *SpotifyService) AddMany(ctx context.Context, playlistID string, uris []string) error {
	if err := checkBatch(uris); err != nil {
		return err
	}
	return s.doRequest(ctx, http.MethodPost, playlistTracksEndpoint(playlistID), addTracksRequest{URIs: uris}, nil)
}

// RemoveMany removes every occurrence of up to [MaxBatchSize] tracks from the playlist.
func (s *SpotifyService) RemoveMany(ctx context.Context, playlistID string, uris []string) error {
	if err := checkBatch(uris); err != nil {
		return err
	}

	body := removeTracksRequest{Tracks: make([]uriRef, len(uris))}
	for i, uri := range uris {
		body.Tracks[i] = uriRef{URI: uri}
	}
	return s.doRequest(ctx, http.MethodDelete, playlistTracksEndpoint(playlistID), body, nil)
}

func playlistTracksEndpoint(playlistID string) string {
	return fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
}

func checkBatch(uris []string) error {
	if len(uris) == 0 {
		return fmt.Errorf("%w: no track URIs provided", shared.ErrMissingArgument)
	}
	if len(uris) > MaxBatchSize {
		return fmt.Errorf("%w: maximum %d track URIs allowed, got %d", shared.ErrInvalidArgument, MaxBatchSize, len(uris))
	}
	return nil
}

// toTrack converts an API track, keeping the first artist and the largest album image.
func toTrack(st SpotifyTrack) models.Track {
	track := models.Track{
		ID:    st.ID,
		URI:   st.URI,
		Name:  st.Name,
		Album: st.Album.Name,
	}

	if len(st.Artists) > 0 {
		track.Artist = st.Artists[0].Name
	}

	var height int
	for _, img := range st.Album.Images {
		if track.ImageURL == "" || img.Height > height {
			track.ImageURL = img.URL
			height = img.Height
		}
	}

	if track.URI == "" && track.ID != "" {
		track.URI = "spotify:track:" + track.ID
	}
	return track
}

func parseAddedAt(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
