package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/shared"
)

const (
	githubBaseURL    = "https://api.github.com"
	githubAPIVersion = "2022-11-28"
)

// GitHubSecretStore implements [SecretService] with the GitHub Actions repository secrets API.
type GitHubSecretStore struct {
	baseURL    string
	owner      string
	repo       string
	token      string
	httpClient *http.Client
}

// NewGitHubSecretStore creates a store for repository ("owner/name") authenticated with token.
//
// An empty apiURL selects api.github.com.
func NewGitHubSecretStore(apiURL, repository, token string) (*GitHubSecretStore, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing github token", shared.ErrMissingCredentials)
	}

	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("%w: repository must be owner/name, got %q", shared.ErrInvalidConfig, repository)
	}

	if apiURL == "" {
		apiURL = githubBaseURL
	}

	return &GitHubSecretStore{
		baseURL:    strings.TrimSuffix(apiURL, "/"),
		owner:      owner,
		repo:       repo,
		token:      token,
		httpClient: http.DefaultClient,
	}, nil
}

// Repository returns the owner/name the store writes to.
func (g *GitHubSecretStore) Repository() string {
	return g.owner + "/" + g.repo
}

// PublicKey fetches the repository's secret encryption key.
func (g *GitHubSecretStore) PublicKey(ctx context.Context) (*models.RecipientKey, error) {
	var key models.RecipientKey
	if err := g.doRequest(ctx, http.MethodGet, "/actions/secrets/public-key", nil, &key); err != nil {
		return nil, err
	}

	if key.KeyID == "" || key.Key == "" {
		return nil, fmt.Errorf("%w: github returned an incomplete public key", shared.ErrAPIRequest)
	}
	return &key, nil
}

// PutSecret creates or replaces the secret called name.
func (g *GitHubSecretStore) PutSecret(ctx context.Context, name string, payload models.SecretPayload) error {
	if name == "" {
		return fmt.Errorf("%w: secret name", shared.ErrMissingArgument)
	}
	return g.doRequest(ctx, http.MethodPut, "/actions/secrets/"+url.PathEscape(name), payload, nil)
}

func (g *GitHubSecretStore) doRequest(ctx context.Context, method, path string, body any, result any) error {
	apiURL := fmt.Sprintf("%s/repos/%s/%s%s", g.baseURL, url.PathEscape(g.owner), url.PathEscape(g.repo), path)

	var buf *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		buf = bytes.NewReader(payload)
	}

	var req *http.Request
	var err error
	if buf != nil {
		req, err = http.NewRequestWithContext(ctx, method, apiURL, buf)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, apiURL, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: github returned status %d", shared.ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: github %s %s returned status %d", shared.ErrAPIRequest, method, path, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}
	return nil
}
