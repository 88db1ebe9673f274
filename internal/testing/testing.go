// package testing contains shared testing utilities
package testing

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/services"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/oauth2"
)

// MockService is a test double for [services.OAuthService].
//
// Each collection is served as a single page. Mutations are recorded in call order.
type MockService struct {
	Collections map[string]models.Collection // keyed by models.Scope.String()

	AuthErr     error
	VerifyErr   error
	PageErr     error
	MutationErr error

	// RefreshedToken is handed to the refresh callback on Authenticate.
	RefreshedToken *oauth2.Token
	ExchangeToken  *oauth2.Token
	ExchangeErr    error

	mu       sync.Mutex
	callback services.TokenRefreshCallback
	token    *oauth2.Token
	Inserted []string
	Added    []string
	Removed  []string
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) Authenticate(ctx context.Context, refreshToken string) error {
	if m.AuthErr != nil {
		return m.AuthErr
	}

	m.mu.Lock()
	m.token = m.RefreshedToken
	if m.token == nil {
		m.token = &oauth2.Token{AccessToken: "access", RefreshToken: refreshToken}
	}
	callback := m.callback
	m.mu.Unlock()

	if callback != nil && m.RefreshedToken != nil {
		callback(m.RefreshedToken)
	}
	return nil
}

func (m *MockService) SetTokenRefreshCallback(fn services.TokenRefreshCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = fn
}

func (m *MockService) Token() (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == nil {
		return nil, errors.New("not authenticated")
	}
	return m.token, nil
}

func (m *MockService) VerifyUser(ctx context.Context) (*services.SpotifyUser, error) {
	if m.VerifyErr != nil {
		return nil, m.VerifyErr
	}
	return &services.SpotifyUser{ID: "mock-user", DisplayName: "Mock User"}, nil
}

func (m *MockService) FirstPage(ctx context.Context, scope models.Scope) (*models.Page, error) {
	if m.PageErr != nil {
		return nil, m.PageErr
	}
	return &models.Page{Scope: scope, Items: m.Collections[scope.String()]}, nil
}

func (m *MockService) NextPage(ctx context.Context, page *models.Page) (*models.Page, error) {
	return nil, nil
}

func (m *MockService) InsertAt(ctx context.Context, playlistID, uri string, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inserted = append(m.Inserted, uri)
	return m.MutationErr
}

func (m *MockService) AddMany(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Added = append(m.Added, uris...)
	return m.MutationErr
}

func (m *MockService) RemoveMany(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Removed = append(m.Removed, uris...)
	return m.MutationErr
}

func (m *MockService) GetAuthURL(state, verifier string) string {
	return "https://accounts.example.com/authorize?state=" + state
}

func (m *MockService) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	return m.ExchangeToken, m.ExchangeErr
}

// MockSecretStore is a test double for [services.SecretService] backed by a real recipient keypair.
type MockSecretStore struct {
	KeyID   string
	Public  *[32]byte
	Private *[32]byte
	KeyErr  error
	PutErr  error

	mu      sync.Mutex
	Secrets map[string]models.SecretPayload
}

// NewMockSecretStore generates a recipient keypair for a store advertising keyID.
func NewMockSecretStore(t *testing.T, keyID string) *MockSecretStore {
	t.Helper()
	public, private, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return &MockSecretStore{
		KeyID:   keyID,
		Public:  public,
		Private: private,
		Secrets: make(map[string]models.SecretPayload),
	}
}

func (m *MockSecretStore) PublicKey(ctx context.Context) (*models.RecipientKey, error) {
	if m.KeyErr != nil {
		return nil, m.KeyErr
	}
	return &models.RecipientKey{KeyID: m.KeyID, Key: base64.StdEncoding.EncodeToString(m.Public[:])}, nil
}

func (m *MockSecretStore) PutSecret(ctx context.Context, name string, payload models.SecretPayload) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Secrets[name] = payload
	return nil
}

// Open decrypts the stored secret name, failing the test if it is missing or does not open.
func (m *MockSecretStore) Open(t *testing.T, name string) []byte {
	t.Helper()
	m.mu.Lock()
	payload, ok := m.Secrets[name]
	m.mu.Unlock()
	if !ok {
		t.Fatalf("secret %s was not written", name)
	}

	sealed, err := base64.StdEncoding.DecodeString(payload.EncryptedValue)
	if err != nil {
		t.Fatalf("secret %s is not base64: %v", name, err)
	}
	opened, ok := box.OpenAnonymous(nil, sealed, m.Public, m.Private)
	if !ok {
		t.Fatalf("secret %s does not open with the recipient key", name)
	}
	return opened
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
