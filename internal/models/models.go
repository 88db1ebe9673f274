package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const trackLinkPrefix = "https://open.spotify.com/track/"

// Track is a song as seen by the sync engine. Identity is the catalog ID only.
type Track struct {
	ID       string    `json:"id"`
	URI      string    `json:"uri"`
	Name     string    `json:"name"`
	Artist   string    `json:"artist"`
	Album    string    `json:"album"`
	ImageURL string    `json:"image_url,omitempty"`
	AddedAt  time.Time `json:"added_at,omitzero"` // zero outside the liked songs library
}

// Link returns the public web URL of the track.
func (t Track) Link() string {
	return trackLinkPrefix + t.ID
}

// Collection is an ordered list of tracks.
type Collection []Track

// IDs returns the set of track identifiers in c.
func (c Collection) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(c))
	for _, t := range c {
		ids[t.ID] = struct{}{}
	}
	return ids
}

// URIs returns the track URIs in collection order.
func (c Collection) URIs() []string {
	uris := make([]string, len(c))
	for i, t := range c {
		uris[i] = t.URI
	}
	return uris
}

// Page is one response of a paginated listing. An empty Next marks the last page.
type Page struct {
	Scope Scope
	Items []Track
	Next  string
}

// ScopeKind selects which listing a [Scope] addresses.
type ScopeKind int

const (
	LibraryScope ScopeKind = iota
	PlaylistScope
)

func (k ScopeKind) String() string {
	switch k {
	case LibraryScope:
		return "library"
	case PlaylistScope:
		return "playlist"
	default:
		return "unknown"
	}
}

// Scope identifies a collection: the user's liked songs, or a playlist by ID.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// Library is the scope of the user's liked songs.
func Library() Scope {
	return Scope{Kind: LibraryScope}
}

// Playlist is the scope of the playlist with the given ID.
func Playlist(id string) Scope {
	return Scope{Kind: PlaylistScope, ID: id}
}

func (s Scope) String() string {
	if s.Kind == PlaylistScope {
		return fmt.Sprintf("playlist:%s", s.ID)
	}
	return s.Kind.String()
}

// DiffResult holds the tracks to add to and remove from a target playlist.
//
// Added is ordered oldest-liked first; Removed keeps target order.
type DiffResult struct {
	Added   []Track
	Removed []Track
}

// Empty reports whether the target already mirrors the reference.
func (d DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Credential is a refreshed OAuth token, the plaintext input of a secret publish.
type Credential struct {
	Token *oauth2.Token
}

// credentialJSON fixes the field order of the serialized credential.
type credentialJSON struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	Scope        string    `json:"scope,omitempty"`
}

// Serialize encodes the credential as JSON with a stable field order.
func (c Credential) Serialize() ([]byte, error) {
	if c.Token == nil {
		return nil, fmt.Errorf("credential has no token")
	}

	scope, _ := c.Token.Extra("scope").(string)
	return json.Marshal(credentialJSON{
		AccessToken:  c.Token.AccessToken,
		TokenType:    c.Token.Type(),
		RefreshToken: c.Token.RefreshToken,
		Expiry:       c.Token.Expiry.UTC(),
		Scope:        scope,
	})
}

// ParseCredential reads a stored credential. A JSON object is decoded as written by [Credential.Serialize];
// anything else is taken as a bare refresh token.
func ParseCredential(raw string) (Credential, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Credential{}, fmt.Errorf("empty credential")
	}
	if !strings.HasPrefix(raw, "{") {
		return Credential{Token: &oauth2.Token{RefreshToken: raw}}, nil
	}

	var c credentialJSON
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Credential{}, fmt.Errorf("failed to decode credential: %w", err)
	}
	if c.RefreshToken == "" {
		return Credential{}, fmt.Errorf("credential has no refresh token")
	}

	token := &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
	if c.Scope != "" {
		token = token.WithExtra(map[string]any{"scope": c.Scope})
	}
	return Credential{Token: token}, nil
}

// RecipientKey is the public key the secret store encrypts against.
type RecipientKey struct {
	KeyID string `json:"key_id"`
	Key   string `json:"key"` // base64 encoded curve25519 public key
}

// SecretPayload is the body of a secret write.
type SecretPayload struct {
	EncryptedValue string `json:"encrypted_value"`
	KeyID          string `json:"key_id"`
}

// RunStatus is the lifecycle state of a [SyncRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// SyncRun records one execution of a sync or backup.
type SyncRun struct {
	ID            string
	Sequence      int
	Mode          string
	PlaylistID    string
	Status        RunStatus
	LibraryCount  int
	PlaylistCount int
	AddedCount    int
	RemovedCount  int
	Error         string
	StartedAt     time.Time
	CompletedAt   *time.Time
}

// Complete marks the run finished with the given diff.
func (r *SyncRun) Complete(diff DiffResult) {
	now := time.Now()
	r.Status = RunCompleted
	r.AddedCount = len(diff.Added)
	r.RemovedCount = len(diff.Removed)
	r.CompletedAt = &now
}

// Fail marks the run failed with err.
func (r *SyncRun) Fail(err error) {
	now := time.Now()
	r.Status = RunFailed
	r.CompletedAt = &now
	if err != nil {
		r.Error = err.Error()
	}
}

// LogAction is the kind of change a [TrackLogEntry] records.
type LogAction string

const (
	ActionAdded   LogAction = "added"
	ActionRemoved LogAction = "removed"
)

// Label is the capitalized form used in exports.
func (a LogAction) Label() string {
	switch a {
	case ActionAdded:
		return "Added"
	case ActionRemoved:
		return "Removed"
	default:
		return string(a)
	}
}

// TrackLogEntry is one added or removed track of a run.
type TrackLogEntry struct {
	ID       int64
	RunID    string
	Action   LogAction
	Track    Track
	LoggedAt time.Time
}

// SnapshotEntry is one row of the most recent library snapshot.
type SnapshotEntry struct {
	Position int
	RunID    string
	Track    Track
}
