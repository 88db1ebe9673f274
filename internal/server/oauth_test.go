package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

type mockExchanger struct {
	token    *oauth2.Token
	err      error
	code     string
	verifier string
}

func (m *mockExchanger) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	m.code = code
	m.verifier = verifier
	return m.token, m.err
}

func TestOAuthHandler(t *testing.T) {
	t.Run("exchanges code with verifier", func(t *testing.T) {
		exchanger := &mockExchanger{token: &oauth2.Token{AccessToken: "a", RefreshToken: "r"}}
		handler := NewOAuthHandler(exchanger, "state-1", "verifier-1")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=abc", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if exchanger.code != "abc" || exchanger.verifier != "verifier-1" {
			t.Errorf("unexpected exchange args %q %q", exchanger.code, exchanger.verifier)
		}

		result := <-handler.Result()
		if result.Error() != nil || result.Token.RefreshToken != "r" {
			t.Errorf("unexpected result %+v", result)
		}
	})

	t.Run("rejects mismatched state", func(t *testing.T) {
		exchanger := &mockExchanger{}
		handler := NewOAuthHandler(exchanger, "state-1", "v")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=other&code=abc", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if exchanger.code != "" {
			t.Error("code should not be exchanged")
		}
		result := <-handler.Result()
		if !errors.Is(result.Error(), ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", result.Error())
		}
	})

	t.Run("authorization denied", func(t *testing.T) {
		handler := NewOAuthHandler(&mockExchanger{}, "s", "v")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&error=access_denied", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if result := <-handler.Result(); result.Error() == nil {
			t.Error("expected error result")
		}
	})

	t.Run("exchange failure", func(t *testing.T) {
		handler := NewOAuthHandler(&mockExchanger{err: errors.New("bad code")}, "s", "v")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&code=abc", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if result := <-handler.Result(); result.Error() == nil {
			t.Error("expected error result")
		}
	})

	t.Run("second callback is rejected", func(t *testing.T) {
		handler := NewOAuthHandler(&mockExchanger{token: &oauth2.Token{}}, "s", "v")

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s&code=abc", nil))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&code=abc", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Send delivers once and closes", func(t *testing.T) {
		handler := NewOAuthHandler(&mockExchanger{}, "s", "v")
		handler.Send(OAuthResult{Token: &oauth2.Token{AccessToken: "first"}})
		handler.Send(OAuthResult{Token: &oauth2.Token{AccessToken: "second"}})

		first := <-handler.Result()
		if first.Token.AccessToken != "first" {
			t.Errorf("expected first result, got %s", first.Token.AccessToken)
		}
		if _, ok := <-handler.Result(); ok {
			t.Error("expected channel to be closed")
		}
	})
}
