package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestCallbackServer(t *testing.T) {
	t.Run("returns the token from the callback", func(t *testing.T) {
		handler := NewOAuthHandler(&mockExchanger{token: &oauth2.Token{RefreshToken: "r"}}, "s", "v")
		srv, err := NewCallbackServer("127.0.0.1:0", handler, nil)
		if err != nil {
			t.Fatalf("failed to start server: %v", err)
		}

		go func() {
			for range 50 {
				resp, err := http.Get("http://" + srv.Addr() + "/callback?state=s&code=abc")
				if err == nil {
					resp.Body.Close()
					return
				}
				time.Sleep(10 * time.Millisecond)
			}
		}()

		result, err := srv.Wait(context.Background(), 5*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Token.RefreshToken != "r" {
			t.Errorf("unexpected token %+v", result.Token)
		}
	})

	t.Run("times out", func(t *testing.T) {
		handler := NewOAuthHandler(&mockExchanger{}, "s", "v")
		srv, err := NewCallbackServer("127.0.0.1:0", handler, nil)
		if err != nil {
			t.Fatalf("failed to start server: %v", err)
		}

		_, err = srv.Wait(context.Background(), 20*time.Millisecond)
		if !errors.Is(err, ErrCallbackTimeout) {
			t.Errorf("expected ErrCallbackTimeout, got %v", err)
		}
	})

	t.Run("reports callback errors", func(t *testing.T) {
		handler := NewOAuthHandler(&mockExchanger{}, "s", "v")
		handler.Send(OAuthResult{err: ErrInvalidState})

		srv, err := NewCallbackServer("127.0.0.1:0", handler, nil)
		if err != nil {
			t.Fatalf("failed to start server: %v", err)
		}

		_, err = srv.Wait(context.Background(), time.Second)
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("address in use", func(t *testing.T) {
		first, err := NewCallbackServer("127.0.0.1:0", NewOAuthHandler(&mockExchanger{}, "s", "v"), nil)
		if err != nil {
			t.Fatalf("failed to start server: %v", err)
		}
		defer first.listener.Close()

		if _, err := NewCallbackServer(first.Addr(), NewOAuthHandler(&mockExchanger{}, "s", "v"), nil); err == nil {
			t.Error("expected error binding a used address")
		}
	})
}
