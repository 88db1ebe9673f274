// Package server runs the temporary HTTP server behind "auth login".
//
// # OAuth Callback Handler
//
// [OAuthHandler] completes the authorization code flow with PKCE.
// It checks the state parameter, trades the code and the verifier for a token through a [CodeExchanger],
// and sends exactly one [OAuthResult] on its result channel. Later callbacks are rejected.
//
// # Callback Server
//
// [CallbackServer] listens on the configured host and port (default 127.0.0.1:3000), which must match
// the redirect URI registered with Spotify, and shuts down once the result arrives or the wait times out.
//
// # Router Infrastructure
//
// [BasicRouter] uses [http.ServeMux] with method filtering and a [Middleware] stack.
// [RequestLogger] logs every request with charmbracelet/log.
package server
