// Package services implements the HTTP clients behind the sync engine: [SpotifyService] and [GitHubSecretStore].
//
// # Spotify Implementation
//
// [SpotifyService] authenticates with a refresh-token grant through [oauth2.Config.TokenSource].
// The token source is wrapped so that every newly issued access token is handed to the callback set with
// [SpotifyService.SetTokenRefreshCallback]; the CLI feeds those tokens to the credential publisher.
//
// Reads are paginated: [SpotifyService.FirstPage] addresses the liked songs library or a playlist and
// [SpotifyService.NextPage] follows the absolute next link until it is empty.
// Mutations insert single tracks at a position, or add and remove up to [MaxBatchSize] tracks per call.
//
// A call that fails with 429 or a 5xx status is retried once after a short wait, or after the Retry-After
// interval when the response carries one.
//
// # GitHub Implementation
//
// [GitHubSecretStore] reads the repository public key and writes sealed values with the Actions secrets API.
// It never sees plaintext.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrRefreshFailed] : refresh token rejected
//   - [shared.ErrAuthFailed] : 401/403 or an empty user profile
//   - [shared.ErrPlaylistNotFound] : 404
//   - [shared.ErrAPIRequest] : other HTTP or network failure
package services
