// Package services defines the [Catalog] interface for music catalog providers and implements it for Spotify.
//
// # Catalog Interface
//
// A discovery run needs six operations from the catalog: artist search, related artists,
// top tracks, batched audio features, playlist creation and batched track appends.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 tokens issued ahead of time. With a refresh token the
// [oauth2.Client] renews the access token automatically; [SpotifyService.SetTokenRefreshCallback]
// reports each new token so the caller can persist it.
//
// Every request passes through a [rate.Limiter] and a retry loop. Transport errors, 429 and 5xx
// responses are retried with exponential backoff, honouring Retry-After.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrTokenExpired] : 401 from the API
//   - [shared.ErrNotFound] : 404 from the API
//   - [shared.ErrArtistNotFound] : search returned no artists
//   - [shared.ErrAPIRequest] : transport failure or any other non-2xx status
//
// # Batch Limits
//
// AudioFeatures and AddTracks accept at most [shared.MaxBatchSize] items. Callers chunk.
package services
