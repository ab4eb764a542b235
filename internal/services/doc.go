// Package services defines the [Catalog] capability interface for the target provider and
// the [Source] interface for source providers, and implements them for Spotify and
// YouTube Music.
//
// # Catalog Interface
//
// The reconciliation engine only ever sees [Catalog]: search, playlist lookup/creation,
// playlist replace/append, saving albums and following artists. Each write method takes
// one logical batch; [SpotifyService] splits it into the request sizes Spotify accepts
// (20 album ids, 50 artist ids, 100 playlist URIs).
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
// Refreshed tokens are reported through [SpotifyService.SetTokenRefreshCallback] so the
// caller can persist them. Requests are throttled with a [rate.Limiter] when
// [WithRequestsPerSecond] is set.
//
// # YouTube Music Implementation
//
// [YouTubeService] communicates with the FastAPI proxy server wrapping ytmusicapi and is
// read-only. The auth_file path is sent via X-Auth-File header on each request.
//
// # Error Handling
//
// Non-2xx responses map onto the shared sentinels:
//   - 429: [*RateLimitError] (matches [shared.ErrRateLimited]) with the Retry-After hint
//   - 401/403: [shared.ErrAuthFailed]
//   - 5xx and transport failures: [shared.ErrServiceUnavailable] ([shared.ErrSourceUnavailable] for the proxy)
//   - anything else: [shared.ErrAPIRequest]
package services
