// Package server runs the local OAuth callback server used by `catalogx auth spotify`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] uses
// [http.ServeMux] internally with method filtering, and [RequestLogger] logs each request.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the authorization code callback. It validates the state parameter,
// exchanges the code through an [Exchanger] and sends the result through a channel.
// It only processes one callback.
//
// [CallbackServer] binds the configured address, serves the handler and shuts down once a
// result arrives or the timeout elapses.
package server
