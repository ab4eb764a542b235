// Package models defines the domain entities of the catalog reconciliation engine and its persistence interfaces.
//
// The package contains two categories of types:
//
// 1. Catalog values: immutable data produced by a source catalog or returned by the target
//   - [Track] : a library row with play count and deletion flag
//   - [Playlist] : a named, non-empty, ordered list of tracks
//   - [MatchResult] : the target identifier for a source entity, empty when nothing matched
//   - [Kind] : the entity kind a reconciliation pass operates on (albums, artists, playlists)
//
// 2. Persistent entities: database-backed models with full lifecycle management
//   - [Run] : one reconciliation pass with its counters and resume index
//
// Persistent entities implement the [Model] interface; [Repository] defines standard CRUD access.
package models
