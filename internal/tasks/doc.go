// Package tasks reconciles a source music catalog against the target catalog with real-time progress reporting.
//
// # Core Operations
//
// [Reconciler] runs one pass per entity kind:
//
//  1. [Reconciler.Albums] : dedup by artist and album, match, then save matched albums
//  2. [Reconciler.Artists] : dedup by artist, match, then follow matched artists
//  3. [Reconciler.Playlists] : mirror every source playlist onto a same-named target playlist
//
// Library passes drop duplicates before liveness so a dead first occurrence consumes its key.
// Each pass writes an audit line per entity and buffers matched URIs in a [BatchWriter].
//
// # Dry Run
//
// Without [RunOptions.Commit] every search and audit line still happens but no mutating
// call reaches the target catalog, including playlist creation.
//
// # Progress Reporting
//
// Operations accept an optional channel of [ProgressUpdate]. Sends use select with default
// so a slow consumer never stalls a pass.
package tasks
