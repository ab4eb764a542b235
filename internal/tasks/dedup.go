package tasks

import (
	"iter"

	"github.com/desertthunder/catalogx/internal/models"
)

// KeyFunc derives the dedup identity of a track.
type KeyFunc func(models.Track) string

// Dedup yields the first track seen for each key and drops later ones.
//
// The seen set lives inside the returned sequence and starts empty on every iteration.
func Dedup(seq iter.Seq[models.Track], key KeyFunc) iter.Seq[models.Track] {
	return func(yield func(models.Track) bool) {
		seen := make(map[string]struct{})
		for t := range seq {
			k := key(t)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			if !yield(t) {
				return
			}
		}
	}
}

// Live drops deleted and never-played tracks.
func Live(seq iter.Seq[models.Track]) iter.Seq[models.Track] {
	return func(yield func(models.Track) bool) {
		for t := range seq {
			if !t.Live() {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}
