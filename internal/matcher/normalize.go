package matcher

import "strings"

// punctuation maps every character the catalog search chokes on to a single space.
var punctuation = strings.NewReplacer(
	";", " ",
	"/", " ",
	`"`, " ",
	"(", " ",
	")", " ",
	"&", " ",
)

// Normalize prepares a title or album name for a search query: apostrophes are removed
// and each of ; / " ( ) & becomes one space. Case and whitespace runs are preserved.
func Normalize(s string) string {
	return punctuation.Replace(strings.ReplaceAll(s, "'", ""))
}

// NormalizeArtist is [Normalize] with every literal "and" substring also replaced by a
// space. The replacement is a plain substring match, so "Alexandra" becomes "Alex ra".
func NormalizeArtist(s string) string {
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "and", " ")
	return punctuation.Replace(s)
}
