package autoplay

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	titleSeparators = []string{" - ", " – ", " — ", " | "}

	// "ft."/"feat."/"featuring"/"x" must stand alone so names like "Alex"
	// or "Artist X" survive. "&" and "," cut wherever they appear.
	featClause      = regexp.MustCompile(`(?i)\s+(?:ft\.?|feat\.?|featuring|x)\s.*$|\s*[&,].*$`)
	parenthetical   = regexp.MustCompile(`\s*\(.*?\)`)
	leadingWords    = regexp.MustCompile(`(?i)^([A-Za-z0-9\s&]+?)(?:\s*[('"])`)
	channelSuffixes = regexp.MustCompile(`(?i)\s*-?\s*(?:topic|vevo|official|music|records|label|entertainment)$`)
)

// ExtractArtistName guesses the artist of a track from its title, falling
// back to the uploader name. Returns a lower-cased name or "".
func ExtractArtistName(title, author string) string {
	for _, sep := range titleSeparators {
		head, _, found := strings.Cut(title, sep)
		if !found {
			continue
		}
		artist := featClause.ReplaceAllString(head, "")
		artist = parenthetical.ReplaceAllString(artist, "")
		artist = strings.ToLower(strings.TrimSpace(artist))
		if n := utf8.RuneCountInString(artist); n > 1 && n < 40 {
			return artist
		}
	}

	if m := leadingWords.FindStringSubmatch(title); m != nil {
		artist := strings.ToLower(strings.TrimSpace(m[1]))
		if n := utf8.RuneCountInString(artist); n > 1 && n < 30 {
			return artist
		}
	}

	return CleanArtistName(author)
}

// CleanArtistName normalizes an uploader name such as "Artist - Topic" or
// "ArtistVEVO" into a lower-cased artist name.
func CleanArtistName(author string) string {
	s := strings.ToLower(author)
	s = channelSuffixes.ReplaceAllString(s, "")
	s = featClause.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
