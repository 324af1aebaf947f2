package lastfm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shkh/lastfm-go/lastfm"
)

// Client wraps the Last.fm API for artist similarity lookups.
type Client struct {
	api *lastfm.Api
}

// New creates a new Last.fm client with the given API credentials.
// The secret is only needed for signed calls and may be empty.
func New(apiKey, apiSecret string) *Client {
	return &Client{api: lastfm.New(apiKey, apiSecret)}
}

// GetSimilarArtists fetches similar artists from Last.fm (artist.getSimilar).
// Results keep the order Last.fm returns them in, most similar first.
func (c *Client) GetSimilarArtists(artist string, limit int) ([]SimilarArtist, error) {
	params := lastfm.P{
		"artist": artist,
		"limit":  limit,
	}

	result, err := c.api.Artist.GetSimilar(params)
	if err != nil {
		return nil, fmt.Errorf("get similar artists: %w", err)
	}

	artists := make([]SimilarArtist, 0, len(result.Similars))
	for _, a := range result.Similars {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		artists = append(artists, SimilarArtist{
			Name:       name,
			MatchScore: parseMatch(a.Match),
		})
	}

	return artists, nil
}

// parseMatch converts Last.fm's textual match score; parse failures mean 0.
func parseMatch(s string) float64 {
	score, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return score
}
