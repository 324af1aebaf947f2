package autoplay

import (
	"context"
	"slices"
	"strings"
)

// BuildSearchQueries returns keyword queries for the next pick: a few similar
// artists not heard recently, then the seed artist unless it just played.
func (e *Engine) BuildSearchQueries(ctx context.Context, seed SeedInfo, guildID string) []string {
	artist := ExtractArtistName(seed.Title, seed.Author)
	if artist == "" {
		return nil
	}

	history := e.RecentTracks(guildID)
	recent := recentArtists(history, e.cfg.MaxRecentArtists)

	var queries []string
	if similar := e.FetchSimilarArtists(ctx, artist); len(similar) > 0 {
		available := make([]string, 0, len(similar))
		for _, a := range similar {
			if !slices.Contains(recent, strings.ToLower(a)) {
				available = append(available, a)
			}
		}
		if len(available) == 0 {
			available = slices.Clone(similar)
		}
		e.shuffle(len(available), func(i, j int) {
			available[i], available[j] = available[j], available[i]
		})
		for _, a := range available[:min(len(available), e.cfg.MaxSimilarQueries)] {
			queries = append(queries, a+" music")
		}
	}

	// The seed's own entry doesn't count as a repeat of its artist.
	before := slices.DeleteFunc(slices.Clone(history), func(r RecentTrackEntry) bool {
		return seed.Identifier != "" && r.Identifier == seed.Identifier
	})
	if !slices.Contains(recentArtists(before, e.cfg.SeedRepeatWindow), artist) {
		queries = append(queries, artist+" music")
	}
	return queries
}
