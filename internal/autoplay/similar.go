package autoplay

import (
	"context"
	"strings"

	"github.com/llehouerou/wavebot/internal/lastfm"
)

// FetchSimilarArtists returns up to SimilarArtistsKept lower-cased artists
// similar to artist. Lookups are cached; failures and timeouts yield nil.
// The configured fallback table is consulted when the lookup has nothing.
func (e *Engine) FetchSimilarArtists(ctx context.Context, artist string) []string {
	key := strings.ToLower(strings.TrimSpace(artist))
	if key == "" {
		return nil
	}

	if cached, ok := e.cache.Get(key); ok {
		e.logger.WithField("artist", key).Debug("using cached similar artists")
		return cached
	}

	if found := e.lookupSimilar(ctx, key); len(found) > 0 {
		e.cache.Set(key, found)
		return found
	}

	return e.cfg.FallbackSimilar[key]
}

func (e *Engine) lookupSimilar(ctx context.Context, artist string) []string {
	if e.similar == nil {
		return nil
	}

	similar, err := withTimeout(ctx, e.cfg.LastfmTimeout, func(context.Context) ([]lastfm.SimilarArtist, error) {
		return e.similar.GetSimilarArtists(artist, e.cfg.SimilarArtistsLimit)
	})
	if err != nil {
		e.logger.WithError(err).WithField("artist", artist).Info("similar artist lookup failed")
		return nil
	}

	names := make([]string, 0, min(len(similar), e.cfg.SimilarArtistsKept))
	for _, s := range similar {
		if len(names) == e.cfg.SimilarArtistsKept {
			break
		}
		if name := strings.ToLower(strings.TrimSpace(s.Name)); name != "" {
			names = append(names, name)
		}
	}
	return names
}
