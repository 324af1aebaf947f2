package autoplay

import (
	"context"

	"github.com/llehouerou/wavebot/internal/lastfm"
	"github.com/llehouerou/wavebot/internal/lavalink"
	"github.com/llehouerou/wavebot/internal/playback"
	"github.com/llehouerou/wavebot/internal/state"
)

// Player is the guild player the engine feeds.
type Player interface {
	GuildID() string
	QueueLen() int
	Current() *playback.Track
	Playing() bool
	Paused() bool
	Node() playback.Node
	Add(tracks ...playback.Track)
	Play(ctx context.Context) error
}

// Searcher resolves radio mix URLs and keyword searches.
type Searcher interface {
	Connected() bool
	Search(ctx context.Context, identifier string) ([]lavalink.Track, error)
}

// SimilarArtistSource looks up artists similar to a given one.
type SimilarArtistSource interface {
	GetSimilarArtists(artist string, limit int) ([]lastfm.SimilarArtist, error)
}

// ConfigStore persists the per-guild autoplay flag.
type ConfigStore interface {
	GuildConfig(guildID string) (state.GuildConfig, error)
	SetAutoplay(guildID string, enabled bool) error
}

var (
	_ Player              = (*playback.Player)(nil)
	_ Searcher            = (*lavalink.Node)(nil)
	_ SimilarArtistSource = (*lastfm.Client)(nil)
	_ ConfigStore         = (*state.Manager)(nil)
)
