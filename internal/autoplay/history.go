package autoplay

import (
	"strings"

	"github.com/llehouerou/wavebot/internal/lavalink"
)

// RecentTrackEntry is one track remembered for de-duplication.
type RecentTrackEntry struct {
	Title      string
	Author     string
	Identifier string
	ArtistName string // lower-cased, "" when unknown
}

// SeedInfo identifies a track to base the next recommendation on.
type SeedInfo struct {
	Title      string
	Author     string
	Identifier string
}

// SeedFromTrack copies the seed fields of a resolved track.
func SeedFromTrack(t lavalink.Track) SeedInfo {
	return SeedInfo{Title: t.Info.Title, Author: t.Info.Author, Identifier: t.Info.Identifier}
}

// AddToRecentTracks records a track in the guild's history. A track whose
// identifier is already present is ignored; tracks without an identifier are
// always recorded. The oldest entry is dropped past MaxRecentTracks.
func (e *Engine) AddToRecentTracks(guildID string, t lavalink.Track) {
	if t.Info.Identifier == "" && t.Info.Title == "" {
		return
	}
	entry := RecentTrackEntry{
		Title:      t.Info.Title,
		Author:     t.Info.Author,
		Identifier: t.Info.Identifier,
		ArtistName: ExtractArtistName(t.Info.Title, t.Info.Author),
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	recent := e.recent[guildID]
	if entry.Identifier != "" {
		for _, r := range recent {
			if r.Identifier == entry.Identifier {
				return
			}
		}
	}
	recent = append(recent, entry)
	if over := len(recent) - e.cfg.MaxRecentTracks; over > 0 {
		recent = append([]RecentTrackEntry(nil), recent[over:]...)
	}
	e.recent[guildID] = recent
}

// RecentTracks returns a copy of the guild's history, oldest first.
func (e *Engine) RecentTracks(guildID string) []RecentTrackEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]RecentTrackEntry, len(e.recent[guildID]))
	copy(out, e.recent[guildID])
	return out
}

// recentArtists returns the artist names of the last n entries.
func recentArtists(history []RecentTrackEntry, n int) []string {
	start := max(len(history)-n, 0)
	var out []string
	for _, r := range history[start:] {
		if r.ArtistName != "" {
			out = append(out, strings.ToLower(r.ArtistName))
		}
	}
	return out
}

// isArtistOverplayed reports whether artist fills at least maxInRow of the
// last window entries.
func isArtistOverplayed(history []RecentTrackEntry, artist string, window, maxInRow int) bool {
	if artist == "" {
		return false
	}
	start := max(len(history)-window, 0)
	count := 0
	for _, r := range history[start:] {
		if strings.EqualFold(r.ArtistName, artist) {
			count++
		}
	}
	return count >= maxInRow
}
