package autoplay

import (
	"strings"
	"time"

	"github.com/llehouerou/wavebot/internal/lavalink"
	"github.com/llehouerou/wavebot/internal/playback"
)

const (
	// MinTrackLength and MaxTrackLength bound declared track lengths.
	MinTrackLength = time.Minute
	MaxTrackLength = 12 * time.Minute
)

// titleBlacklist holds case-insensitive title substrings that mark
// derivative or non-music uploads.
var titleBlacklist = []string{
	"remix", "cover", "karaoke", "instrumental", "acoustic version",
	"live", "concert", "reaction", "tutorial", "lesson", "how to",
	"slowed", "reverb", "sped up", "nightcore", "8d audio", "bass boosted",
	"lyrics", "lyric video", "letra", "tłumaczenie", "napisy", "set",
	"podcast", "interview", "vlog", "challenge", "compilation", "best of",
	"top 10", "top 5", "review", "unboxing", "trailer", "teaser",
	"behind the scenes", "making of", "explained", "breakdown",
}

func isBlacklisted(title string) bool {
	if title == "" {
		return false
	}
	lower := strings.ToLower(title)
	for _, term := range titleBlacklist {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func isRecent(info lavalink.TrackInfo, history []RecentTrackEntry) bool {
	if info.Identifier == "" {
		return false
	}
	for _, r := range history {
		if r.Identifier == info.Identifier || (r.Title == info.Title && r.Author == info.Author) {
			return true
		}
	}
	return false
}

// IsTrackSuitable reports whether candidate may follow lastTrack given the
// guild's recent history, using the default length bounds.
func IsTrackSuitable(candidate lavalink.Track, history []RecentTrackEntry, lastTrack *playback.Track) bool {
	return trackSuitable(candidate, history, lastTrack, MinTrackLength, MaxTrackLength)
}

func trackSuitable(candidate lavalink.Track, history []RecentTrackEntry, lastTrack *playback.Track, minLen, maxLen time.Duration) bool {
	info := candidate.Info
	if info.Identifier == "" && info.Title == "" {
		return false
	}
	if lastTrack != nil && info.Identifier == lastTrack.Info.Identifier {
		return false
	}
	if isRecent(info, history) {
		return false
	}
	if isBlacklisted(info.Title) {
		return false
	}
	// Zero means unknown and is let through.
	if length := info.Duration(); length > 0 && (length < minLen || length > maxLen) {
		return false
	}
	return true
}
