package bot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"

	"github.com/llehouerou/wavebot/internal/lavalink"
	"github.com/llehouerou/wavebot/internal/playback"
)

const maxQueueLines = 10

// loadIdentifier turns a /play query into a Lavalink identifier: URLs pass
// through, anything else becomes a search.
func loadIdentifier(query, searchPrefix string) string {
	query = strings.TrimSpace(query)
	if strings.HasPrefix(query, "https://") || strings.HasPrefix(query, "http://") {
		return query
	}
	if searchPrefix == "" {
		searchPrefix = "ytsearch"
	}
	return searchPrefix + ":" + query
}

// selectTracks picks what to enqueue from a load result: the top hit of a
// search, or every track of a playlist. playlist is the playlist name, if any.
func selectTracks(r *lavalink.LoadResult) (tracks []lavalink.Track, playlist string, err error) {
	if r == nil {
		return nil, "", errors.New("empty load result")
	}
	tracks, err = r.Tracks()
	if err != nil {
		return nil, "", err
	}
	switch r.LoadType {
	case lavalink.LoadTypeSearch:
		if len(tracks) > 1 {
			tracks = tracks[:1]
		}
	case lavalink.LoadTypePlaylist:
		if info, ok := r.Playlist(); ok {
			playlist = info.Name
		}
	}
	return tracks, playlist, nil
}

// formatDuration renders a track length as m:ss or h:mm:ss.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "live"
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatTrack(t *playback.Track) string {
	return fmt.Sprintf("**%s** by %s (%s)", t.Title(), t.Info.Author, formatDuration(t.Info.Duration()))
}

// formatNowPlaying describes the loaded track, or fails when nothing is.
// A negative volume is left out.
func formatNowPlaying(current *playback.Track, st playback.State, volume int) (string, error) {
	if current == nil || !st.IsActive() {
		return "", playback.ErrNothingPlaying
	}
	var sb strings.Builder
	sb.WriteString(formatTrack(current))
	if st == playback.StatePaused {
		sb.WriteString(" [paused]")
	}
	if current.Autoplay {
		sb.WriteString("\nPicked by autoplay.")
	} else if current.Requester != "" {
		sb.WriteString("\nRequested by <@" + current.Requester + ">.")
	}
	if volume >= 0 {
		fmt.Fprintf(&sb, "\nVolume: %d%%", volume)
	}
	return sb.String(), nil
}

// clampVolume bounds v to 0..maxVolume.
func clampVolume(v, maxVolume int) int {
	return min(max(v, 0), maxVolume)
}

// formatQueue lists the current track and up to limit upcoming ones.
// Autoplay picks are marked.
func formatQueue(current *playback.Track, upcoming []playback.Track, limit int) string {
	if current == nil && len(upcoming) == 0 {
		return "The queue is empty."
	}

	var sb strings.Builder
	if current != nil {
		sb.WriteString("Now playing: " + formatTrack(current))
		if current.Autoplay {
			sb.WriteString(" [autoplay]")
		}
		sb.WriteString("\n")
	}
	for n, t := range upcoming {
		if n == limit {
			fmt.Fprintf(&sb, "...and %s more\n", humanize.Comma(int64(len(upcoming)-limit)))
			break
		}
		fmt.Fprintf(&sb, "%d. %s", n+1, formatTrack(&t))
		if t.Autoplay {
			sb.WriteString(" [autoplay]")
		}
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
