// Package lavalink is a small Lavalink v4 client: REST track loading and
// player updates over resty, node events over a websocket.
package lavalink

import (
	"encoding/json"
	"fmt"
	"time"
)

// TrackInfo is the metadata Lavalink resolves for a track.
type TrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"` // milliseconds
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri,omitempty"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	SourceName string `json:"sourceName"`
}

// Duration returns the declared length; streams report zero.
func (i TrackInfo) Duration() time.Duration {
	return time.Duration(i.Length) * time.Millisecond
}

// Track is an encoded, playable track.
type Track struct {
	Encoded string    `json:"encoded"`
	Info    TrackInfo `json:"info"`
}

// LoadType tells how to read LoadResult.Data.
type LoadType string

const (
	LoadTypeTrack    LoadType = "track"
	LoadTypePlaylist LoadType = "playlist"
	LoadTypeSearch   LoadType = "search"
	LoadTypeEmpty    LoadType = "empty"
	LoadTypeError    LoadType = "error"
)

// LoadResult is the response of GET /v4/loadtracks.
type LoadResult struct {
	LoadType LoadType        `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

// PlaylistInfo describes a loaded playlist.
type PlaylistInfo struct {
	Name          string `json:"name"`
	SelectedTrack int    `json:"selectedTrack"`
}

type playlistData struct {
	Info   PlaylistInfo `json:"info"`
	Tracks []Track      `json:"tracks"`
}

// Exception is Lavalink's error payload for failed loads and track exceptions.
type Exception struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

func (e *Exception) Error() string {
	return fmt.Sprintf("lavalink %s exception: %s", e.Severity, e.Message)
}

// Tracks decodes the tracks of any load type. Empty results yield no tracks
// and no error; failed loads yield the Exception as error.
func (r *LoadResult) Tracks() ([]Track, error) {
	switch r.LoadType {
	case LoadTypeTrack:
		var t Track
		if err := json.Unmarshal(r.Data, &t); err != nil {
			return nil, fmt.Errorf("decode track: %w", err)
		}
		return []Track{t}, nil
	case LoadTypeSearch:
		var ts []Track
		if err := json.Unmarshal(r.Data, &ts); err != nil {
			return nil, fmt.Errorf("decode search: %w", err)
		}
		return ts, nil
	case LoadTypePlaylist:
		var p playlistData
		if err := json.Unmarshal(r.Data, &p); err != nil {
			return nil, fmt.Errorf("decode playlist: %w", err)
		}
		return p.Tracks, nil
	case LoadTypeError:
		var e Exception
		if err := json.Unmarshal(r.Data, &e); err != nil {
			return nil, fmt.Errorf("decode exception: %w", err)
		}
		return nil, &e
	default:
		return nil, nil
	}
}

// Playlist returns the playlist info when the result is a playlist.
func (r *LoadResult) Playlist() (*PlaylistInfo, bool) {
	if r.LoadType != LoadTypePlaylist {
		return nil, false
	}
	var p playlistData
	if err := json.Unmarshal(r.Data, &p); err != nil {
		return nil, false
	}
	return &p.Info, true
}

// VoiceState is the Discord voice connection Lavalink needs to join a channel.
type VoiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

// Complete reports whether both gateway halves have arrived.
func (v VoiceState) Complete() bool {
	return v.Token != "" && v.Endpoint != "" && v.SessionID != ""
}

// PlayerTrack selects the track to play; a nil Encoded stops playback.
type PlayerTrack struct {
	Encoded *string `json:"encoded"`
}

// PlayerUpdate is the body of PATCH /v4/sessions/{session}/players/{guild}.
// Nil fields are left unchanged by the node.
type PlayerUpdate struct {
	Track  *PlayerTrack `json:"track,omitempty"`
	Paused *bool        `json:"paused,omitempty"`
	Volume *int         `json:"volume,omitempty"`
	Voice  *VoiceState  `json:"voice,omitempty"`
}

// PlayTrack builds an update that starts encoded.
func PlayTrack(encoded string) PlayerUpdate {
	return PlayerUpdate{Track: &PlayerTrack{Encoded: &encoded}}
}

// StopTrack builds an update that stops the current track.
func StopTrack() PlayerUpdate {
	return PlayerUpdate{Track: &PlayerTrack{}}
}
