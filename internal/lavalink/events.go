package lavalink

import (
	"encoding/json"
	"fmt"
)

// Op is the websocket message kind.
type Op string

const (
	OpReady        Op = "ready"
	OpPlayerUpdate Op = "playerUpdate"
	OpStats        Op = "stats"
	OpEvent        Op = "event"
)

// EventType is the kind of an OpEvent message.
type EventType string

const (
	EventTrackStart      EventType = "TrackStartEvent"
	EventTrackEnd        EventType = "TrackEndEvent"
	EventTrackException  EventType = "TrackExceptionEvent"
	EventTrackStuck      EventType = "TrackStuckEvent"
	EventWebSocketClosed EventType = "WebSocketClosedEvent"
)

// EndReason explains why a track ended.
type EndReason string

const (
	EndReasonFinished   EndReason = "finished"
	EndReasonLoadFailed EndReason = "loadFailed"
	EndReasonStopped    EndReason = "stopped"
	EndReasonReplaced   EndReason = "replaced"
	EndReasonCleanup    EndReason = "cleanup"
)

// MayStartNext reports whether the queue should advance after this end.
func (r EndReason) MayStartNext() bool {
	return r == EndReasonFinished || r == EndReasonLoadFailed
}

// Event is any message a node pushes to its listener.
type Event interface {
	// GuildID is empty for node-wide messages.
	GuildID() string
}

// ReadyEvent is sent once the websocket session is established.
type ReadyEvent struct {
	Resumed   bool   `json:"resumed"`
	SessionID string `json:"sessionId"`
}

func (ReadyEvent) GuildID() string { return "" }

// PlayerState is the periodic position report of a player.
type PlayerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int   `json:"ping"`
}

// PlayerUpdateEvent carries a PlayerState.
type PlayerUpdateEvent struct {
	Guild string      `json:"guildId"`
	State PlayerState `json:"state"`
}

func (e PlayerUpdateEvent) GuildID() string { return e.Guild }

// StatsEvent reports node load.
type StatsEvent struct {
	Players        int   `json:"players"`
	PlayingPlayers int   `json:"playingPlayers"`
	Uptime         int64 `json:"uptime"`
}

func (StatsEvent) GuildID() string { return "" }

// TrackStartEvent fires when a track begins playing.
type TrackStartEvent struct {
	Guild string `json:"guildId"`
	Track Track  `json:"track"`
}

func (e TrackStartEvent) GuildID() string { return e.Guild }

// TrackEndEvent fires when a track stops for any reason.
type TrackEndEvent struct {
	Guild  string    `json:"guildId"`
	Track  Track     `json:"track"`
	Reason EndReason `json:"reason"`
}

func (e TrackEndEvent) GuildID() string { return e.Guild }

// TrackExceptionEvent fires when playback throws.
type TrackExceptionEvent struct {
	Guild     string    `json:"guildId"`
	Track     Track     `json:"track"`
	Exception Exception `json:"exception"`
}

func (e TrackExceptionEvent) GuildID() string { return e.Guild }

// TrackStuckEvent fires when a track produces no frames for ThresholdMs.
type TrackStuckEvent struct {
	Guild       string `json:"guildId"`
	Track       Track  `json:"track"`
	ThresholdMs int64  `json:"thresholdMs"`
}

func (e TrackStuckEvent) GuildID() string { return e.Guild }

// WebSocketClosedEvent fires when Discord closes the voice connection.
type WebSocketClosedEvent struct {
	Guild    string `json:"guildId"`
	Code     int    `json:"code"`
	Reason   string `json:"reason"`
	ByRemote bool   `json:"byRemote"`
}

func (e WebSocketClosedEvent) GuildID() string { return e.Guild }

type envelope struct {
	Op   Op        `json:"op"`
	Type EventType `json:"type"`
}

// parseMessage decodes one websocket frame. Unknown ops and event types
// return a nil Event and no error so newer nodes don't break the client.
func parseMessage(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var target Event
	switch env.Op {
	case OpReady:
		target = &ReadyEvent{}
	case OpPlayerUpdate:
		target = &PlayerUpdateEvent{}
	case OpStats:
		target = &StatsEvent{}
	case OpEvent:
		switch env.Type {
		case EventTrackStart:
			target = &TrackStartEvent{}
		case EventTrackEnd:
			target = &TrackEndEvent{}
		case EventTrackException:
			target = &TrackExceptionEvent{}
		case EventTrackStuck:
			target = &TrackStuckEvent{}
		case EventWebSocketClosed:
			target = &WebSocketClosedEvent{}
		default:
			return nil, nil
		}
	default:
		return nil, nil
	}

	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", env.Op, env.Type, err)
	}

	// Hand out values, not pointers, so listeners can type-switch on them.
	switch e := target.(type) {
	case *ReadyEvent:
		return *e, nil
	case *PlayerUpdateEvent:
		return *e, nil
	case *StatsEvent:
		return *e, nil
	case *TrackStartEvent:
		return *e, nil
	case *TrackEndEvent:
		return *e, nil
	case *TrackExceptionEvent:
		return *e, nil
	case *TrackStuckEvent:
		return *e, nil
	case *WebSocketClosedEvent:
		return *e, nil
	}
	return nil, nil
}
