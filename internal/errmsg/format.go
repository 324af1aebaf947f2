// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Voice operations
	OpVoiceJoin  Op = "join your voice channel"
	OpVoiceLeave Op = "leave the voice channel"

	// Track resolution
	OpTrackLoad Op = "load tracks"

	// Queue operations
	OpQueueAdd  Op = "add to queue"
	OpQueueShow Op = "show the queue"

	// Playback operations
	OpPlaybackStart  Op = "start playback"
	OpPlaybackSkip   Op = "skip"
	OpPlaybackStop   Op = "stop playback"
	OpPlaybackPause  Op = "pause"
	OpPlaybackResume Op = "resume"
	OpPlaybackVolume Op = "set the volume"
	OpNowPlaying     Op = "show the current track"

	// Autoplay
	OpAutoplayToggle Op = "toggle autoplay"

	// Commands
	OpCommandRegister Op = "register commands"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
