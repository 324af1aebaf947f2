package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"github.com/llehouerou/wavebot/internal/errmsg"
)

// leaveTimers holds at most one pending leave per guild.
type leaveTimers struct {
	delay time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newLeaveTimers(delay time.Duration) *leaveTimers {
	return &leaveTimers{delay: delay, timers: make(map[string]*time.Timer)}
}

// schedule runs fire after the delay unless a leave is already pending for
// the guild or cancel is called first.
func (l *leaveTimers) schedule(guildID string, fire func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.timers[guildID]; ok {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(l.delay, func() {
		l.mu.Lock()
		current := l.timers[guildID] == t
		if current {
			delete(l.timers, guildID)
		}
		l.mu.Unlock()
		if current {
			fire()
		}
	})
	l.timers[guildID] = t
}

func (l *leaveTimers) cancel(guildID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.timers[guildID]; ok {
		t.Stop()
		delete(l.timers, guildID)
	}
}

func (l *leaveTimers) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}

// hasListeners reports whether a user other than selfID, and not a bot, is
// in channelID. Users with no member data count as listeners.
func hasListeners(states []*discordgo.VoiceState, channelID, selfID string) bool {
	for _, vs := range states {
		if vs == nil || vs.ChannelID != channelID || vs.UserID == selfID {
			continue
		}
		if vs.Member != nil && vs.Member.User != nil && vs.Member.User.Bot {
			continue
		}
		return true
	}
	return false
}

// botChannel returns the voice channel the bot sits in, or "".
func (b *Bot) botChannel(guildID string) string {
	vs, err := b.session.State.VoiceState(guildID, b.UserID())
	if err != nil || vs == nil {
		return ""
	}
	return vs.ChannelID
}

// channelHasListeners defaults to true when the state cache cannot tell.
func (b *Bot) channelHasListeners(guildID string) bool {
	channelID := b.botChannel(guildID)
	if channelID == "" {
		return true
	}
	g, err := b.session.State.Guild(guildID)
	if err != nil {
		return true
	}
	b.session.State.RLock()
	defer b.session.State.RUnlock()
	return hasListeners(g.VoiceStates, channelID, b.UserID())
}

// isIdle reports whether the guild's player has nothing loaded or queued.
func (b *Bot) isIdle(guildID string) bool {
	p := b.players.Get(guildID)
	return p != nil && p.Current() == nil && p.QueueLen() == 0
}

// scheduleIdleLeave leaves the guild once the idle timeout passes with
// nothing played in between.
func (b *Bot) scheduleIdleLeave(guildID string) {
	b.idle.schedule(guildID, func() {
		if b.isIdle(guildID) {
			b.leaveAsync(guildID, "idle")
		}
	})
}

// checkEmptyChannel starts or cancels the empty channel countdown.
func (b *Bot) checkEmptyChannel(guildID string) {
	if b.players.Get(guildID) == nil || b.channelHasListeners(guildID) {
		b.empty.cancel(guildID)
		return
	}
	b.empty.schedule(guildID, func() {
		if !b.channelHasListeners(guildID) {
			b.leaveAsync(guildID, "empty channel")
		}
	})
}

func (b *Bot) leaveAsync(guildID, reason string) {
	ctx, cancel := context.WithTimeout(b.ctx, voiceUpdateTimeout)
	defer cancel()
	if err := b.leave(ctx, guildID); err != nil {
		b.logger.WithError(err).WithField("guild", guildID).Warn("auto leave")
		return
	}
	b.logger.WithFields(log.Fields{"guild": guildID, "reason": reason}).Info("left voice")
}

// leave disconnects from voice and destroys the guild's player.
func (b *Bot) leave(ctx context.Context, guildID string) error {
	b.idle.cancel(guildID)
	b.empty.cancel(guildID)
	if err := b.session.ChannelVoiceJoinManual(guildID, "", false, true); err != nil {
		return fmt.Errorf("%s: %w", errmsg.OpVoiceLeave, err)
	}
	return b.players.Remove(ctx, guildID)
}
