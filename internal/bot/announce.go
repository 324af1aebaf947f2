package bot

import (
	"context"

	"github.com/llehouerou/wavebot/internal/errmsg"
	"github.com/llehouerou/wavebot/internal/playback"
)

// announce posts track changes and playback failures to the channel /play
// was last used in, for guilds with announcements enabled. It also arms and
// disarms the idle leave.
func (b *Bot) announce(ctx context.Context, sub *playback.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case ev := <-sub.Idle:
			b.scheduleIdleLeave(ev.GuildID)
		case change := <-sub.TrackChanged:
			b.idle.cancel(change.GuildID)
			msg := "Now playing " + formatTrack(&change.Current)
			if change.Current.Autoplay {
				msg += " (autoplay)"
			}
			b.post(change.GuildID, msg)
		case ev := <-sub.Error:
			b.post(ev.GuildID, errmsg.FormatWith(errmsg.OpPlaybackStart, ev.Track, ev.Err))
		}
	}
}

func (b *Bot) post(guildID, content string) {
	cfg, err := b.store.GuildConfig(guildID)
	if err != nil || !cfg.AnnounceTracks {
		return
	}
	player := b.players.Get(guildID)
	if player == nil || player.TextChannel() == "" {
		return
	}
	if _, err := b.session.ChannelMessageSend(player.TextChannel(), content); err != nil {
		b.logger.WithError(err).WithField("guild", guildID).Warn("announce")
	}
}
