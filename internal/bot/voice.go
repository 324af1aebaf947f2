package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/llehouerou/wavebot/internal/lavalink"
)

const voiceUpdateTimeout = 10 * time.Second

// userVoiceChannel returns the voice channel userID sits in.
func (b *Bot) userVoiceChannel(guildID, userID string) (string, error) {
	vs, err := b.session.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", ErrNoVoiceChannel
	}
	return vs.ChannelID, nil
}

// onVoiceStateUpdate forwards the bot's own voice session to its player and
// drops the player when the bot leaves voice. Other users' moves drive the
// empty channel countdown.
func (b *Bot) onVoiceStateUpdate(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.VoiceState == nil {
		return
	}
	if v.UserID != b.UserID() {
		b.checkEmptyChannel(v.GuildID)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, voiceUpdateTimeout)
	defer cancel()

	if v.ChannelID == "" {
		b.idle.cancel(v.GuildID)
		b.empty.cancel(v.GuildID)
		if err := b.players.Remove(ctx, v.GuildID); err != nil {
			b.logger.WithError(err).WithField("guild", v.GuildID).Warn("destroy player")
		}
		return
	}

	player := b.players.GetOrCreate(v.GuildID)
	if err := player.UpdateVoice(ctx, lavalink.VoiceState{SessionID: v.SessionID}); err != nil {
		b.logger.WithError(err).WithField("guild", v.GuildID).Warn("forward voice state")
	}
	b.checkEmptyChannel(v.GuildID)
}

// onVoiceServerUpdate forwards the voice server token and endpoint.
func (b *Bot) onVoiceServerUpdate(_ *discordgo.Session, v *discordgo.VoiceServerUpdate) {
	ctx, cancel := context.WithTimeout(b.ctx, voiceUpdateTimeout)
	defer cancel()

	player := b.players.GetOrCreate(v.GuildID)
	err := player.UpdateVoice(ctx, lavalink.VoiceState{Token: v.Token, Endpoint: v.Endpoint})
	if err != nil {
		b.logger.WithError(err).WithField("guild", v.GuildID).Warn("forward voice server")
	}
}
