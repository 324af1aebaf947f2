package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	humanize "github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"github.com/llehouerou/wavebot/internal/autoplay"
	"github.com/llehouerou/wavebot/internal/errmsg"
	"github.com/llehouerou/wavebot/internal/playback"
)

const commandTimeout = 20 * time.Second

func buildCommands(maxVolume int) []*discordgo.ApplicationCommand {
	minVolume := 0.0
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a song or playlist",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "URL or search terms",
					Required:    true,
				},
			},
		},
		{Name: "skip", Description: "Skip the current song"},
		{Name: "stop", Description: "Stop playback and clear the queue"},
		{Name: "pause", Description: "Pause playback"},
		{Name: "resume", Description: "Resume playback"},
		{Name: "leave", Description: "Disconnect from the voice channel"},
		{Name: "nowplaying", Description: "Show the current song"},
		{
			Name:        "volume",
			Description: "Set the playback volume",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "value",
					Description: "Volume in percent",
					Required:    true,
					MinValue:    &minVolume,
					MaxValue:    float64(maxVolume),
				},
			},
		},
		{Name: "autoplay", Description: "Toggle autoplay of related songs"},
		{Name: "queue", Description: "Show the queue"},
	}
}

func (b *Bot) registerCommands() error {
	appID := b.cfg.AppID
	if appID == "" {
		appID = b.UserID()
	}
	created, err := b.session.ApplicationCommandBulkOverwrite(appID, b.cfg.GuildID, buildCommands(b.cfg.MaxVolume))
	if err != nil {
		return fmt.Errorf("%s: %w", errmsg.OpCommandRegister, err)
	}
	b.logger.WithField("count", len(created)).Info("registered slash commands")
	return nil
}

type commandFunc func(ctx context.Context, i *discordgo.InteractionCreate) (string, error)

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand || i.GuildID == "" {
		return
	}

	var handler commandFunc
	var op errmsg.Op
	switch i.ApplicationCommandData().Name {
	case "play":
		handler, op = b.handlePlay, errmsg.OpQueueAdd
	case "skip":
		handler, op = b.handleSkip, errmsg.OpPlaybackSkip
	case "stop":
		handler, op = b.handleStop, errmsg.OpPlaybackStop
	case "pause":
		handler, op = b.handlePause, errmsg.OpPlaybackPause
	case "resume":
		handler, op = b.handleResume, errmsg.OpPlaybackResume
	case "leave":
		handler, op = b.handleLeave, errmsg.OpVoiceLeave
	case "nowplaying":
		handler, op = b.handleNowPlaying, errmsg.OpNowPlaying
	case "volume":
		handler, op = b.handleVolume, errmsg.OpPlaybackVolume
	case "autoplay":
		handler, op = b.handleAutoplay, errmsg.OpAutoplayToggle
	case "queue":
		handler, op = b.handleQueue, errmsg.OpQueueShow
	default:
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		b.logger.WithError(err).Warn("defer interaction")
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	reply, err := handler(ctx, i)
	if err != nil {
		b.logger.WithError(err).WithFields(log.Fields{
			"guild":   i.GuildID,
			"command": i.ApplicationCommandData().Name,
		}).Info("command failed")
		b.followupEphemeral(i, errmsg.Format(op, err))
		return
	}
	b.editResponse(i, reply)
}

func (b *Bot) editResponse(i *discordgo.InteractionCreate, content string) {
	if _, err := b.session.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		b.logger.WithError(err).Warn("edit interaction response")
	}
}

// followupEphemeral replaces the deferred reply with a message only the
// invoking user sees.
func (b *Bot) followupEphemeral(i *discordgo.InteractionCreate, content string) {
	_ = b.session.InteractionResponseDelete(i.Interaction)
	if _, err := b.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		b.logger.WithError(err).Warn("send ephemeral followup")
	}
}

func invoker(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func (b *Bot) handlePlay(ctx context.Context, i *discordgo.InteractionCreate) (string, error) {
	query := i.ApplicationCommandData().Options[0].StringValue()
	userID := invoker(i)

	channelID, err := b.userVoiceChannel(i.GuildID, userID)
	if err != nil {
		return "", err
	}

	result, err := b.loader.LoadTracks(ctx, loadIdentifier(query, b.searchPrefix))
	if err != nil {
		return "", fmt.Errorf("%s: %w", errmsg.OpTrackLoad, err)
	}
	tracks, playlist, err := selectTracks(result)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errmsg.OpTrackLoad, err)
	}
	if len(tracks) == 0 {
		return fmt.Sprintf("No results for %q.", query), nil
	}

	if err := b.session.ChannelVoiceJoinManual(i.GuildID, channelID, false, true); err != nil {
		return "", fmt.Errorf("%s: %w", errmsg.OpVoiceJoin, err)
	}

	player := b.players.GetOrCreate(i.GuildID)
	player.SetTextChannel(i.ChannelID)
	if cfg, err := b.store.GuildConfig(i.GuildID); err == nil {
		player.SetInitialVolume(clampVolume(cfg.DefaultVolume, b.cfg.MaxVolume))
	}
	b.idle.cancel(i.GuildID)

	seed := autoplay.SeedFromTrack(tracks[0])
	b.engine.ResetSeed(i.GuildID, &seed)

	queued := make([]playback.Track, len(tracks))
	for n, t := range tracks {
		queued[n] = playback.NewTrack(t, userID)
	}
	pos := player.Enqueue(queued...)

	if player.Current() == nil {
		if err := player.Play(ctx); err != nil {
			return "", fmt.Errorf("%s: %w", errmsg.OpPlaybackStart, err)
		}
		if playlist != "" {
			return fmt.Sprintf("Playing **%s** (%d tracks).", playlist, len(tracks)), nil
		}
		return "Now playing " + formatTrack(&queued[0]) + ".", nil
	}

	if playlist != "" {
		return fmt.Sprintf("Queued %d tracks from **%s**.", len(tracks), playlist), nil
	}
	return fmt.Sprintf("Queued %s, %s in line.", formatTrack(&queued[0]), humanize.Ordinal(pos)), nil
}

func (b *Bot) handleSkip(ctx context.Context, i *discordgo.InteractionCreate) (string, error) {
	started, err := b.players.Skip(ctx, i.GuildID)
	if err != nil {
		return "", err
	}
	if started == nil {
		return "Skipped. Nothing left to play.", nil
	}
	return "Skipped. Now playing " + formatTrack(started) + ".", nil
}

func (b *Bot) handleStop(ctx context.Context, i *discordgo.InteractionCreate) (string, error) {
	player := b.players.Get(i.GuildID)
	if player == nil {
		return "", playback.ErrNothingPlaying
	}
	if err := player.Stop(ctx); err != nil {
		return "", err
	}
	b.engine.ClearState(i.GuildID)
	b.scheduleIdleLeave(i.GuildID)
	return "Stopped and cleared the queue.", nil
}

func (b *Bot) handlePause(ctx context.Context, i *discordgo.InteractionCreate) (string, error) {
	player := b.players.Get(i.GuildID)
	if player == nil {
		return "", playback.ErrNothingPlaying
	}
	if player.Paused() {
		return "Playback is already paused.", nil
	}
	if err := player.Pause(ctx, true); err != nil {
		return "", err
	}
	return "Paused.", nil
}

func (b *Bot) handleResume(ctx context.Context, i *discordgo.InteractionCreate) (string, error) {
	player := b.players.Get(i.GuildID)
	if player == nil || !player.Paused() {
		return "Nothing is paused right now.", nil
	}
	if err := player.Pause(ctx, false); err != nil {
		return "", err
	}
	return "Resumed.", nil
}

func (b *Bot) handleLeave(ctx context.Context, i *discordgo.InteractionCreate) (string, error) {
	if b.players.Get(i.GuildID) == nil && b.botChannel(i.GuildID) == "" {
		return "I'm not in a voice channel.", nil
	}
	if err := b.leave(ctx, i.GuildID); err != nil {
		return "", err
	}
	return "Left the voice channel.", nil
}

func (b *Bot) handleNowPlaying(_ context.Context, i *discordgo.InteractionCreate) (string, error) {
	player := b.players.Get(i.GuildID)
	if player == nil {
		return "", playback.ErrNothingPlaying
	}
	volume, ok := player.Volume()
	if !ok {
		volume = -1
	}
	return formatNowPlaying(player.Current(), player.State(), volume)
}

func (b *Bot) handleVolume(ctx context.Context, i *discordgo.InteractionCreate) (string, error) {
	player := b.players.Get(i.GuildID)
	if player == nil {
		return "", playback.ErrNothingPlaying
	}
	volume := clampVolume(int(i.ApplicationCommandData().Options[0].IntValue()), b.cfg.MaxVolume)
	if err := player.SetVolume(ctx, volume); err != nil {
		return "", err
	}
	return fmt.Sprintf("Volume set to %d%% (limit: %d%%).", volume, b.cfg.MaxVolume), nil
}

func (b *Bot) handleAutoplay(_ context.Context, i *discordgo.InteractionCreate) (string, error) {
	enabled, err := b.engine.Toggle(i.GuildID)
	if err != nil {
		return "", err
	}
	if enabled {
		return "Autoplay is now **on**. Related songs will play when the queue ends.", nil
	}
	return "Autoplay is now **off**.", nil
}

func (b *Bot) handleQueue(_ context.Context, i *discordgo.InteractionCreate) (string, error) {
	player := b.players.Get(i.GuildID)
	if player == nil {
		return "The queue is empty.", nil
	}
	return formatQueue(player.Current(), player.Queue(), maxQueueLines), nil
}
