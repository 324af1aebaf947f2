// Package bot wires the Discord gateway to the playback coordinator: slash
// commands, voice state forwarding and track announcements.
package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"github.com/llehouerou/wavebot/internal/autoplay"
	"github.com/llehouerou/wavebot/internal/config"
	"github.com/llehouerou/wavebot/internal/lavalink"
	"github.com/llehouerou/wavebot/internal/playback"
	"github.com/llehouerou/wavebot/internal/state"
)

// ErrNoVoiceChannel is returned when the invoking user is not in a voice
// channel of the guild.
var ErrNoVoiceChannel = errors.New("you must be in a voice channel")

// TrackLoader resolves /play queries.
type TrackLoader interface {
	LoadTracks(ctx context.Context, identifier string) (*lavalink.LoadResult, error)
}

// Bot is the Discord side of wavebot.
type Bot struct {
	session      *discordgo.Session
	cfg          config.DiscordConfig
	searchPrefix string
	loader       TrackLoader
	players      *playback.Manager
	engine       *autoplay.Engine
	store        state.Interface
	logger       *log.Entry

	idle  *leaveTimers // queue ran out
	empty *leaveTimers // no listener left in the channel

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates the gateway session. Nothing connects until Open. cfg is
// expected with defaults applied (config.GetDiscordConfig).
func New(cfg config.DiscordConfig, searchPrefix string, loader TrackLoader, players *playback.Manager,
	engine *autoplay.Engine, store state.Interface, logger *log.Entry,
) (*Bot, error) {
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		session:      s,
		cfg:          cfg,
		searchPrefix: searchPrefix,
		loader:       loader,
		players:      players,
		engine:       engine,
		store:        store,
		logger:       logger,
		idle:         newLeaveTimers(cfg.IdleTimeout),
		empty:        newLeaveTimers(cfg.EmptyChannelTimeout),
		ctx:          ctx,
		cancel:       cancel,
	}

	s.AddHandler(b.onReady)
	s.AddHandler(b.onInteraction)
	s.AddHandler(b.onVoiceStateUpdate)
	s.AddHandler(b.onVoiceServerUpdate)
	s.AddHandler(b.onGuildDelete)
	return b, nil
}

// Open connects to the gateway, registers the slash commands and starts
// announcing tracks.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	if err := b.registerCommands(); err != nil {
		return err
	}
	go b.announce(b.ctx, b.players.Subscribe())
	return nil
}

// UserID returns the bot's user id once the session is open.
func (b *Bot) UserID() string {
	if b.session.State == nil || b.session.State.User == nil {
		return ""
	}
	return b.session.State.User.ID
}

// Close disconnects from the gateway.
func (b *Bot) Close() error {
	b.cancel()
	b.idle.stop()
	b.empty.stop()
	return b.session.Close()
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.logger.WithFields(log.Fields{
		"user":   r.User.Username,
		"guilds": len(r.Guilds),
	}).Info("discord session ready")

	ids := make([]string, len(r.Guilds))
	for i, g := range r.Guilds {
		ids[i] = g.ID
	}
	b.pruneGuildConfigs(ids)
}

// pruneGuildConfigs drops stored settings of guilds the bot is no longer in.
func (b *Bot) pruneGuildConfigs(joined []string) {
	configs, err := b.store.ListGuildConfigs()
	if err != nil {
		b.logger.WithError(err).Warn("list guild configs")
		return
	}
	for _, cfg := range configs {
		if slices.Contains(joined, cfg.GuildID) {
			continue
		}
		if err := b.store.DeleteGuildConfig(cfg.GuildID); err != nil {
			b.logger.WithError(err).WithField("guild", cfg.GuildID).Warn("delete guild config")
			continue
		}
		b.logger.WithField("guild", cfg.GuildID).Info("pruned config of departed guild")
	}
}

// onGuildDelete forgets a guild the bot was removed from. Outages
// (Unavailable) keep everything.
func (b *Bot) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Guild == nil || g.Unavailable {
		return
	}
	ctx, cancel := context.WithTimeout(b.ctx, voiceUpdateTimeout)
	defer cancel()

	b.idle.cancel(g.ID)
	b.empty.cancel(g.ID)
	if err := b.players.Remove(ctx, g.ID); err != nil {
		b.logger.WithError(err).WithField("guild", g.ID).Warn("destroy player")
	}
	if err := b.store.DeleteGuildConfig(g.ID); err != nil {
		b.logger.WithError(err).WithField("guild", g.ID).Warn("delete guild config")
	}
}
