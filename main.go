package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/llehouerou/wavebot/internal/autoplay"
	"github.com/llehouerou/wavebot/internal/bot"
	"github.com/llehouerou/wavebot/internal/config"
	"github.com/llehouerou/wavebot/internal/lastfm"
	"github.com/llehouerou/wavebot/internal/lavalink"
	"github.com/llehouerou/wavebot/internal/playback"
	"github.com/llehouerou/wavebot/internal/state"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("Error loading config")
	}
	if err := cfg.Validate(); err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("Invalid config")
	}
	configureLogging(cfg.LogLevel)

	if err := run(cfg); err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("wavebot stopped")
	}
}

func configureLogging(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if level == "" {
		return
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("unknown log level, keeping info")
		return
	}
	log.SetLevel(lvl)
}

func openState(path string) (*state.Manager, error) {
	if path != "" {
		return state.Open(path)
	}
	return state.OpenDefault()
}

func run(cfg *config.Config) error {
	store, err := openState(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	// Left as a nil interface when Last.fm is not configured.
	var similar autoplay.SimilarArtistSource
	if cfg.HasLastfmConfig() {
		similar = lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)
	} else {
		log.Info("Last.fm not configured, similar artists come from the fallback table only")
	}

	lc := cfg.GetLavalinkConfig()
	node := lavalink.NewNode(lavalink.NodeConfig{
		Name:     lc.Name,
		Address:  lc.Address(),
		Password: lc.Password,
		Secure:   lc.Secure,
	}, log.WithField("component", "lavalink"))

	players := playback.NewManager(node, log.WithField("component", "playback"))
	node.SetListener(players.HandleEvent)

	acfg := cfg.GetAutoplayConfig()
	engine := autoplay.New(acfg, store, similar, log.WithField("component", "autoplay"))
	players.SetAutoplayer(playback.AutoplayFunc(
		func(ctx context.Context, p *playback.Player, last *playback.Track, requester string) bool {
			return engine.HandleAutoplay(ctx, p, last, requester)
		}))
	players.OnRemove(engine.ClearState)

	b, err := bot.New(cfg.GetDiscordConfig(), acfg.SearchPrefix, node, players, engine, store, log.WithField("component", "bot"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := b.Open(); err != nil {
		return err
	}
	node.SetUserID(b.UserID())
	players.SetSelfID(b.UserID())

	var wg sync.WaitGroup
	wg.Go(func() { _ = node.Run(ctx) })
	wg.Go(func() { engine.RunCacheSweeper(ctx) })

	log.WithField("node", node.Name()).Info("wavebot is now running. Press CTRL-C to exit.")
	<-ctx.Done()
	log.Info("shutting down")

	if err := b.Close(); err != nil {
		log.WithError(err).Warn("closing discord session")
	}
	wg.Wait()
	players.Close()
	return nil
}
