// Command autoplayprobe prints what autoplay would do after a given track:
// the extracted artist, its Last.fm matches with scores, the similar artists
// kept and the keyword queries. With -search it also prints the track it
// would queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/llehouerou/wavebot/internal/autoplay"
	"github.com/llehouerou/wavebot/internal/config"
	"github.com/llehouerou/wavebot/internal/lastfm"
	"github.com/llehouerou/wavebot/internal/lavalink"
	"github.com/llehouerou/wavebot/internal/playback"
	"github.com/llehouerou/wavebot/internal/state"
)

const probeGuild = "autoplayprobe"

func main() {
	title := flag.String("title", "", "track title")
	author := flag.String("author", "", "track author or channel name")
	id := flag.String("id", "", "video identifier of the track")
	search := flag.Bool("search", false, "resolve a track through the Lavalink node")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *title == "" && *author == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithFields(log.Fields{"error": err}).Fatal("Error loading config")
	}

	var similar autoplay.SimilarArtistSource
	if cfg.HasLastfmConfig() {
		similar = lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)
	}

	store := state.NewMock()
	_ = store.SetAutoplay(probeGuild, true)
	engine := autoplay.New(cfg.GetAutoplayConfig(), store, similar, log.WithField("component", "autoplay"))

	ctx := context.Background()
	seed := autoplay.SeedInfo{Title: *title, Author: *author, Identifier: *id}

	artist := autoplay.ExtractArtistName(seed.Title, seed.Author)
	fmt.Printf("artist:  %q\n", artist)
	if similar != nil && artist != "" {
		matches, err := similar.GetSimilarArtists(artist, cfg.GetAutoplayConfig().SimilarArtistsLimit)
		if err != nil {
			log.WithError(err).Warn("last.fm lookup failed")
		}
		for _, m := range matches {
			fmt.Printf("  %-30s %.2f\n", m.Name, m.MatchScore)
		}
	}
	fmt.Printf("similar: %s\n", strings.Join(engine.FetchSimilarArtists(ctx, artist), ", "))
	fmt.Println("queries:")
	for i, q := range engine.BuildSearchQueries(ctx, seed, probeGuild) {
		fmt.Printf("  %d. %s\n", i+1, q)
	}

	if !*search {
		return
	}

	lc := cfg.GetLavalinkConfig()
	node := lavalink.NewNode(lavalink.NodeConfig{
		Name:     lc.Name,
		Address:  lc.Address(),
		Password: lc.Password,
		Secure:   lc.Secure,
	}, log.WithField("component", "lavalink"))

	// The node is never connected here, so only keyword search runs.
	last := &playback.Track{Track: lavalink.Track{Info: lavalink.TrackInfo{
		Title:      seed.Title,
		Author:     seed.Author,
		Identifier: seed.Identifier,
	}}}
	pick := engine.FindNextTrack(ctx, playback.NewPlayer(probeGuild, node), last, "")
	if pick == nil {
		fmt.Println("next:    nothing suitable")
		return
	}
	fmt.Printf("next:    %s - %s (%s)\n", pick.Info.Author, pick.Info.Title, pick.Info.Duration())
}
