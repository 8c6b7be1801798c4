package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/codec"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/config"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/gate"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/graph"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/jobs"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/state"
	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region main
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	genre := flag.String("genre", "fantasy", "story genre")
	tone := flag.String("tone", "", "story tone")
	difficulty := flag.String("difficulty", "normal", "story difficulty")
	premise := flag.String("premise", "", "one-line premise")
	player := flag.String("player", "", "player character name")
	details := flag.String("player-details", "", "player character details")
	mode := flag.String("mode", cfg.Mode, "draft or polished")
	diamondFile := flag.String("diamond", cfg.DiamondFile, "YAML diamond preset")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	cfg.Mode = *mode
	cfg.DiamondFile = *diamondFile
	cfg.DBPath = *dbPath
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	diamondCfg, err := cfg.Diamond()
	if err != nil {
		log.Fatalf("diamond preset: %v", err)
	}

	// Initialize stores
	store, err := state.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	graphStore, err := graph.NewGraphStore(store.DB())
	if err != nil {
		log.Fatalf("failed to open edge index: %v", err)
	}

	// Connect to the narrative inference service
	codecClient, err := codec.NewCodecClient(cfg.CodecAddr)
	if err != nil {
		log.Fatalf("failed to connect to codec service at %s: %v", cfg.CodecAddr, err)
	}
	defer codecClient.Close()
	codecClient.SetTimeout(cfg.RPCTimeout)

	var critic gate.Critic = gate.NewRemoteCritic(codecClient)
	if cfg.HeuristicCritic {
		critic = gate.NewHeuristicCritic()
	}

	poolCfg := jobs.DefaultPoolConfig()
	poolCfg.Workers = cfg.Workers
	poolCfg.Seed = cfg.Seed
	pool := jobs.NewPool(store, graphStore, codecClient, critic, poolCfg)
	defer pool.Close()

	fmt.Println("Storyforge controller ready.")
	fmt.Printf("  DB: %s | Codec: %s | Mode: %s | Critic: %s\n", cfg.DBPath, cfg.CodecAddr, cfg.RunMode(), criticName(cfg))

	job, err := pool.Submit(state.JobInput{
		Inputs: story.Inputs{
			Genre:         *genre,
			Tone:          *tone,
			Difficulty:    *difficulty,
			Premise:       *premise,
			PlayerName:    *player,
			PlayerDetails: *details,
		},
		Config: diamondCfg,
		Mode:   cfg.RunMode(),
	})
	if err != nil {
		log.Fatalf("submit: %v", err)
	}
	fmt.Printf("[%s] queued\n", job.JobID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	done, err := pool.Wait(ctx, job.JobID)
	if err != nil {
		log.Printf("wait: %v", err)
		return
	}
	if done.Status == state.JobFailed {
		log.Printf("[%s] failed: %s", done.JobID, done.Error)
		os.Exit(1)
	}

	rec, err := store.LoadStory(done.StoryID)
	if err != nil {
		log.Fatalf("load story: %v", err)
	}
	st := rec.State
	fmt.Printf("[%s] completed: story=%s title=%q scenes=%d endings=%d words=%d\n",
		done.JobID, rec.StoryID, rec.Title, st.TotalScenes(), st.TotalEndings(), st.TotalWords)
}

// #endregion main

// #region helpers
func criticName(cfg config.Config) string {
	if cfg.HeuristicCritic {
		return "heuristic"
	}
	return "remote"
}

// #endregion helpers
