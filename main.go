/*
Framestack is a reinforcement learning agent-body library built around frame
stacking: the agent's state is a sliding window of the last n observations,
composed eagerly or lazily into a single feature frame. This binary is the
development driver: `train` runs workers against the cart-pole environment
with a live websocket monitor and a sqlite frame recorder, and `replay` plays
recorded runs back in the terminal.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"time"

	"framestack/cart_pole"
	"framestack/recorder"
	"framestack/reinforcement"
	"framestack/replay"
	"framestack/server"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	addr       string
	nworkers   int
	dbPath     string
	runID      string
	episodeNum int
	frameDelay time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "framestack",
		Short: "Train a frame-stacking agent on cart-pole and replay recorded runs.",
	}

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Run training workers with a live monitor and frame recorder",
		RunE:  runTraining,
	}
	trainCmd.Flags().StringVar(&configPath, "config", "./config.yaml", "training config path")
	trainCmd.Flags().StringVar(&addr, "addr", ":8080", "monitor listen address")
	trainCmd.Flags().IntVar(&nworkers, "nworkers", runtime.NumCPU(), "number of worker training routines")
	trainCmd.Flags().StringVar(&dbPath, "db", "./frames.db", "sqlite frame archive path")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "List recorded runs, or play one back",
		RunE:  runReplay,
	}
	replayCmd.Flags().StringVar(&dbPath, "db", "./frames.db", "sqlite frame archive path")
	replayCmd.Flags().StringVar(&runID, "run", "", "run id to play back; omit to list runs")
	replayCmd.Flags().IntVar(&episodeNum, "episode", -1, "episode to play back; omit for all")
	replayCmd.Flags().DurationVar(&frameDelay, "delay", 10*time.Millisecond, "delay between frames")

	for _, envFile := range []string{
		".env",
		"../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(replayCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runTraining(cmd *cobra.Command, args []string) error {
	config, err := reinforcement.FromYaml(configPath)
	if err != nil {
		return err
	}

	appCtx, appCancel := context.WithCancel(cmd.Context())
	defer appCancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		appCancel()
	}()

	trainingCtx, trainingCancel, err := config.WithTrainingDeadline(appCtx)
	if err != nil {
		return err
	}
	defer trainingCancel()

	buf, err := replay.NewBuffer(config.BufferCapacity(), replay.PolicyFifo)
	if err != nil {
		return err
	}

	var sink reinforcement.FrameSink
	store := recorder.NewStore(dbPath)
	if config.RecordEvery() > 0 {
		if err := store.Init(appCtx); err != nil {
			return err
		}
		defer store.Close()

		id, err := store.BeginRun(appCtx, fmt.Sprintf("cart-pole %d workers", nworkers))
		if err != nil {
			return err
		}
		log.Printf("recording run %s to %s", id, dbPath)
		sink = store
	}

	// Progress fans out two ways: a non-blocking send to the monitor (drop
	// rather than stall the estimator), and a periodic console line.
	statsChan := make(chan reinforcement.EpisodeStats)
	progress := func(ctx context.Context, stats reinforcement.EpisodeStats) {
		select {
		case statsChan <- stats:
		default:
		}
		if stats.Episode%100 == 0 {
			log.Printf(
				"episode %s: steps=%d score=%.1f buffer=%d evicted=%d",
				humanize.Comma(int64(stats.Episode)),
				stats.Steps,
				stats.Score,
				stats.BufferLen,
				stats.Evicted)
		}
	}

	trainErr := make(chan error, 1)
	go func() {
		defer close(statsChan)
		trainErr <- reinforcement.Train(
			trainingCtx,
			func() reinforcement.Environment { return cart_pole.New(nil) },
			config,
			nworkers,
			buf,
			sink,
			progress)
	}()

	srv := server.NewServer(appCtx, addr, statsChan)
	if err := srv.Serve(); err != nil {
		return err
	}
	return <-trainErr
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store := recorder.NewStore(dbPath)
	if err := store.Init(ctx); err != nil {
		return err
	}
	defer store.Close()

	if runID == "" {
		return listRuns(ctx, store)
	}
	return playRun(ctx, store)
}

func listRuns(ctx context.Context, store *recorder.Store) error {
	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	for _, run := range runs {
		fmt.Printf(
			"%s  %s  %s frames  %s  %s\n",
			run.ID,
			humanize.Time(run.CreatedAt),
			humanize.Comma(run.FrameCount),
			humanize.Bytes(uint64(run.Bytes)),
			run.Note)
	}
	return nil
}

func playRun(ctx context.Context, store *recorder.Store) error {
	episodes := []int{episodeNum}
	if episodeNum < 0 {
		var err error
		if episodes, err = store.Episodes(ctx, runID); err != nil {
			return err
		}
	}

	for _, ep := range episodes {
		frameList, err := store.Frames(ctx, runID, ep)
		if err != nil {
			return err
		}
		if len(frameList) == 0 {
			fmt.Printf("episode %d: no frames\n", ep)
			continue
		}

		fmt.Printf("episode %d (%d frames)\n", ep, len(frameList))
		for step, f := range frameList {
			fmt.Printf("  %4d:", step)
			for _, v := range f.Data() {
				fmt.Printf(" %8.4f", v)
			}
			fmt.Println()

			select {
			case <-time.After(frameDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
