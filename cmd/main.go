package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"genre-swap/pkg/api"
	"genre-swap/pkg/audio"
	"genre-swap/pkg/config"
	"genre-swap/pkg/models"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var (
	swapGenre        string
	swapInstrumental bool
	swapAuthenticity int
	swapNiche        int
	swapComplexity   string
	swapKeepInstr    bool
	swapOutput       string
	minNicheness     float64
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "genre-swap",
	Short: "Re-render tracks in the style of another musical culture",
	Long: `genre-swap separates a track into stems, re-renders them against a
target genre profile and mixes them back down.

Pipeline: separate → analyze → transform → mix → assess`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket API",
	RunE:  runServe,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <track-id> <file>",
	Short: "Store a source track",
	Long: `Store a source track under track-id. Files ending in .pcm or .raw are
read as 16-bit stereo PCM at 44.1kHz; anything else is decoded with ffmpeg.`,
	Args: cobra.ExactArgs(2),
	RunE: runIngest,
}

var swapCmd = &cobra.Command{
	Use:   "swap <track-id>",
	Short: "Run a genre swap and wait for the result",
	Long: `Run a genre swap on a stored track.

Examples:
  genre-swap swap song-1 --genre nordic_folk
  genre-swap swap song-1 -g k_pop --instrumental -o out.wav`,
	Args: cobra.ExactArgs(1),
	RunE: runSwap,
}

var genresCmd = &cobra.Command{
	Use:   "genres",
	Short: "List target genres",
	RunE:  runGenres,
}

func init() {
	swapCmd.Flags().StringVarP(&swapGenre, "genre", "g", "", "Target genre id (see `genres`)")
	swapCmd.Flags().BoolVar(&swapInstrumental, "instrumental", false, "Drop the vocals")
	swapCmd.Flags().IntVar(&swapAuthenticity, "authenticity", models.DefaultAuthenticityTarget, "Cultural authenticity target (1-10)")
	swapCmd.Flags().IntVar(&swapNiche, "niche", models.DefaultNicheTarget, "Niche accuracy target (1-10)")
	swapCmd.Flags().StringVar(&swapComplexity, "complexity", string(models.ComplexityModerate), "Rhythmic complexity (simple, moderate, complex, traditional)")
	swapCmd.Flags().BoolVar(&swapKeepInstr, "keep-instruments", false, "Skip instrument substitution")
	swapCmd.Flags().StringVarP(&swapOutput, "output", "o", "", "Write the mix to this WAV file")
	swapCmd.MarkFlagRequired("genre")

	genresCmd.Flags().Float64Var(&minNicheness, "min-nicheness", 0, "Only genres at or above this nicheness, most niche first")

	rootCmd.AddCommand(serveCmd, ingestCmd, swapCmd, genresCmd)
}

func setup() (*app, error) {
	cfg := config.Load()
	logger := cfg.Log.NewLogger()
	return newApp(cfg, logger)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.coord.Start(ctx); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	handlers := api.NewHandlers(a.coord, a.store, a.registry, a.ledger, a.logger)
	srv := &http.Server{
		Addr:         a.cfg.Server.Address,
		Handler:      handlers.Routes(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server starting", "address", a.cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	a.logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info("Server exited")
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()
	if a.disk == nil {
		return errors.New("ingest needs SWAP_PERSIST=true, a memory-only store would forget the track on exit")
	}

	trackID, path := args[0], args[1]
	asset, err := loadAudio(cmd.Context(), path)
	if err != nil {
		return err
	}
	if err := a.store.IngestTrack(trackID, asset); err != nil {
		return err
	}
	fmt.Printf("Stored %s: %.1fs, %s\n", trackID, asset.DurationSeconds, humanize.Bytes(uint64(asset.Size())))
	return nil
}

func runSwap(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := a.coord.Start(context.Background()); err != nil {
		return err
	}

	opts := models.DefaultSwapOptions(swapGenre)
	opts.PreserveVocals = !swapInstrumental
	opts.CulturalAuthenticityTarget = swapAuthenticity
	opts.NicheAccuracyTarget = swapNiche
	opts.RhythmicComplexity = models.RhythmicComplexity(swapComplexity)
	opts.InstrumentSwapping = !swapKeepInstr

	handle, err := a.coord.RequestSwap(args[0], opts)
	if err != nil {
		return err
	}

	var stage atomic.Value
	stage.Store(string(models.StatusQueued))
	p := mpb.New(mpb.WithWidth(48))
	bar := p.AddBar(100,
		mpb.PrependDecorators(
			decor.Name(opts.TargetGenreID+": "),
			decor.Any(func(decor.Statistics) string { return stage.Load().(string) }, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(decor.Percentage()),
	)

	go func() {
		<-ctx.Done()
		handle.Cancel()
	}()

	for ev := range handle.Progress() {
		stage.Store(string(ev.Stage))
		if ev.Stage.Terminal() && ev.Stage != models.StatusDone {
			bar.Abort(false)
			break
		}
		bar.SetCurrent(int64(ev.Percent))
	}
	p.Wait()

	result, err := handle.Wait(context.Background())
	if err != nil {
		return err
	}
	printResult(result, handle.Status().CacheHit)

	if swapOutput != "" {
		asset, err := a.store.GetAsset(result.ResultAssetID)
		if err != nil {
			return err
		}
		wav := audio.EncodeWAV(asset.Data, asset.SampleRate, asset.Channels)
		if err := os.WriteFile(swapOutput, wav, 0644); err != nil {
			return err
		}
		fmt.Printf("Wrote %s (%s)\n", swapOutput, humanize.Bytes(uint64(len(wav))))
	}
	return nil
}

func printResult(r *models.SwapResult, cacheHit bool) {
	m := r.Metadata
	fmt.Printf("\n%s → %s (cache hit: %t)\n", m.SourceGenre, m.TargetGenre, cacheHit)
	fmt.Printf("  confidence %.2f, cultural accuracy %.2f, niche complexity %.1f\n",
		r.Confidence, r.CulturalAccuracy, m.NicheComplexity)
	fmt.Printf("  key %s (shift %+d), tempo %.0f BPM, mix preset %s\n", m.TargetKey, m.KeyShift, m.TempoTarget, m.MixPreset)
	for _, step := range m.ProcessingChain {
		fmt.Println("  -", step)
	}
	for _, w := range m.Warnings {
		fmt.Println("  warning:", w)
	}
}

func runGenres(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	profiles := a.registry.List()
	if cmd.Flags().Changed("min-nicheness") {
		profiles = a.registry.Discover(minNicheness)
	}
	for _, p := range profiles {
		fmt.Printf("%-14s %-22s nicheness %-4.1f %s\n", p.ID, p.Name, p.Nicheness, strings.Join(p.InstrumentsUsed, ", "))
	}
	return nil
}
