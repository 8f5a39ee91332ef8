package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"genre-swap/pkg/analysis"
	"genre-swap/pkg/audio"
	"genre-swap/pkg/capability/heuristic"
	"genre-swap/pkg/config"
	"genre-swap/pkg/genre"
	"genre-swap/pkg/history"
	"genre-swap/pkg/mixer"
	"genre-swap/pkg/models"
	"genre-swap/pkg/pipeline"
	"genre-swap/pkg/separation"
	"genre-swap/pkg/storage"
	"genre-swap/pkg/transform"

	"github.com/dustin/go-humanize"
)

// app holds every long-lived component of one process.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	disk     storage.DiskStore
	store    *storage.AudioStore
	registry *genre.Registry
	coord    *pipeline.Coordinator
	ledger   *history.Ledger
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.Storage.Persist {
		disk, err := storage.NewDiskStore(cfg.Storage.Path, cfg.Storage.ResultTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize disk storage: %w", err)
		}
		a.disk = disk
	}
	a.store = storage.NewAudioStore(int64(cfg.Storage.MemoryCapacity), a.disk, logger)

	registry, err := a.loadRegistry()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = registry

	if cfg.Storage.HistoryPath != "" {
		ledger, err := history.Open(cfg.Storage.HistoryPath, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.ledger = ledger
	}

	a.coord = pipeline.NewCoordinator(pipeline.Deps{
		Store:     a.store,
		Registry:  registry,
		Separator: separation.NewSeparator(heuristic.NewSplitter(), cfg.Pipeline.SeparationTimeout, logger),
		Analyzer:  analysis.NewAnalyzer(heuristic.NewClassifier(registry.List()), logger),
		Engine:    transform.NewEngine(heuristic.NewProcessor(), logger),
		Mixer:     mixer.NewMixer(logger),
		Assessor:  analysis.NewAssessor(heuristic.NewClassifier(registry.List()), logger),
	}, cfg.Pipeline, logger)
	if a.ledger != nil {
		a.coord.OnComplete(a.ledger.Record)
	}

	logger.Info("Storage initialized",
		"persist", cfg.Storage.Persist,
		"memory_capacity", humanize.Bytes(cfg.Storage.MemoryCapacity),
		"genres", len(registry.List()))
	return a, nil
}

// loadRegistry merges the built-in profiles into the persisted catalog and
// serves the newest version of each genre.
func (a *app) loadRegistry() (*genre.Registry, error) {
	if a.disk == nil {
		return genre.NewRegistry(a.logger), nil
	}
	if err := a.disk.PutProfiles(genre.NewRegistry(a.logger).List()); err != nil {
		return nil, fmt.Errorf("failed to seed genre catalog: %w", err)
	}
	stored, err := a.disk.ListProfiles()
	if err != nil {
		return nil, fmt.Errorf("failed to read genre catalog: %w", err)
	}
	return genre.NewRegistryFrom(genre.Latest(stored), a.logger)
}

func (a *app) Close() {
	if a.coord != nil {
		a.coord.Stop()
	}
	if a.ledger != nil {
		a.ledger.Close()
	}
	if a.disk != nil {
		if err := a.disk.Close(); err != nil {
			a.logger.Error("Failed to close disk storage", "error", err)
		}
	}
}

// loadAudio reads path as raw PCM (*.pcm, *.raw) or decodes it with ffmpeg.
func loadAudio(ctx context.Context, path string) (*models.AudioAsset, error) {
	var (
		pcm []byte
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pcm", ".raw":
		pcm, err = os.ReadFile(path)
	default:
		pcm, err = audio.DecodeFile(ctx, path)
	}
	if err != nil {
		return nil, err
	}
	frame := audio.Channels * models.BytesPerSample
	pcm = pcm[:len(pcm)-len(pcm)%frame]
	if len(pcm) == 0 {
		return nil, errors.New("no audio decoded from " + path)
	}
	return models.NewAudioAsset(pcm, audio.SampleRate, audio.Channels), nil
}
