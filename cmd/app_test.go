package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"genre-swap/pkg/config"
	"genre-swap/pkg/genre"
	"genre-swap/pkg/models"
	"genre-swap/pkg/storage"
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{Workers: 1, QueueSize: 4, SeparationTimeout: time.Second},
		Storage: config.StorageConfig{
			Path:           dir,
			MemoryCapacity: 1 << 20,
			Persist:        true,
		},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewAppOpensDatabaseUnderStoragePath(t *testing.T) {
	dir := t.TempDir()
	a, err := newApp(testConfig(dir), discard())
	if err != nil {
		t.Fatal(err)
	}
	a.Close()

	if _, err := os.Stat(filepath.Join(dir, "badger")); err != nil {
		t.Errorf("expected database at %s/badger: %v", dir, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "badger", "badger")); err == nil {
		t.Error("database nested under badger/badger")
	}
}

func TestCatalogServesNewestPersistedVersion(t *testing.T) {
	dir := t.TempDir()

	// first start seeds v1 of every built-in profile
	a, err := newApp(testConfig(dir), discard())
	if err != nil {
		t.Fatal(err)
	}
	a.Close()

	bumped, _ := genre.NewRegistry(nil).Get("nordic_folk")
	bumped.Version++
	bumped.Name = "Nordic Folk (revised)"
	disk, err := storage.NewDiskStore(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := disk.PutProfiles([]models.GenreProfile{bumped}); err != nil {
		t.Fatal(err)
	}
	disk.Close()

	a, err = newApp(testConfig(dir), discard())
	if err != nil {
		t.Fatalf("restart with two versions of one genre: %v", err)
	}
	defer a.Close()

	p, ok := a.registry.Get("nordic_folk")
	if !ok || p.Version != bumped.Version || p.Name != bumped.Name {
		t.Errorf("nordic_folk = v%d %q, want v%d %q", p.Version, p.Name, bumped.Version, bumped.Name)
	}
	if got, want := len(a.registry.List()), len(genre.NewRegistry(nil).List()); got != want {
		t.Errorf("catalog size = %d, want %d", got, want)
	}
}
