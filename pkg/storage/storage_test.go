package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "genre-swap/pkg/errors"
	"genre-swap/pkg/models"

	"github.com/dgraph-io/badger/v3"
)

func asset(size int) *models.AudioAsset {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return models.NewAudioAsset(data, 44100, 2)
}

func stemSet(trackID string, size int) *models.StemSet {
	stems := make(map[models.StemName]*models.AudioAsset)
	for _, name := range models.AllStems {
		stems[name] = asset(size)
	}
	return models.NewStemSet(trackID, stems)
}

// --- GetOrCreateStemSet ---

func TestGetOrCreateStemSetRunsFactoryOnce(t *testing.T) {
	store := NewAudioStore(1<<30, nil, nil)

	var calls atomic.Int32
	release := make(chan struct{})
	factory := func(ctx context.Context) (*models.StemSet, error) {
		calls.Add(1)
		<-release
		return stemSet("trackA", 100), nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*models.StemSet, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			set, err := store.GetOrCreateStemSet(context.Background(), "trackA", factory)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			results[i] = set
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("factory calls = %d, want 1", got)
	}
	for i := 1; i < callers; i++ {
		if results[i] != results[0] {
			t.Errorf("caller %d got a different stem set", i)
		}
	}

	// a later caller hits the cache without invoking the factory
	if _, err := store.GetOrCreateStemSet(context.Background(), "trackA", factory); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("factory calls after cache fill = %d, want 1", got)
	}
}

func TestGetOrCreateStemSetCancelledCallerStillFillsCache(t *testing.T) {
	store := NewAudioStore(1<<30, nil, nil)

	release := make(chan struct{})
	done := make(chan struct{})
	factory := func(ctx context.Context) (*models.StemSet, error) {
		defer close(done)
		<-release
		if ctx.Err() != nil {
			t.Error("factory context should not be cancelled with the caller")
		}
		return stemSet("trackB", 10), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := store.GetOrCreateStemSet(ctx, "trackB", factory)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	close(release)
	<-done
	time.Sleep(10 * time.Millisecond)

	if _, ok := store.lookupStems("trackB"); !ok {
		t.Error("completed separation should populate the cache")
	}
}

func TestGetOrCreateStemSetFactoryError(t *testing.T) {
	store := NewAudioStore(1<<30, nil, nil)
	boom := errors.New("boom")

	_, err := store.GetOrCreateStemSet(context.Background(), "t", func(ctx context.Context) (*models.StemSet, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, ok := store.lookupStems("t"); ok {
		t.Error("failed factory must not cache anything")
	}
}

// --- Eviction ---

func TestEvictionIsLRUByBytes(t *testing.T) {
	store := NewAudioStore(2500, nil, nil)

	for _, key := range []string{"a", "b"} {
		if err := store.PutResult(key, &models.SwapResult{CacheKey: key}, asset(1000)); err != nil {
			t.Fatal(err)
		}
	}
	// touch a so that b becomes the oldest
	if _, ok := store.GetResult("a"); !ok {
		t.Fatal("a should be cached")
	}
	if err := store.PutResult("c", &models.SwapResult{CacheKey: "c"}, asset(1000)); err != nil {
		t.Fatal(err)
	}

	if _, ok := store.GetResult("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, key := range []string{"a", "c"} {
		if _, ok := store.GetResult(key); !ok {
			t.Errorf("%s should still be cached", key)
		}
	}
	if st := store.Stats(); st.Used > st.Capacity {
		t.Errorf("used %d exceeds capacity %d", st.Used, st.Capacity)
	}
}

func TestPinnedEntriesAreNeverEvicted(t *testing.T) {
	store := NewAudioStore(1500, nil, nil)

	if err := store.IngestTrack("track1", asset(1000)); err != nil {
		t.Fatal(err)
	}
	unpin := store.PinJob("track1", "key1")

	if err := store.PutResult("other", &models.SwapResult{CacheKey: "other"}, asset(1000)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetTrack("track1"); err != nil {
		t.Errorf("pinned track evicted: %v", err)
	}
	if _, ok := store.GetResult("other"); ok {
		t.Error("unpinned entry should have been evicted instead")
	}

	unpin()
	unpin() // idempotent
	if err := store.PutResult("third", &models.SwapResult{CacheKey: "third"}, asset(1000)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetTrack("track1"); !errors.Is(err, apperrors.ErrTrackNotFound) {
		t.Errorf("after unpin track should be evictable, got err = %v", err)
	}
}

func TestCorruptedMemoryResultIsAMiss(t *testing.T) {
	store := NewAudioStore(1<<20, nil, nil)
	mix := asset(64)
	if err := store.PutResult("k", &models.SwapResult{CacheKey: "k", ResultAssetID: mix.ID}, mix); err != nil {
		t.Fatal(err)
	}

	mix.Data[0] ^= 0xFF

	if _, ok := store.GetResult("k"); ok {
		t.Error("corrupted result should be reported as a miss")
	}
	if _, err := store.GetAsset(mix.ID); err == nil {
		t.Error("corrupted entry's assets should be dropped")
	}
}

func TestGetResultDoesNotMutateHeldResult(t *testing.T) {
	store := NewAudioStore(1<<20, nil, nil)
	mix := asset(64)
	if err := store.PutResult("k", &models.SwapResult{ID: "r1", CacheKey: "k", ResultAssetID: mix.ID}, mix); err != nil {
		t.Fatal(err)
	}
	held, ok := store.GetResult("k")
	if !ok {
		t.Fatal("expected a hit")
	}
	stamp := held.LastAccess

	// readers refresh recency while another goroutine encodes its copy
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, ok := store.GetResult("k"); !ok {
					t.Error("expected a hit")
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, err := json.Marshal(held); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if !held.LastAccess.Equal(stamp) {
		t.Error("GetResult wrote to a result a caller already holds")
	}
	again, _ := store.GetResult("k")
	if again.ID != "r1" || again.LastAccess.Before(stamp) {
		t.Errorf("fresh read = %+v", again)
	}
}

func TestPutResultDoesNotMutateArgument(t *testing.T) {
	store := NewAudioStore(1<<20, nil, nil)
	mix := asset(64)
	res := &models.SwapResult{ID: "r1", CacheKey: "k", ResultAssetID: mix.ID}
	if err := store.PutResult("k", res, mix); err != nil {
		t.Fatal(err)
	}
	if !res.LastAccess.IsZero() {
		t.Error("PutResult stamped the caller's result")
	}
	if got, _ := store.GetResult("k"); got.LastAccess.IsZero() {
		t.Error("stored result has no last access")
	}
}

// --- IngestTrack ---

func TestReingestSameAudioIsNoop(t *testing.T) {
	store := NewAudioStore(1<<20, nil, nil)
	track := asset(128)
	if err := store.IngestTrack("trackA", track); err != nil {
		t.Fatal(err)
	}
	same := models.NewAudioAsset(append([]byte(nil), track.Data...), track.SampleRate, track.Channels)
	if err := store.IngestTrack("trackA", same); err != nil {
		t.Errorf("identical re-ingest: %v", err)
	}
	got, _ := store.GetTrack("trackA")
	if got.ID != track.ID {
		t.Errorf("track replaced by identical audio: %s, want %s", got.ID, track.ID)
	}
}

func TestReingestDifferentAudioIsRefused(t *testing.T) {
	disk, err := NewDiskStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer disk.Close()

	tests := []struct {
		name string
		disk DiskStore
	}{
		{"memory", nil},
		{"disk", disk},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewAudioStore(1<<20, tt.disk, nil)
			trackID := "track-" + tt.name
			if err := store.IngestTrack(trackID, asset(128)); err != nil {
				t.Fatal(err)
			}
			if _, err := store.GetOrCreateStemSet(context.Background(), trackID, func(ctx context.Context) (*models.StemSet, error) {
				return stemSet(trackID, 32), nil
			}); err != nil {
				t.Fatal(err)
			}

			err := store.IngestTrack(trackID, asset(256))
			if !errors.Is(err, apperrors.ErrTrackExists) {
				t.Fatalf("err = %v, want ErrTrackExists", err)
			}
			got, _ := store.GetTrack(trackID)
			if got.Size() != 128 {
				t.Errorf("stored track size = %d, want the original 128", got.Size())
			}
		})
	}
}

func TestIngestAfterEvictionDropsDerivedEntries(t *testing.T) {
	store := NewAudioStore(1<<20, nil, nil)
	if err := store.IngestTrack("trackA", asset(128)); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetOrCreateStemSet(context.Background(), "trackA", func(ctx context.Context) (*models.StemSet, error) {
		return stemSet("trackA", 32), nil
	}); err != nil {
		t.Fatal(err)
	}
	mix := asset(64)
	if err := store.PutResult("k", &models.SwapResult{CacheKey: "k", SourceTrackID: "trackA", ResultAssetID: mix.ID}, mix); err != nil {
		t.Fatal(err)
	}

	// the track alone falls out of memory
	store.mu.Lock()
	store.dropLocked(keyTrack + "trackA")
	store.mu.Unlock()

	if err := store.IngestTrack("trackA", asset(256)); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.lookupStems("trackA"); ok {
		t.Error("stems of the replaced track survived")
	}
	if _, ok := store.GetResult("k"); ok {
		t.Error("result of the replaced track survived")
	}
}

// --- Disk tier ---

func TestDiskTierSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	disk, err := NewDiskStore(dir, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	store := NewAudioStore(1<<20, disk, nil)

	track := asset(512)
	if err := store.IngestTrack("trackA", track); err != nil {
		t.Fatal(err)
	}
	set := stemSet("trackA", 128)
	if _, err := store.GetOrCreateStemSet(context.Background(), "trackA", func(ctx context.Context) (*models.StemSet, error) {
		return set, nil
	}); err != nil {
		t.Fatal(err)
	}
	mix := asset(256)
	result := &models.SwapResult{ID: "r1", CacheKey: "key1", ResultAssetID: mix.ID}
	if err := store.PutResult("key1", result, mix); err != nil {
		t.Fatal(err)
	}
	disk.Close()

	disk, err = NewDiskStore(dir, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer disk.Close()
	fresh := NewAudioStore(1<<20, disk, nil)

	got, ok := fresh.GetResult("key1")
	if !ok {
		t.Fatal("result should be loaded from disk")
	}
	if got.ID != "r1" {
		t.Errorf("result ID = %q, want r1", got.ID)
	}
	if got.LastAccess.IsZero() {
		t.Error("disk read should refresh last access")
	}
	if _, err := fresh.GetTrack("trackA"); err != nil {
		t.Errorf("GetTrack after restart: %v", err)
	}
	stems, ok := fresh.lookupStems("trackA")
	if !ok {
		t.Fatal("stem set should be loaded from disk")
	}
	if stems.ID != set.ID || len(stems.Stems) != len(models.AllStems) {
		t.Errorf("stem set = %+v, want %s with 4 stems", stems.ID, set.ID)
	}
}

func TestCorruptedDiskAssetIsAMiss(t *testing.T) {
	disk, err := NewDiskStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer disk.Close()

	mix := asset(128)
	if err := disk.PutAsset(mix); err != nil {
		t.Fatal(err)
	}
	if err := disk.PutResult(&models.SwapResult{CacheKey: "k", ResultAssetID: mix.ID}); err != nil {
		t.Fatal(err)
	}

	db := disk.(*diskStore).db
	if err := db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixAssetData+mix.ID), []byte("garbage"))
	}); err != nil {
		t.Fatal(err)
	}

	var cce *apperrors.CacheCorruptionError
	if _, err := disk.GetAsset(mix.ID); !errors.As(err, &cce) {
		t.Fatalf("GetAsset err = %v, want CacheCorruptionError", err)
	}

	store := NewAudioStore(1<<20, disk, nil)
	if _, ok := store.GetResult("k"); ok {
		t.Error("result backed by a corrupted asset should be a miss")
	}
	if _, err := disk.GetResult("k"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("corrupted result should be deleted from disk, got err = %v", err)
	}
}

func TestProfilesAreWriteOnce(t *testing.T) {
	disk, err := NewDiskStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer disk.Close()

	p := models.GenreProfile{ID: "nordic_folk", Version: 1, Name: "Nordic Folk"}
	if err := disk.PutProfiles([]models.GenreProfile{p}); err != nil {
		t.Fatal(err)
	}
	p.Name = "changed"
	if err := disk.PutProfiles([]models.GenreProfile{p}); err != nil {
		t.Fatal(err)
	}

	profiles, err := disk.ListProfiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 1 {
		t.Fatalf("len = %d, want 1", len(profiles))
	}
	if profiles[0].Name != "Nordic Folk" {
		t.Errorf("Name = %q, versioned record should not be overwritten", profiles[0].Name)
	}
}

func TestProfileVersionBumpIsPersisted(t *testing.T) {
	disk, err := NewDiskStore(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer disk.Close()

	p := models.GenreProfile{ID: "nordic_folk", Version: 1, Name: "Nordic Folk"}
	if err := disk.PutProfiles([]models.GenreProfile{p}); err != nil {
		t.Fatal(err)
	}
	p.Version, p.Name = 2, "Nordic Folk (revised)"
	if err := disk.PutProfiles([]models.GenreProfile{p}); err != nil {
		t.Fatal(err)
	}

	profiles, err := disk.ListProfiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 2 {
		t.Fatalf("len = %d, want both versions", len(profiles))
	}
}

func TestNewDiskStoreLayout(t *testing.T) {
	dir := t.TempDir()
	disk, err := NewDiskStore(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	disk.Close()
	if _, err := os.Stat(filepath.Join(dir, "badger")); err != nil {
		t.Errorf("database should live directly under %s/badger: %v", dir, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "badger", "badger")); err == nil {
		t.Error("database nested one level too deep")
	}
}
