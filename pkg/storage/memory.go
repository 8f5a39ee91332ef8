package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	apperrors "genre-swap/pkg/errors"
	"genre-swap/pkg/models"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"
)

// Entry key prefixes in the recency index.
const (
	keyTrack  = "track:"
	keyStems  = "stems:"
	keyResult = "result:"
)

// recency index size; eviction is driven by bytes, never by entry count
const maxEntries = 1 << 30

type entry struct {
	size     int64
	assetIDs []string
	track    *models.AudioAsset
	stems    *models.StemSet
	result   *models.SwapResult

	// guarded by AudioStore.mu; stored results are never written after Put
	lastAccess time.Time
}

// view returns a copy of the cached result stamped with its last access.
// Callers may hold and encode it while other readers touch the entry.
func (e *entry) view() *models.SwapResult {
	res := *e.result
	res.LastAccess = e.lastAccess
	return &res
}

type assetRef struct {
	asset *models.AudioAsset
	refs  int
}

// StemFactory produces the stem set for a track. It is invoked with a
// context that is not cancelled when the requesting caller gives up.
type StemFactory func(ctx context.Context) (*models.StemSet, error)

// AudioStore is the content cache for source tracks, stem sets and swap
// results. It keeps a byte-bounded LRU in memory and writes through to an
// optional DiskStore.
type AudioStore struct {
	mu       sync.Mutex
	capacity int64
	used     int64
	index    *simplelru.LRU[string, *entry]
	assets   map[string]*assetRef
	pins     map[string]int

	ingestMu   sync.Mutex
	stemFlight singleflight.Group
	disk       DiskStore
	logger     *slog.Logger
}

// NewAudioStore creates a store holding at most capacity bytes in memory.
// disk may be nil for a memory-only store.
func NewAudioStore(capacity int64, disk DiskStore, logger *slog.Logger) *AudioStore {
	if logger == nil {
		logger = slog.Default()
	}
	index, _ := simplelru.NewLRU[string, *entry](maxEntries, nil)
	return &AudioStore{
		capacity: capacity,
		index:    index,
		assets:   make(map[string]*assetRef),
		pins:     make(map[string]int),
		disk:     disk,
		logger:   logger.With("component", "audio_store"),
	}
}

// IngestTrack registers a source recording under trackID. Re-ingesting the
// same audio is a no-op; different audio under a known id is refused with
// ErrTrackExists since cached stems and results are keyed by track id.
func (s *AudioStore) IngestTrack(trackID string, asset *models.AudioAsset) error {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	existing, err := s.GetTrack(trackID)
	switch {
	case err == nil:
		if existing.Checksum == asset.Checksum {
			return nil
		}
		return fmt.Errorf("%w: %s", apperrors.ErrTrackExists, trackID)
	case !apperrors.Is(err, apperrors.ErrTrackNotFound):
		return err
	}

	if s.disk != nil {
		if err := s.disk.PutTrack(trackID, asset); err != nil {
			return fmt.Errorf("failed to persist track: %w", err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// a memory-only store may have evicted the old track but kept its
	// derived entries
	s.dropDerivedLocked(trackID)
	s.addLocked(keyTrack+trackID, &entry{track: asset}, asset)
	return nil
}

// GetTrack returns the source recording for trackID.
func (s *AudioStore) GetTrack(trackID string) (*models.AudioAsset, error) {
	s.mu.Lock()
	if e, ok := s.index.Get(keyTrack + trackID); ok {
		s.mu.Unlock()
		return e.track, nil
	}
	s.mu.Unlock()

	if s.disk == nil {
		return nil, apperrors.ErrTrackNotFound
	}
	asset, err := s.disk.GetTrack(trackID)
	if err != nil {
		if s.corrupt(keyTrack+trackID, err) || apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrTrackNotFound
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(keyTrack+trackID, &entry{track: asset}, asset)
	return asset, nil
}

// GetResult returns the cached result for cacheKey. Corrupted entries are
// dropped and reported as a miss.
func (s *AudioStore) GetResult(cacheKey string) (*models.SwapResult, bool) {
	s.mu.Lock()
	if e, ok := s.index.Get(keyResult + cacheKey); ok {
		if ref, ok := s.assets[e.result.ResultAssetID]; ok && !ref.asset.Verify() {
			s.logger.Warn("cached result failed integrity check",
				"cache_key", cacheKey,
				"error", &apperrors.CacheCorruptionError{Key: cacheKey, Detail: "checksum mismatch"})
			s.dropLocked(keyResult + cacheKey)
			s.mu.Unlock()
			s.deleteDiskResult(cacheKey)
			return nil, false
		}
		e.lastAccess = time.Now()
		res := e.view()
		s.mu.Unlock()
		return res, true
	}
	s.mu.Unlock()

	if s.disk == nil {
		return nil, false
	}
	result, err := s.disk.GetResult(cacheKey)
	if err != nil {
		if !s.corrupt(keyResult+cacheKey, err) && !apperrors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error("failed to read result", "cache_key", cacheKey, "error", err)
		}
		return nil, false
	}
	mix, err := s.disk.GetAsset(result.ResultAssetID)
	if err != nil {
		s.corrupt(keyResult+cacheKey, err)
		s.deleteDiskResult(cacheKey)
		return nil, false
	}

	e := &entry{result: result, lastAccess: result.LastAccess}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(keyResult+cacheKey, e, mix)
	return e.view(), true
}

// PutResult stores result under cacheKey together with the assets it owns
// (the mix and the transformed stems).
func (s *AudioStore) PutResult(cacheKey string, result *models.SwapResult, assets ...*models.AudioAsset) error {
	stored := *result
	stored.LastAccess = time.Now()
	result = &stored
	if s.disk != nil {
		for _, a := range assets {
			if err := s.disk.PutAsset(a); err != nil {
				return fmt.Errorf("failed to persist result asset: %w", err)
			}
		}
		if err := s.disk.PutResult(result); err != nil {
			return fmt.Errorf("failed to persist result: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(keyResult+cacheKey, &entry{result: result, lastAccess: result.LastAccess}, assets...)
	return nil
}

// GetOrCreateStemSet returns the stem set for trackID, running factory at
// most once per track even under concurrent callers. Callers that give up
// (ctx done) stop waiting, but the in-flight factory keeps running and its
// result still populates the cache.
func (s *AudioStore) GetOrCreateStemSet(ctx context.Context, trackID string, factory StemFactory) (*models.StemSet, error) {
	if set, ok := s.lookupStems(trackID); ok {
		return set, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := s.stemFlight.DoChan(trackID, func() (any, error) {
		if set, ok := s.lookupStems(trackID); ok {
			return set, nil
		}
		set, err := factory(detached)
		if err != nil {
			return nil, err
		}
		if err := s.putStemSet(set); err != nil {
			s.logger.Error("failed to persist stem set", "track_id", trackID, "error", err)
		}
		return set, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*models.StemSet), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *AudioStore) lookupStems(trackID string) (*models.StemSet, bool) {
	s.mu.Lock()
	if e, ok := s.index.Get(keyStems + trackID); ok {
		s.mu.Unlock()
		return e.stems, true
	}
	s.mu.Unlock()

	if s.disk == nil {
		return nil, false
	}
	set, err := s.disk.GetStemSet(trackID)
	if err != nil {
		if !s.corrupt(keyStems+trackID, err) && !apperrors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error("failed to read stem set", "track_id", trackID, "error", err)
		}
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(keyStems+trackID, &entry{stems: set}, set.Assets()...)
	return set, true
}

func (s *AudioStore) putStemSet(set *models.StemSet) error {
	s.mu.Lock()
	s.addLocked(keyStems+set.SourceTrackID, &entry{stems: set}, set.Assets()...)
	s.mu.Unlock()

	if s.disk != nil {
		return s.disk.PutStemSet(set)
	}
	return nil
}

// GetAsset returns any asset currently known to the store.
func (s *AudioStore) GetAsset(id string) (*models.AudioAsset, error) {
	s.mu.Lock()
	if ref, ok := s.assets[id]; ok {
		s.mu.Unlock()
		return ref.asset, nil
	}
	s.mu.Unlock()

	if s.disk == nil {
		return nil, apperrors.ErrNotFound
	}
	asset, err := s.disk.GetAsset(id)
	if err != nil {
		if s.corrupt(id, err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return asset, nil
}

// PinJob protects the entries a running job depends on from eviction. The
// returned func releases the pins.
func (s *AudioStore) PinJob(trackID, cacheKey string) func() {
	keys := []string{keyTrack + trackID, keyStems + trackID, keyResult + cacheKey}
	s.mu.Lock()
	for _, k := range keys {
		s.pins[k]++
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, k := range keys {
				if s.pins[k]--; s.pins[k] <= 0 {
					delete(s.pins, k)
				}
			}
			s.evictLocked()
		})
	}
}

// Stats reports memory usage.
type Stats struct {
	Entries  int   `json:"entries"`
	Used     int64 `json:"used_bytes"`
	Capacity int64 `json:"capacity_bytes"`
}

func (s *AudioStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Entries: s.index.Len(), Used: s.used, Capacity: s.capacity}
}

func (s *AudioStore) addLocked(key string, e *entry, assets ...*models.AudioAsset) {
	if s.index.Contains(key) {
		s.dropLocked(key)
	}
	for _, a := range assets {
		if a == nil {
			continue
		}
		e.assetIDs = append(e.assetIDs, a.ID)
		e.size += a.Size()
		if ref, ok := s.assets[a.ID]; ok {
			ref.refs++
		} else {
			s.assets[a.ID] = &assetRef{asset: a, refs: 1}
		}
	}
	s.index.Add(key, e)
	s.used += e.size
	s.evictLocked()
}

// dropDerivedLocked removes the stems and results computed from trackID.
func (s *AudioStore) dropDerivedLocked(trackID string) {
	s.dropLocked(keyStems + trackID)
	for _, k := range s.index.Keys() {
		if !strings.HasPrefix(k, keyResult) {
			continue
		}
		if e, ok := s.index.Peek(k); ok && e.result.SourceTrackID == trackID {
			s.dropLocked(k)
		}
	}
}

func (s *AudioStore) dropLocked(key string) {
	e, ok := s.index.Peek(key)
	if !ok {
		return
	}
	s.index.Remove(key)
	s.used -= e.size
	for _, id := range e.assetIDs {
		if ref, ok := s.assets[id]; ok {
			if ref.refs--; ref.refs <= 0 {
				delete(s.assets, id)
			}
		}
	}
}

// evictLocked removes least recently used, unpinned entries until the store
// fits its capacity.
func (s *AudioStore) evictLocked() {
	for s.used > s.capacity {
		victim := ""
		for _, k := range s.index.Keys() {
			if s.pins[k] == 0 {
				victim = k
				break
			}
		}
		if victim == "" {
			s.logger.Warn("cache over capacity, all entries pinned",
				"used", humanize.Bytes(uint64(s.used)),
				"capacity", humanize.Bytes(uint64(s.capacity)))
			return
		}
		s.logger.Debug("evicting cache entry", "key", victim)
		s.dropLocked(victim)
	}
}

// corrupt logs and reports err if it is a CacheCorruptionError.
func (s *AudioStore) corrupt(key string, err error) bool {
	var cce *apperrors.CacheCorruptionError
	if !apperrors.As(err, &cce) {
		return false
	}
	s.logger.Warn("cache entry failed integrity check, treating as miss", "key", key, "error", err)
	return true
}

func (s *AudioStore) deleteDiskResult(cacheKey string) {
	if s.disk == nil {
		return
	}
	if err := s.disk.DeleteResult(cacheKey); err != nil {
		s.logger.Error("failed to delete corrupted result", "cache_key", cacheKey, "error", err)
	}
}
