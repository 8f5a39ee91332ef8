package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "genre-swap/pkg/errors"
	"genre-swap/pkg/models"

	"github.com/dgraph-io/badger/v3"
)

// Key layout inside badger.
const (
	prefixAssetMeta = "asset/meta/"
	prefixAssetData = "asset/data/"
	prefixStems     = "stems/"
	prefixTrack     = "track/"
	prefixResult    = "result/"
	prefixProfile   = "profile/"
)

// DiskStore is the persistent tier behind AudioStore.
type DiskStore interface {
	PutAsset(asset *models.AudioAsset) error
	GetAsset(id string) (*models.AudioAsset, error)
	DeleteAsset(id string) error
	PutTrack(trackID string, asset *models.AudioAsset) error
	GetTrack(trackID string) (*models.AudioAsset, error)
	PutStemSet(set *models.StemSet) error
	GetStemSet(trackID string) (*models.StemSet, error)
	PutResult(result *models.SwapResult) error
	GetResult(cacheKey string) (*models.SwapResult, error)
	DeleteResult(cacheKey string) error
	PutProfiles(profiles []models.GenreProfile) error
	ListProfiles() ([]models.GenreProfile, error)
	Close() error
}

type diskStore struct {
	db        *badger.DB
	resultTTL time.Duration
}

// stemRecord is the persisted shape of a StemSet; assets live under their own keys.
type stemRecord struct {
	ID            string                     `json:"id"`
	SourceTrackID string                     `json:"source_track_id"`
	AssetIDs      map[models.StemName]string `json:"asset_ids"`
	CreatedAt     time.Time                  `json:"created_at"`
}

// NewDiskStore opens (or creates) a badger database under path. Results
// expire after resultTTL unless read again; zero disables expiry.
func NewDiskStore(path string, resultTTL time.Duration) (DiskStore, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(path, "badger"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &diskStore{db: db, resultTTL: resultTTL}, nil
}

func (s *diskStore) PutAsset(asset *models.AudioAsset) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return putAsset(txn, asset)
	})
}

func putAsset(txn *badger.Txn, asset *models.AudioAsset) error {
	meta := *asset
	meta.Data = nil
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal asset: %w", err)
	}
	if err := txn.Set([]byte(prefixAssetMeta+asset.ID), data); err != nil {
		return err
	}
	return txn.Set([]byte(prefixAssetData+asset.ID), asset.Data)
}

func (s *diskStore) GetAsset(id string) (*models.AudioAsset, error) {
	var asset *models.AudioAsset
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		asset, err = getAsset(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

func getAsset(txn *badger.Txn, id string) (*models.AudioAsset, error) {
	var asset models.AudioAsset
	if err := getJSON(txn, prefixAssetMeta+id, &asset); err != nil {
		return nil, err
	}

	item, err := txn.Get([]byte(prefixAssetData + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, &apperrors.CacheCorruptionError{Key: id, Detail: "asset data missing"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset data: %w", err)
	}
	if asset.Data, err = item.ValueCopy(nil); err != nil {
		return nil, fmt.Errorf("failed to read asset data: %w", err)
	}

	if !asset.Verify() {
		return nil, &apperrors.CacheCorruptionError{Key: id, Detail: "checksum mismatch"}
	}
	return &asset, nil
}

func (s *diskStore) DeleteAsset(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(prefixAssetMeta + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(prefixAssetData + id))
	})
}

func (s *diskStore) PutTrack(trackID string, asset *models.AudioAsset) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := putAsset(txn, asset); err != nil {
			return err
		}
		return txn.Set([]byte(prefixTrack+trackID), []byte(asset.ID))
	})
}

func (s *diskStore) GetTrack(trackID string) (*models.AudioAsset, error) {
	var asset *models.AudioAsset
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixTrack + trackID))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		asset, err = getAsset(txn, string(id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return asset, nil
}

func (s *diskStore) PutStemSet(set *models.StemSet) error {
	rec := stemRecord{
		ID:            set.ID,
		SourceTrackID: set.SourceTrackID,
		AssetIDs:      make(map[models.StemName]string, len(set.Stems)),
		CreatedAt:     set.CreatedAt,
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for name, asset := range set.Stems {
			if err := putAsset(txn, asset); err != nil {
				return err
			}
			rec.AssetIDs[name] = asset.ID
		}
		return setJSON(txn, prefixStems+set.SourceTrackID, rec, 0)
	})
}

func (s *diskStore) GetStemSet(trackID string) (*models.StemSet, error) {
	var set *models.StemSet
	err := s.db.View(func(txn *badger.Txn) error {
		var rec stemRecord
		if err := getJSON(txn, prefixStems+trackID, &rec); err != nil {
			return err
		}
		set = &models.StemSet{
			ID:            rec.ID,
			SourceTrackID: rec.SourceTrackID,
			Stems:         make(map[models.StemName]*models.AudioAsset, len(rec.AssetIDs)),
			CreatedAt:     rec.CreatedAt,
		}
		for name, id := range rec.AssetIDs {
			asset, err := getAsset(txn, id)
			if err != nil {
				return err
			}
			set.Stems[name] = asset
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

func (s *diskStore) PutResult(result *models.SwapResult) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, prefixResult+result.CacheKey, result, s.resultTTL)
	})
}

// GetResult loads a result and refreshes its last-access timestamp (and TTL).
func (s *diskStore) GetResult(cacheKey string) (*models.SwapResult, error) {
	var result models.SwapResult
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, prefixResult+cacheKey, &result); err != nil {
			return err
		}
		result.LastAccess = time.Now()
		return setJSON(txn, prefixResult+cacheKey, &result, s.resultTTL)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *diskStore) DeleteResult(cacheKey string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefixResult + cacheKey))
	})
}

// PutProfiles persists catalog records as versioned, write-once entries.
func (s *diskStore) PutProfiles(profiles []models.GenreProfile) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, p := range profiles {
			key := fmt.Sprintf("%s%s@v%d", prefixProfile, p.ID, p.Version)
			if _, err := txn.Get([]byte(key)); err == nil {
				continue
			}
			if err := setJSON(txn, key, p, 0); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *diskStore) ListProfiles() ([]models.GenreProfile, error) {
	var profiles []models.GenreProfile
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(prefixProfile)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var p models.GenreProfile
				if err := json.Unmarshal(val, &p); err != nil {
					return err
				}
				profiles = append(profiles, p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

func (s *diskStore) Close() error {
	return s.db.Close()
}

func setJSON(txn *badger.Txn, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	e := badger.NewEntry([]byte(key), data)
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	return txn.SetEntry(e)
}

func getJSON(txn *badger.Txn, key string, v any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return &apperrors.CacheCorruptionError{Key: key, Detail: err.Error()}
		}
		return nil
	})
}
