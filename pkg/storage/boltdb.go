package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/lookout/pkg/events"
	"github.com/cuemby/lookout/pkg/types"
)

var (
	// Bucket names
	bucketProfiles = []byte("profiles")
	bucketEvents   = []byte("events")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, "lookout.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketProfiles, bucketEvents} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func profileKey(name string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(name)))
}

// Profile operations

// SaveProfile creates or replaces a profile. CreatedAt is preserved across
// updates.
func (s *BoltStore) SaveProfile(profile *types.Profile) error {
	if strings.TrimSpace(profile.Name) == "" {
		return &types.ValidationError{Field: "name", Message: "Profile name is required"}
	}
	if err := profile.Config.Validate(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		key := profileKey(profile.Name)

		now := time.Now()
		profile.UpdatedAt = now
		if existing := b.Get(key); existing != nil {
			var prev types.Profile
			if err := json.Unmarshal(existing, &prev); err == nil {
				profile.CreatedAt = prev.CreatedAt
			}
		}
		if profile.CreatedAt.IsZero() {
			profile.CreatedAt = now
		}

		data, err := json.Marshal(profile)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *BoltStore) GetProfile(name string) (*types.Profile, error) {
	var profile types.Profile
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		data := b.Get(profileKey(name))
		if data == nil {
			return fmt.Errorf("profile %s: %w", name, ErrNotFound)
		}
		return json.Unmarshal(data, &profile)
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *BoltStore) ListProfiles() ([]*types.Profile, error) {
	var profiles []*types.Profile
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		return b.ForEach(func(k, v []byte) error {
			var profile types.Profile
			if err := json.Unmarshal(v, &profile); err != nil {
				return err
			}
			profiles = append(profiles, &profile)
			return nil
		})
	})
	return profiles, err
}

func (s *BoltStore) DeleteProfile(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProfiles)
		key := profileKey(name)
		if b.Get(key) == nil {
			return fmt.Errorf("profile %s: %w", name, ErrNotFound)
		}
		return b.Delete(key)
	})
}

// Event history operations

// AppendEvent stores ev under a monotonically increasing sequence key
func (s *BoltStore) AppendEvent(event *events.Event) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
}

// ListEvents returns the newest limit events, oldest first. A limit of
// zero or less returns all of them.
func (s *BoltStore) ListEvents(limit int) ([]*events.Event, error) {
	var out []*events.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var ev events.Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			out = append(out, &ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// PruneEvents deletes all but the newest keep events and returns how many
// were removed
func (s *BoltStore) PruneEvents(keep int) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		c := b.Cursor()

		var stale [][]byte
		kept := 0
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			if kept < keep {
				kept++
				continue
			}
			stale = append(stale, append([]byte(nil), k...))
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// Recorder is an events.Sink that persists every event it receives
type Recorder struct {
	store Store
	onErr func(error)
}

// NewRecorder creates a recorder writing to store. onErr, if set, is
// called for write failures.
func NewRecorder(store Store, onErr func(error)) *Recorder {
	return &Recorder{store: store, onErr: onErr}
}

// Publish stores ev
func (r *Recorder) Publish(ev *events.Event) {
	if err := r.store.AppendEvent(ev); err != nil && r.onErr != nil {
		r.onErr(err)
	}
}
