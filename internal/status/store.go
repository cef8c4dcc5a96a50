package status

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/magicorntech/epictetus/internal/metrics"
)

const snapshotKey = "status:last"

// Store persists the last-known status snapshot so a restarted controller
// reports accurate staleness immediately instead of an empty status until
// the first pass completes. The DNS provider remains the system of
// record for desired/actual records; this embedded KV store only backs
// status durability across restarts.
type Store interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
	Close() error
}

type badgerStore struct {
	db      *badger.DB
	metrics *metrics.Metrics
	mu      sync.Mutex
	cached  Snapshot
}

func New(path string, m *metrics.Metrics) (Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open status store: %w", err)
	}
	return &badgerStore{db: db, metrics: m}, nil
}

func (s *badgerStore) Load() (Snapshot, error) {
	var snap Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotKey))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	s.metrics.IncStatusRequest("read", err == nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load status snapshot: %w", err)
	}
	s.mu.Lock()
	s.cached = snap
	s.mu.Unlock()
	return snap, nil
}

func (s *badgerStore) Save(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		s.metrics.IncStatusRequest("update", false)
		return fmt.Errorf("marshal status snapshot: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotKey), data)
	})
	s.metrics.IncStatusRequest("update", err == nil)
	if err != nil {
		return fmt.Errorf("save status snapshot: %w", err)
	}
	s.mu.Lock()
	s.cached = snap
	s.mu.Unlock()
	return nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}
