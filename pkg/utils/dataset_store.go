package utils

import (
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// DatasetStore is a badger-backed key/value store for parsed dataset
// records, so repeated launches skip re-downloading and re-parsing the raw
// files. Reads go through an in-memory hot cache; the disk copy is the
// source of truth.
type DatasetStore struct {
	db    *badger.DB
	cache sync.Map
}

func OpenDatasetStore(path string) (*DatasetStore, error) {
	opts := badger.DefaultOptions(path)
	// Decrease logging verbosity
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &DatasetStore{db: db}, nil
}

func (s *DatasetStore) Close() error {
	return s.db.Close()
}

// Put stores a single record and refreshes the hot cache.
func (s *DatasetStore) Put(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err == nil {
		s.cache.Store(key, value)
	}
	return err
}

// PutBatch writes many records in one write batch. The hot cache is not
// populated; bulk imports are read back lazily.
func (s *DatasetStore) PutBatch(entries map[string][]byte) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for k, v := range entries {
		if err := wb.Set([]byte(k), v); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Get returns the stored value, nil if the key is absent.
func (s *DatasetStore) Get(key string) ([]byte, error) {
	if v, ok := s.cache.Load(key); ok {
		if v == nil {
			return nil, nil
		}
		return v.([]byte), nil
	}

	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		s.cache.Store(key, nil)
		return nil, nil
	}
	if err == nil {
		s.cache.Store(key, val)
	}
	return val, err
}

// ForEachPrefix iterates every record under the given key prefix.
func (s *DatasetStore) ForEachPrefix(prefix string, fn func(k []byte, v []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			k := item.Key()
			err := item.Value(func(v []byte) error {
				return fn(k, v)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of records under a prefix.
func (s *DatasetStore) Count(prefix string) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
