package localstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/ports"
	"SlopConsensus/pkg/logger"
)

var (
	entryPrefix  = []byte("entry/")
	watermarkKey = []byte("meta/watermark")
)

// BadgerCache is a ports.CacheStore on an embedded badger database.
type BadgerCache struct {
	db *badger.DB
}

var _ ports.CacheStore = (*BadgerCache)(nil)

// OpenBadgerCache opens the cache in dir. An empty dir keeps everything in memory.
func OpenBadgerCache(dir string, log *slog.Logger) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(logger.NewPrintf(log))
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &BadgerCache{db: db}, nil
}

// Close flushes and releases the database.
func (c *BadgerCache) Close() error {
	return c.db.Close()
}

func entryKey(itemID string) []byte {
	return append(append([]byte(nil), entryPrefix...), itemID...)
}

func (c *BadgerCache) Replace(_ context.Context, entries []domain.CacheEntry, watermark time.Time) error {
	keep := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		keep[string(entryKey(e.ItemID))] = struct{}{}
	}

	stale, err := c.keys(func(key []byte, _ domain.CacheEntry) bool {
		_, ok := keep[string(key)]
		return !ok
	})
	if err != nil {
		return err
	}

	if err := c.commit(watermark, func(w writer) error {
		if err := deleteKeys(w, stale); err != nil {
			return err
		}
		return setEntries(w, entries)
	}); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

func (c *BadgerCache) Apply(_ context.Context, upserts []domain.CacheEntry, evicted []string, watermark time.Time) error {
	keys := make([][]byte, len(evicted))
	for i, id := range evicted {
		keys[i] = entryKey(id)
	}
	if err := c.commit(watermark, func(w writer) error {
		if err := deleteKeys(w, keys); err != nil {
			return err
		}
		return setEntries(w, upserts)
	}); err != nil {
		return fmt.Errorf("apply cache delta: %w", err)
	}
	return nil
}

// writer is the write surface shared by badger.Txn and badger.WriteBatch.
type writer interface {
	Set(key, val []byte) error
	Delete(key []byte) error
}

// commit runs write and the watermark in one transaction. When that is too big for badger,
// write goes through a WriteBatch and the watermark follows in its own transaction, so a
// crash in between leaves the old watermark and the next sync redoes the work.
func (c *BadgerCache) commit(watermark time.Time, write func(w writer) error) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		if err := write(txn); err != nil {
			return err
		}
		return setWatermark(txn, watermark)
	})
	if !errors.Is(err, badger.ErrTxnTooBig) {
		return err
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	if err := write(wb); err != nil {
		return err
	}
	if err := wb.Flush(); err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return setWatermark(txn, watermark)
	})
}

func (c *BadgerCache) Get(_ context.Context, itemID string) (domain.CacheEntry, bool, error) {
	var (
		entry domain.CacheEntry
		found bool
	)
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(itemID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("read cache entry %s: %w", itemID, err)
	}
	return entry, found, nil
}

func (c *BadgerCache) Prune(_ context.Context, olderThan time.Time) (int, error) {
	stale, err := c.keys(func(_ []byte, e domain.CacheEntry) bool {
		return e.LastUpdateAt.Before(olderThan)
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	if err := deleteKeys(wb, stale); err != nil {
		return 0, err
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return len(stale), nil
}

func (c *BadgerCache) Watermark(_ context.Context) (time.Time, error) {
	var wm time.Time
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(watermarkKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return wm.UnmarshalText(val)
		})
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("read watermark: %w", err)
	}
	return wm.UTC(), nil
}

func (c *BadgerCache) Count(_ context.Context) (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count cache: %w", err)
	}
	return n, nil
}

// keys returns the entry keys for which match holds.
func (c *BadgerCache) keys(match func(key []byte, e domain.CacheEntry) bool) ([][]byte, error) {
	var out [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var e domain.CacheEntry
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
				return err
			}
			key := item.KeyCopy(nil)
			if match(key, e) {
				out = append(out, key)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan cache: %w", err)
	}
	return out, nil
}

func deleteKeys(w writer, keys [][]byte) error {
	for _, key := range keys {
		if err := w.Delete(key); err != nil {
			return fmt.Errorf("delete cache entry %s: %w", key[len(entryPrefix):], err)
		}
	}
	return nil
}

func setEntries(w writer, entries []domain.CacheEntry) error {
	for _, e := range entries {
		val, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode cache entry %s: %w", e.ItemID, err)
		}
		if err := w.Set(entryKey(e.ItemID), val); err != nil {
			return fmt.Errorf("write cache entry %s: %w", e.ItemID, err)
		}
	}
	return nil
}

func setWatermark(w writer, watermark time.Time) error {
	val, err := watermark.UTC().MarshalText()
	if err != nil {
		return fmt.Errorf("encode watermark: %w", err)
	}
	if err := w.Set(watermarkKey, val); err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}
	return nil
}
