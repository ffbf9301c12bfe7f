package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const boltFile = "ogpimage.bolt"

// BoltStore keeps one bbolt bucket per namespace with JSON encoded entries.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens the bolt file inside dataDir, creating the directory if needed.
func OpenBolt(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	db, err := bbolt.Open(filepath.Join(dataDir, boltFile), 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Get(ctx context.Context, namespace, key string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	var raw []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(namespace))
		if bucket == nil {
			return nil
		}
		if v := bucket.Get([]byte(key)); v != nil {
			// Values are only valid inside the transaction.
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read %s/%s: %w", namespace, key, err)
	}
	if raw == nil {
		return Entry{}, false, nil
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode %s/%s: %w", namespace, key, err)
	}
	return e, true, nil
}

func (b *BoltStore) Put(ctx context.Context, namespace string, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", namespace, err)
		}
		return bucket.Put([]byte(e.Key), data)
	})
}

func (b *BoltStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, bucket *bbolt.Bucket) error {
			var stale [][]byte
			err := bucket.ForEach(func(k, v []byte) error {
				var e Entry
				if err := json.Unmarshal(v, &e); err != nil || expiredBefore(e, olderThan) {
					stale = append(stale, append([]byte(nil), k...))
				}
				return nil
			})
			if err != nil {
				return err
			}
			for _, k := range stale {
				if err := bucket.Delete(k); err != nil {
					return err
				}
				n++
			}
			return ctx.Err()
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge bolt: %w", err)
	}
	return n, nil
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}
