package bolt

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dStmt/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	"go.etcd.io/bbolt"
)

var Logger = logger.GetLogger("db/bolt")

// one bucket per column, indexed by db.Column
var buckets = [db.NumColumns][]byte{
	[]byte("meta"),
	[]byte("statements"),
	[]byte("expired"),
}

// boltImpl stores every column in its own bbolt bucket
type boltImpl struct {
	db     *bbolt.DB
	closed atomic.Bool
}

// Ensure boltImpl implements db.Backend
var _ db.Backend = (*boltImpl)(nil)

// Open opens (or creates) the bbolt database file at path
func Open(path string) (db.Backend, error) {
	bdb, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: opening database: %w", err)
	}

	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = bdb.Close()
		return nil, err
	}

	Logger.Debugf("opened bolt database at %s", path)
	return &boltImpl{db: bdb}, nil
}

// --------------------------------------------------------------------------
// Backend Interface Methods
// --------------------------------------------------------------------------

func (b *boltImpl) Get(col db.Column, key []byte) ([]byte, error) {
	if b.closed.Load() {
		return nil, db.ErrClosed
	}
	if err := db.ValidateColumn(col); err != nil {
		return nil, err
	}

	var value []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		// a cursor distinguishes an empty value from a missing key
		k, v := tx.Bucket(buckets[col]).Cursor().Seek(key)
		if k == nil || !bytes.Equal(k, key) {
			return nil
		}
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	return value, err
}

func (b *boltImpl) Commit(ops []db.Op) error {
	if b.closed.Load() {
		return db.ErrClosed
	}
	for _, op := range ops {
		if err := db.ValidateColumn(op.Col); err != nil {
			return err
		}
	}
	if len(ops) == 0 {
		return nil
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, op := range ops {
			bucket := tx.Bucket(buckets[op.Col])
			var err error
			if op.IsDelete() {
				err = bucket.Delete(op.Key)
			} else {
				err = bucket.Put(op.Key, op.Value)
			}
			if err != nil {
				return fmt.Errorf("bolt: %s %x: %w", op.Col, op.Key, err)
			}
		}
		return nil
	})
}

func (b *boltImpl) Iterate(col db.Column, fn func(key, value []byte) bool) error {
	if b.closed.Load() {
		return db.ErrClosed
	}
	if err := db.ValidateColumn(col); err != nil {
		return err
	}

	return b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(buckets[col]).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if !fn(k, v) {
				break
			}
		}
		return nil
	})
}

func (b *boltImpl) Close() error {
	if b.closed.Swap(true) {
		return db.ErrClosed
	}
	return b.db.Close()
}

// GetInfo reports the bucket statistics of every column
func (b *boltImpl) GetInfo() db.DatabaseInfo {
	keys := make(map[string]int, db.NumColumns)
	var sizeBytes int64

	meta := &struct {
		Path       string         `json:"path"`
		FreePages  int            `json:"free_pages"`
		LeafInUse  map[string]int `json:"leaf_in_use"`
		TxCommits  int            `json:"tx_commits"`
		OpenTxSize int64          `json:"size"`
	}{
		Path:      b.db.Path(),
		LeafInUse: make(map[string]int, db.NumColumns),
	}

	if !b.closed.Load() {
		_ = b.db.View(func(tx *bbolt.Tx) error {
			for col, name := range buckets {
				stats := tx.Bucket(name).Stats()
				keys[db.Column(col).String()] = stats.KeyN
				meta.LeafInUse[db.Column(col).String()] = stats.LeafInuse
			}
			sizeBytes = tx.Size()
			return nil
		})
		dbStats := b.db.Stats()
		meta.FreePages = dbStats.FreePageN
		meta.TxCommits = dbStats.TxN
		meta.OpenTxSize = sizeBytes
	}

	return db.DatabaseInfo{
		SizeBytes: int(sizeBytes),
		DbType:    db.ImplBolt,
		Keys:      keys,
		Metadata:  meta,
	}
}
