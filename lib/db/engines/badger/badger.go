package badger

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/dStmt/lib/db"
	"github.com/dgraph-io/badger/v4"
	"github.com/lni/dragonboat/v4/logger"
)

// Logger is handed to badger as well, dragonboat's ILogger satisfies badger.Logger
var Logger = logger.GetLogger("db/badger")

// badgerImpl stores all columns in one badger database.
// Every key is prefixed with its column byte.
type badgerImpl struct {
	db     *badger.DB
	path   string
	closed atomic.Bool
}

// Ensure badgerImpl implements db.Backend and db.Compactor
var (
	_ db.Backend   = (*badgerImpl)(nil)
	_ db.Compactor = (*badgerImpl)(nil)
)

// Open opens (or creates) a badger database in the directory path
func Open(path string) (db.Backend, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = Logger
	opts.ValueLogFileSize = 1024 * 1024 * 64 // 64MB value log files
	opts.SyncWrites = true

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: failed to open %s: %w", path, err)
	}
	return &badgerImpl{db: bdb, path: path}, nil
}

// OpenMemory opens a badger database that keeps everything in memory
func OpenMemory() (db.Backend, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerImpl{db: bdb}, nil
}

func prefixed(col db.Column, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(col)
	copy(out[1:], key)
	return out
}

// --------------------------------------------------------------------------
// Backend Interface Methods
// --------------------------------------------------------------------------

func (b *badgerImpl) Get(col db.Column, key []byte) ([]byte, error) {
	if b.closed.Load() {
		return nil, db.ErrClosed
	}
	if err := db.ValidateColumn(col); err != nil {
		return nil, err
	}

	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(prefixed(col, key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		if value == nil {
			value = []byte{}
		}
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return value, err
}

func (b *badgerImpl) Commit(ops []db.Op) error {
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

	return b.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			var err error
			if op.IsDelete() {
				err = txn.Delete(prefixed(op.Col, op.Key))
			} else {
				err = txn.Set(prefixed(op.Col, op.Key), op.Value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *badgerImpl) Iterate(col db.Column, fn func(key, value []byte) bool) error {
	if b.closed.Load() {
		return db.ErrClosed
	}
	if err := db.ValidateColumn(col); err != nil {
		return err
	}

	prefix := []byte{byte(col)}
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			stop := false
			err := item.Value(func(value []byte) error {
				stop = !fn(item.Key()[1:], value)
				return nil
			})
			if err != nil {
				return err
			}
			if stop {
				break
			}
		}
		return nil
	})
}

func (b *badgerImpl) Close() error {
	if b.closed.Swap(true) {
		return db.ErrClosed
	}
	return b.db.Close()
}

// GetInfo counts the keys of every column and reports badger's LSM and value log sizes
func (b *badgerImpl) GetInfo() db.DatabaseInfo {
	keys := make(map[string]int, db.NumColumns)
	for col := db.Column(0); col < db.NumColumns; col++ {
		count := 0
		_ = b.Iterate(col, func(key, value []byte) bool {
			count++
			return true
		})
		keys[col.String()] = count
	}

	meta := &struct {
		Path     string `json:"path"`
		LSMBytes int64  `json:"lsm_bytes"`
		VLogSize int64  `json:"vlog_bytes"`
		InMemory bool   `json:"in_memory"`
	}{
		Path:     b.path,
		InMemory: b.path == "",
	}
	if !b.closed.Load() {
		meta.LSMBytes, meta.VLogSize = b.db.Size()
	}

	return db.DatabaseInfo{
		SizeBytes: int(meta.LSMBytes + meta.VLogSize),
		DbType:    db.ImplBadger,
		Keys:      keys,
		Metadata:  meta,
	}
}

// Compact reclaims space of the value log. It is a no-op if nothing can be rewritten.
func (b *badgerImpl) Compact() error {
	if b.closed.Load() {
		return db.ErrClosed
	}
	if b.path == "" {
		return nil
	}
	err := b.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}
