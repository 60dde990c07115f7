package level

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/dStmt/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var Logger = logger.GetLogger("db/level")

// levelImpl stores all columns in one LevelDB database.
// Every key is prefixed with its column byte.
type levelImpl struct {
	db     *leveldb.DB
	path   string
	closed atomic.Bool
}

// Ensure levelImpl implements db.Backend and db.Compactor
var (
	_ db.Backend   = (*levelImpl)(nil)
	_ db.Compactor = (*levelImpl)(nil)
)

// Open opens (or creates) a LevelDB database in the directory path
func Open(path string) (db.Backend, error) {
	ldb, err := leveldb.OpenFile(path, &opt.Options{
		// statements are small and written in many tiny batches
		WriteBuffer: 16 * opt.MiB,
	})
	if err != nil {
		return nil, fmt.Errorf("leveldb: failed to open %s: %w", path, err)
	}
	Logger.Infof("opened leveldb at %s", path)
	return &levelImpl{db: ldb, path: path}, nil
}

// OpenMemory opens a LevelDB database backed by memory storage.
// Nothing is written to disk.
func OpenMemory() (db.Backend, error) {
	ldb, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &levelImpl{db: ldb}, nil
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

func (l *levelImpl) Get(col db.Column, key []byte) ([]byte, error) {
	if l.closed.Load() {
		return nil, db.ErrClosed
	}
	if err := db.ValidateColumn(col); err != nil {
		return nil, err
	}

	value, err := l.db.Get(prefixed(col, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (l *levelImpl) Commit(ops []db.Op) error {
	if l.closed.Load() {
		return db.ErrClosed
	}

	batch := new(leveldb.Batch)
	for _, op := range ops {
		if err := db.ValidateColumn(op.Col); err != nil {
			return err
		}
		if op.IsDelete() {
			batch.Delete(prefixed(op.Col, op.Key))
		} else {
			batch.Put(prefixed(op.Col, op.Key), op.Value)
		}
	}
	if batch.Len() == 0 {
		return nil
	}
	return l.db.Write(batch, nil)
}

func (l *levelImpl) Iterate(col db.Column, fn func(key, value []byte) bool) error {
	if l.closed.Load() {
		return db.ErrClosed
	}
	if err := db.ValidateColumn(col); err != nil {
		return err
	}

	iter := l.db.NewIterator(util.BytesPrefix([]byte{byte(col)}), nil)
	defer iter.Release()

	for iter.Next() {
		if !fn(iter.Key()[1:], iter.Value()) {
			break
		}
	}
	return iter.Error()
}

func (l *levelImpl) Close() error {
	if l.closed.Swap(true) {
		return db.ErrClosed
	}
	return l.db.Close()
}

// GetInfo counts the keys of every column and asks LevelDB for the approximate size on disk
func (l *levelImpl) GetInfo() db.DatabaseInfo {
	keys := make(map[string]int, db.NumColumns)
	ranges := make([]util.Range, 0, db.NumColumns)

	for col := db.Column(0); col < db.NumColumns; col++ {
		count := 0
		_ = l.Iterate(col, func(key, value []byte) bool {
			count++
			return true
		})
		keys[col.String()] = count
		ranges = append(ranges, *util.BytesPrefix([]byte{byte(col)}))
	}

	var sizeBytes int64
	if !l.closed.Load() {
		if sizes, err := l.db.SizeOf(ranges); err == nil {
			sizeBytes = sizes.Sum()
		}
	}

	meta := &struct {
		Path  string `json:"path"`
		Stats string `json:"stats"`
	}{
		Path: l.path,
	}
	if !l.closed.Load() {
		meta.Stats, _ = l.db.GetProperty("leveldb.stats")
	}

	return db.DatabaseInfo{
		SizeBytes: int(sizeBytes),
		DbType:    db.ImplLevel,
		Keys:      keys,
		Metadata:  meta,
	}
}

// Compact compacts the whole key range so tombstones of purged statements are dropped
func (l *levelImpl) Compact() error {
	if l.closed.Load() {
		return db.ErrClosed
	}
	return l.db.CompactRange(util.Range{})
}
