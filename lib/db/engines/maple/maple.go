package maple

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dStmt/lib/db"
	"github.com/ValentinKolb/dStmt/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/dStmt/lib/db/util"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum      = "MAPLEDB\x00" // File format identifier
	mapleVersion  = 4             // Snapshot format version
	snapshotName  = "maple.db"    // File name of the snapshot inside DBOptions.Path
	samplesPerCol = 100           // Number of values sampled per column by GetInfo
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements an in-memory backend with one concurrent map per column
type mapleImpl struct {
	// commitLock serializes commits. Readers take the read lock so that
	// they never observe a partially applied commit.
	commitLock sync.RWMutex
	columns    [db.NumColumns]*internal.Column
	path       string // snapshot directory, empty for pure in-memory databases
	closed     atomic.Bool
	commits    atomic.Uint64
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	// Path is the directory the database is snapshotted to on Close and
	// restored from on open. An empty path keeps the database in memory only.
	Path string
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional).
// If a snapshot exists at opts.Path it is loaded.
func NewMapleDB(opts *DBOptions) (db.Backend, error) {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}

	maple := &mapleImpl{path: opts.Path}
	for i := range maple.columns {
		maple.columns[i] = internal.NewColumn()
	}

	if maple.path == "" {
		return maple, nil
	}

	if err := os.MkdirAll(maple.path, 0o755); err != nil {
		return nil, fmt.Errorf("maple: failed to create directory: %w", err)
	}

	f, err := os.Open(filepath.Join(maple.path, snapshotName))
	if errors.Is(err, os.ErrNotExist) {
		return maple, nil
	} else if err != nil {
		return nil, fmt.Errorf("maple: failed to open snapshot: %w", err)
	}
	defer f.Close()

	if err := maple.Load(f); err != nil {
		return nil, fmt.Errorf("maple: failed to load snapshot: %w", err)
	}
	return maple, nil
}

// Ensure mapleImpl implements db.Backend
var _ db.Backend = (*mapleImpl)(nil)

// --------------------------------------------------------------------------
// Backend Interface Methods
// --------------------------------------------------------------------------

// Get returns a copy of the value stored for key in col
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(col db.Column, key []byte) ([]byte, error) {
	if maple.closed.Load() {
		return nil, db.ErrClosed
	}
	if err := db.ValidateColumn(col); err != nil {
		return nil, err
	}

	maple.commitLock.RLock()
	defer maple.commitLock.RUnlock()

	value, _ := maple.columns[col].Get(string(key))
	return value, nil
}

// Commit applies all ops while holding the commit lock
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Commit(ops []db.Op) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}

	// validate first so that a bad op does not leave a half applied commit
	for _, op := range ops {
		if err := db.ValidateColumn(op.Col); err != nil {
			return err
		}
	}

	maple.commitLock.Lock()
	defer maple.commitLock.Unlock()

	for _, op := range ops {
		if op.IsDelete() {
			maple.columns[op.Col].Delete(string(op.Key))
		} else {
			maple.columns[op.Col].Put(string(op.Key), op.Value)
		}
	}
	maple.commits.Add(1)
	return nil
}

// Iterate walks col in ascending key order
//
// Thread-safety: This method is thread-safe. Commits are blocked while fn runs.
func (maple *mapleImpl) Iterate(col db.Column, fn func(key, value []byte) bool) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}
	if err := db.ValidateColumn(col); err != nil {
		return err
	}

	maple.commitLock.RLock()
	defer maple.commitLock.RUnlock()

	column := maple.columns[col]
	for _, key := range column.SortedKeys() {
		value, ok := column.Data.Load(key)
		if !ok {
			continue
		}
		if !fn([]byte(key), value) {
			break
		}
	}
	return nil
}

// Close snapshots the database (if a path was configured) and releases all entries
func (maple *mapleImpl) Close() error {
	if maple.closed.Swap(true) {
		return db.ErrClosed
	}

	maple.commitLock.Lock()
	defer maple.commitLock.Unlock()

	var err error
	if maple.path != "" {
		err = maple.saveFile()
	}

	for _, column := range maple.columns {
		column.Clear()
	}
	return err
}

// --------------------------------------------------------------------------
// Persistence
// --------------------------------------------------------------------------

// saveFile writes the snapshot to a temporary file and renames it into place
func (maple *mapleImpl) saveFile() error {
	target := filepath.Join(maple.path, snapshotName)
	tmp, err := os.CreateTemp(maple.path, snapshotName+".*")
	if err != nil {
		return fmt.Errorf("maple: failed to create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := maple.Save(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("maple: failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// Save writes all columns to w.
//
// Thread-safety: The caller must hold the commit lock.
func (maple *mapleImpl) Save(w io.Writer) error {

	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}

	// Write maple version
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}

	// Write column count
	if err := binary.Write(bw, binary.LittleEndian, uint8(db.NumColumns)); err != nil {
		return err
	}

	for _, column := range maple.columns {
		keys := column.SortedKeys()

		// Write entry count of the column
		if err := binary.Write(bw, binary.LittleEndian, uint64(len(keys))); err != nil {
			return err
		}

		for _, key := range keys {
			value, _ := column.Data.Load(key)

			// Write key
			if err := binary.Write(bw, binary.LittleEndian, uint32(len(key))); err != nil {
				return err
			}
			if _, err := bw.WriteString(key); err != nil {
				return err
			}

			// Write value
			if err := binary.Write(bw, binary.LittleEndian, uint32(len(value))); err != nil {
				return err
			}
			if _, err := bw.Write(value); err != nil {
				return err
			}
		}
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// Load replaces the content of all columns with the snapshot read from r
//
// Thread-safety: This function is not thread-safe and should not be called concurrently
func (maple *mapleImpl) Load(r io.Reader) error {

	// Use a buffered reader for better performance
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}

	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}

	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	var numColumns uint8
	if err := binary.Read(br, binary.LittleEndian, &numColumns); err != nil {
		return err
	}
	if int(numColumns) != db.NumColumns {
		return fmt.Errorf("unsupported column count: %d (expected %d)", numColumns, db.NumColumns)
	}

	for _, column := range maple.columns {
		column.Clear()

		var count uint64
		if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
			return err
		}

		for i := uint64(0); i < count; i++ {
			key, err := readBlob(br)
			if err != nil {
				return err
			}
			value, err := readBlob(br)
			if err != nil {
				return err
			}
			column.Put(string(key), value)
		}
	}

	return nil
}

func readBlob(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// --------------------------------------------------------------------------
// Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {

	// create a size histogram for the info
	histogram := util.NewSizeHistogram()

	keys := make(map[string]int, db.NumColumns)
	columnSizes := make([]float64, db.NumColumns)
	sizeBytes := 0

	for i, column := range maple.columns {
		count := 0
		column.Data.Range(func(key string, value []byte) bool {
			// track size in histogram, only sample a few entries per column
			histogram.AddSample(len(value))
			count++
			return count < samplesPerCol
		})

		size := column.Data.Size()
		keys[db.Column(i).String()] = size
		columnSizes[i] = float64(size)
		sizeBytes += int(column.Bytes.Load())
	}

	// Metadata for this specific database implementation
	meta := &struct {
		Commits            uint64                 `json:"commits"`
		Persistent         bool                   `json:"persistent"`
		ColumnDistribution util.DistributionStats `json:"column_distribution"`
		MedianValueSize    int                    `json:"median_value_size"`
		P90ValueSize       int                    `json:"p90_value_size"`
		Info               string                 `json:"info"`
	}{
		Commits:            maple.commits.Load(),
		Persistent:         maple.path != "",
		ColumnDistribution: util.NewDistributionStats(columnSizes),
		MedianValueSize:    histogram.MedianEstimate(),
		P90ValueSize:       histogram.GetPercentileEstimate(90),
		Info:               "Value sizes are estimated from a sample of each column.",
	}

	return db.DatabaseInfo{
		SizeBytes: sizeBytes,
		DbType:    db.ImplMaple,
		Keys:      keys,
		Metadata:  meta,
	}
}
