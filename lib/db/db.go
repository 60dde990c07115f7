package db

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple  Implementation = "maple"
	ImplLevel  Implementation = "leveldb"
	ImplBadger Implementation = "badger"
	ImplBolt   Implementation = "bolt"
)

// Column identifies a key space inside a backend.
type Column uint8

const (
	ColMeta       Column = iota // Database metadata (version)
	ColStatements               // hash -> encoded statement
	ColExpired                  // hash -> (hash, expiry timestamp)

	// NumColumns is the number of columns every backend must provide
	NumColumns = 3
)

func (c Column) String() string {
	switch c {
	case ColMeta:
		return "meta"
	case ColStatements:
		return "statements"
	case ColExpired:
		return "expired"
	default:
		return fmt.Sprintf("column(%d)", uint8(c))
	}
}

// Op is a single write inside a commit. A nil Value deletes the key.
type Op struct {
	Col   Column
	Key   []byte
	Value []byte
}

// Put creates an Op that sets key to value in col
func Put(col Column, key, value []byte) Op {
	if value == nil {
		value = []byte{}
	}
	return Op{Col: col, Key: key, Value: value}
}

// Delete creates an Op that removes key from col
func Delete(col Column, key []byte) Op {
	return Op{Col: col, Key: key}
}

// IsDelete reports whether the op removes its key
func (o Op) IsDelete() bool {
	return o.Value == nil
}

// ErrClosed is returned by all operations on a closed backend.
var ErrClosed = errors.New("db: backend is closed")

// ValidateColumn returns an error if col is not one of the known columns
func ValidateColumn(col Column) error {
	if col >= NumColumns {
		return fmt.Errorf("db: unknown column %d", col)
	}
	return nil
}

type DatabaseInfo struct {
	SizeBytes int            `json:"size_bytes"`
	DbType    Implementation `json:"db_type"`
	Keys      map[string]int `json:"keys"`
	Metadata  interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Backend Interface
// --------------------------------------------------------------------------

// Backend defines an interface for ordered, columnar key-value stores with
// atomic multi-key commits. It is the persistence layer of the statement store.
type Backend interface {

	// Get returns the value stored for key in col.
	// A nil value without error means the key does not exist.
	// The returned slice is owned by the caller.
	Get(col Column, key []byte) (value []byte, err error)

	// Commit applies all ops atomically: either all of them are visible afterward or none.
	// Ops are applied in order, so a later op on the same key wins.
	Commit(ops []Op) (err error)

	// Iterate calls fn for every entry of col in ascending key order until fn returns false.
	// The slices passed to fn are only valid during the call.
	// fn must not call other methods of the backend.
	Iterate(col Column, fn func(key, value []byte) bool) (err error)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database. All later calls return ErrClosed.
	Close() (err error)
}

// Factory creates (or opens) a backend
type Factory func() (Backend, error)

// Compactor is implemented by backends that need to reclaim space after deletes.
// The statement store calls Compact after each maintenance pass.
type Compactor interface {
	Compact() error
}
