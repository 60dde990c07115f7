package internal

import (
	"sort"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Column Type (one key space of the database)
// --------------------------------------------------------------------------

// Column holds the entries of a single db.Column.
// The map itself is safe for concurrent use, ordering guarantees between
// multiple keys are provided by the commit lock of the database.
type Column struct {
	Data  *xsync.MapOf[string, []byte] // key -> value
	Bytes atomic.Int64                 // sum of key and value lengths
}

// NewColumn creates a new empty column
func NewColumn() *Column {
	return &Column{
		Data: xsync.NewMapOf[string, []byte](),
	}
}

// Put stores a copy of value under key
func (c *Column) Put(key string, value []byte) {
	stored := make([]byte, len(value))
	copy(stored, value)

	prev, existed := c.Data.LoadAndStore(key, stored)
	if existed {
		c.Bytes.Add(int64(len(stored) - len(prev)))
	} else {
		c.Bytes.Add(int64(len(key) + len(stored)))
	}
}

// Delete removes key from the column
func (c *Column) Delete(key string) {
	if prev, existed := c.Data.LoadAndDelete(key); existed {
		c.Bytes.Add(-int64(len(key) + len(prev)))
	}
}

// Get returns a copy of the value stored under key
func (c *Column) Get(key string) ([]byte, bool) {
	value, ok := c.Data.Load(key)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true
}

// SortedKeys returns all keys of the column in ascending order
func (c *Column) SortedKeys() []string {
	keys := make([]string, 0, c.Data.Size())
	c.Data.Range(func(key string, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	sort.Strings(keys)
	return keys
}

// Clear removes all entries
func (c *Column) Clear() {
	c.Data.Clear()
	c.Bytes.Store(0)
}
