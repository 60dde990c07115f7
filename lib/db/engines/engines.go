// Package engines selects a db.Backend implementation by name.
package engines

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ValentinKolb/dStmt/lib/db"
	"github.com/ValentinKolb/dStmt/lib/db/engines/badger"
	"github.com/ValentinKolb/dStmt/lib/db/engines/bolt"
	"github.com/ValentinKolb/dStmt/lib/db/engines/level"
	"github.com/ValentinKolb/dStmt/lib/db/engines/maple"
)

// Available lists the names accepted by Open
var Available = []db.Implementation{db.ImplMaple, db.ImplLevel, db.ImplBadger, db.ImplBolt}

// Open opens the engine impl with its data below dir.
// An empty dir opens the engine in memory where the engine supports it.
func Open(impl db.Implementation, dir string) (db.Backend, error) {
	switch impl {
	case db.ImplMaple:
		return maple.NewMapleDB(&maple.DBOptions{Path: dir})
	case db.ImplLevel:
		if dir == "" {
			return level.OpenMemory()
		}
		return level.Open(dir)
	case db.ImplBadger:
		if dir == "" {
			return badger.OpenMemory()
		}
		return badger.Open(dir)
	case db.ImplBolt:
		if dir == "" {
			return nil, fmt.Errorf("bolt requires a data directory")
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		return bolt.Open(filepath.Join(dir, "statements.db"))
	default:
		return nil, fmt.Errorf("unknown database engine %q (available: %v)", impl, Available)
	}
}

// Factory returns a db.Factory that opens impl below dir
func Factory(impl db.Implementation, dir string) db.Factory {
	return func() (db.Backend, error) {
		return Open(impl, dir)
	}
}
