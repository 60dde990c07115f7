package bolt

import (
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dStmt/lib/db"
	dbtesting "github.com/ValentinKolb/dStmt/lib/db/testing"
)

func Test(t *testing.T) {
	dir := t.TempDir()
	var n atomic.Int64
	dbtesting.RunBackendTests(t, "Bolt", func() (db.Backend, error) {
		return Open(filepath.Join(dir, fmt.Sprintf("test-%d.db", n.Add(1))))
	})

	path := filepath.Join(t.TempDir(), "reopen.db")
	dbtesting.RunReopenTest(t, "Bolt", func() (db.Backend, error) {
		return Open(path)
	})
}

func Benchmark(b *testing.B) {
	dir := b.TempDir()
	var n atomic.Int64
	dbtesting.RunBackendBenchmarks(b, "Bolt", func() (db.Backend, error) {
		return Open(filepath.Join(dir, fmt.Sprintf("bench-%d.db", n.Add(1))))
	})
}
