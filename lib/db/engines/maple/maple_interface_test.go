package maple

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/dStmt/lib/db"
	dbtesting "github.com/ValentinKolb/dStmt/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunBackendTests(t, "MapleDB", func() (db.Backend, error) {
		return NewMapleDB(nil)
	})

	dir := t.TempDir()
	dbtesting.RunReopenTest(t, "MapleDB(snapshot)", func() (db.Backend, error) {
		return NewMapleDB(&DBOptions{Path: dir})
	})
}

func TestCorruptSnapshot(t *testing.T) {
	database, err := NewMapleDB(nil)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	m := database.(*mapleImpl)

	if err := m.Load(strings.NewReader("NOTMAPLE")); err == nil {
		t.Errorf("Load should fail on a wrong magic number")
	}
	if err := m.Load(strings.NewReader(magicNum + "\x04\x03\x01")); err == nil {
		t.Errorf("Load should fail on a truncated snapshot")
	}
}

func Benchmark(b *testing.B) {
	dbtesting.RunBackendBenchmarks(b, "MapleDB", func() (db.Backend, error) {
		return NewMapleDB(nil)
	})
}
