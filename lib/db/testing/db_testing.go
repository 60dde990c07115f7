package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/dStmt/lib/db"
)

// RunBackendTests runs a comprehensive test suite for a Backend implementation.
// The factory must return a new, empty backend on every call.
func RunBackendTests(t *testing.T, name string, factory db.Factory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, open(t, factory))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, open(t, factory))
		})

		t.Run("ColumnIsolation", func(t *testing.T) {
			testColumnIsolation(t, open(t, factory))
		})

		t.Run("CommitOrder", func(t *testing.T) {
			testCommitOrder(t, open(t, factory))
		})

		t.Run("EmptyCommit", func(t *testing.T) {
			testEmptyCommit(t, open(t, factory))
		})

		t.Run("IterateOrdered", func(t *testing.T) {
			testIterateOrdered(t, open(t, factory))
		})

		t.Run("IterateStop", func(t *testing.T) {
			testIterateStop(t, open(t, factory))
		})

		t.Run("UnknownColumn", func(t *testing.T) {
			testUnknownColumn(t, open(t, factory))
		})

		t.Run("GetInfo", func(t *testing.T) {
			testGetInfo(t, open(t, factory))
		})

		t.Run("Concurrent", func(t *testing.T) {
			testConcurrent(t, open(t, factory))
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, open(t, factory))
		})
	})
}

// RunReopenTest checks that committed data survives closing and reopening a backend.
// reopen must open the same underlying storage on every call.
func RunReopenTest(t *testing.T, name string, reopen db.Factory) {
	t.Run(name+"/Reopen", func(t *testing.T) {
		database, err := reopen()
		if err != nil {
			t.Fatalf("Failed to open backend: %v", err)
		}

		ops := []db.Op{
			db.Put(db.ColMeta, []byte("version"), []byte{1}),
			db.Put(db.ColStatements, []byte("a"), []byte("value-a")),
			db.Put(db.ColStatements, []byte("b"), []byte("value-b")),
			db.Put(db.ColExpired, []byte("c"), []byte("value-c")),
		}
		if err := database.Commit(ops); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
		if err := database.Commit([]db.Op{db.Delete(db.ColStatements, []byte("b"))}); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
		if err := database.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		database, err = reopen()
		if err != nil {
			t.Fatalf("Failed to reopen backend: %v", err)
		}
		defer database.Close()

		expectValue(t, database, db.ColMeta, "version", []byte{1})
		expectValue(t, database, db.ColStatements, "a", []byte("value-a"))
		expectValue(t, database, db.ColStatements, "b", nil)
		expectValue(t, database, db.ColExpired, "c", []byte("value-c"))
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func open(t *testing.T, factory db.Factory) db.Backend {
	t.Helper()
	database, err := factory()
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	return database
}

func expectValue(t *testing.T, database db.Backend, col db.Column, key string, expected []byte) {
	t.Helper()
	value, err := database.Get(col, []byte(key))
	if err != nil {
		t.Fatalf("Get(%s, %s) failed: %v", col, key, err)
	}
	if expected == nil {
		if value != nil {
			t.Errorf("Expected key %s in %s to be absent, got %q", key, col, value)
		}
		return
	}
	if !bytes.Equal(value, expected) {
		t.Errorf("Expected value %q for key %s in %s, got %q", expected, key, col, value)
	}
}

func collect(t *testing.T, database db.Backend, col db.Column) ([]string, [][]byte) {
	t.Helper()
	var keys []string
	var values [][]byte
	err := database.Iterate(col, func(key, value []byte) bool {
		keys = append(keys, string(key))
		values = append(values, append([]byte(nil), value...))
		return true
	})
	if err != nil {
		t.Fatalf("Iterate(%s) failed: %v", col, err)
	}
	return keys, values
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, database db.Backend) {
	defer database.Close()

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	if err := database.Commit([]db.Op{db.Put(db.ColStatements, []byte(testKey), testValue1)}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	expectValue(t, database, db.ColStatements, testKey, testValue1)

	if err := database.Commit([]db.Op{db.Put(db.ColStatements, []byte(testKey), testValue2)}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	expectValue(t, database, db.ColStatements, testKey, testValue2)

	expectValue(t, database, db.ColStatements, "nonexistent-key", nil)

	retrievedValue, _ := database.Get(db.ColStatements, []byte(testKey))
	retrievedValue[0] = 'X'

	originalValue, _ := database.Get(db.ColStatements, []byte(testKey))
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	// empty values are values, not deletes
	if err := database.Commit([]db.Op{db.Put(db.ColStatements, []byte("empty"), nil)}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	value, err := database.Get(db.ColStatements, []byte("empty"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value == nil || len(value) != 0 {
		t.Errorf("Expected empty non-nil value, got %v", value)
	}
}

func testDelete(t *testing.T, database db.Backend) {
	defer database.Close()

	err := database.Commit([]db.Op{
		db.Put(db.ColStatements, []byte("a"), []byte("1")),
		db.Put(db.ColStatements, []byte("b"), []byte("2")),
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if err := database.Commit([]db.Op{db.Delete(db.ColStatements, []byte("a"))}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	expectValue(t, database, db.ColStatements, "a", nil)
	expectValue(t, database, db.ColStatements, "b", []byte("2"))

	// deleting a missing key is not an error
	if err := database.Commit([]db.Op{db.Delete(db.ColStatements, []byte("missing"))}); err != nil {
		t.Errorf("Deleting a missing key should succeed, got %v", err)
	}
}

func testColumnIsolation(t *testing.T, database db.Backend) {
	defer database.Close()

	key := []byte("same-key")
	err := database.Commit([]db.Op{
		db.Put(db.ColMeta, key, []byte("meta")),
		db.Put(db.ColStatements, key, []byte("statement")),
		db.Put(db.ColExpired, key, []byte("expired")),
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	expectValue(t, database, db.ColMeta, "same-key", []byte("meta"))
	expectValue(t, database, db.ColStatements, "same-key", []byte("statement"))
	expectValue(t, database, db.ColExpired, "same-key", []byte("expired"))

	if err := database.Commit([]db.Op{db.Delete(db.ColStatements, key)}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	expectValue(t, database, db.ColStatements, "same-key", nil)
	expectValue(t, database, db.ColMeta, "same-key", []byte("meta"))
	expectValue(t, database, db.ColExpired, "same-key", []byte("expired"))

	for _, col := range []db.Column{db.ColMeta, db.ColExpired} {
		keys, _ := collect(t, database, col)
		if len(keys) != 1 {
			t.Errorf("Expected exactly one key in %s, got %v", col, keys)
		}
	}
}

func testCommitOrder(t *testing.T, database db.Backend) {
	defer database.Close()

	key := []byte("key")
	err := database.Commit([]db.Op{
		db.Put(db.ColStatements, key, []byte("first")),
		db.Delete(db.ColStatements, key),
		db.Put(db.ColStatements, key, []byte("last")),
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	expectValue(t, database, db.ColStatements, "key", []byte("last"))

	err = database.Commit([]db.Op{
		db.Put(db.ColStatements, key, []byte("again")),
		db.Delete(db.ColStatements, key),
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	expectValue(t, database, db.ColStatements, "key", nil)
}

func testEmptyCommit(t *testing.T, database db.Backend) {
	defer database.Close()

	if err := database.Commit(nil); err != nil {
		t.Errorf("Empty commit should succeed, got %v", err)
	}
	if err := database.Commit([]db.Op{}); err != nil {
		t.Errorf("Empty commit should succeed, got %v", err)
	}
}

func testIterateOrdered(t *testing.T, database db.Backend) {
	defer database.Close()

	var ops []db.Op
	for _, i := range []int{5, 3, 9, 1, 7, 0, 2, 8, 6, 4} {
		ops = append(ops, db.Put(db.ColStatements, []byte(fmt.Sprintf("key-%02d", i)), []byte(fmt.Sprintf("value-%d", i))))
	}
	ops = append(ops, db.Put(db.ColExpired, []byte("other"), []byte("x")))
	if err := database.Commit(ops); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	keys, values := collect(t, database, db.ColStatements)
	if len(keys) != 10 {
		t.Fatalf("Expected 10 keys, got %d (%v)", len(keys), keys)
	}
	for i := range keys {
		if keys[i] != fmt.Sprintf("key-%02d", i) {
			t.Errorf("Expected key-%02d at position %d, got %s", i, i, keys[i])
		}
		if string(values[i]) != fmt.Sprintf("value-%d", i) {
			t.Errorf("Expected value-%d at position %d, got %s", i, i, values[i])
		}
	}

	keys, _ = collect(t, database, db.ColMeta)
	if len(keys) != 0 {
		t.Errorf("Expected empty meta column, got %v", keys)
	}
}

func testIterateStop(t *testing.T, database db.Backend) {
	defer database.Close()

	var ops []db.Op
	for i := 0; i < 20; i++ {
		ops = append(ops, db.Put(db.ColStatements, []byte(fmt.Sprintf("key-%02d", i)), []byte("v")))
	}
	if err := database.Commit(ops); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	count := 0
	err := database.Iterate(db.ColStatements, func(key, value []byte) bool {
		count++
		return count < 5
	})
	if err != nil {
		t.Fatalf("Iterate failed: %v", err)
	}
	if count != 5 {
		t.Errorf("Iteration should stop after 5 entries, visited %d", count)
	}
}

func testUnknownColumn(t *testing.T, database db.Backend) {
	defer database.Close()

	bad := db.Column(db.NumColumns)
	if _, err := database.Get(bad, []byte("key")); err == nil {
		t.Errorf("Get on unknown column should fail")
	}
	if err := database.Commit([]db.Op{db.Put(bad, []byte("key"), []byte("v"))}); err == nil {
		t.Errorf("Commit on unknown column should fail")
	}
	if err := database.Iterate(bad, func(key, value []byte) bool { return true }); err == nil {
		t.Errorf("Iterate on unknown column should fail")
	}

	// a failed commit must not apply any of its ops
	err := database.Commit([]db.Op{
		db.Put(db.ColStatements, []byte("partial"), []byte("v")),
		db.Put(bad, []byte("key"), []byte("v")),
	})
	if err == nil {
		t.Fatalf("Commit on unknown column should fail")
	}
	expectValue(t, database, db.ColStatements, "partial", nil)
}

func testGetInfo(t *testing.T, database db.Backend) {
	defer database.Close()

	err := database.Commit([]db.Op{
		db.Put(db.ColStatements, []byte("a"), []byte("1234")),
		db.Put(db.ColStatements, []byte("b"), []byte("5678")),
		db.Put(db.ColExpired, []byte("c"), []byte("9")),
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	info := database.GetInfo()
	if info.DbType == "" {
		t.Errorf("GetInfo should report the database type")
	}
	if info.Keys[db.ColStatements.String()] != 2 {
		t.Errorf("Expected 2 keys in statements, got %d", info.Keys[db.ColStatements.String()])
	}
	if info.Keys[db.ColExpired.String()] != 1 {
		t.Errorf("Expected 1 key in expired, got %d", info.Keys[db.ColExpired.String()])
	}
}

func testConcurrent(t *testing.T, database db.Backend) {
	defer database.Close()

	const workers = 8
	const perWorker = 100

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := []byte(fmt.Sprintf("w%d-k%03d", w, i))
				if err := database.Commit([]db.Op{db.Put(db.ColStatements, key, key)}); err != nil {
					errs <- err
					return
				}
				value, err := database.Get(db.ColStatements, key)
				if err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(value, key) {
					errs <- fmt.Errorf("read %q, expected %q", value, key)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Concurrent access failed: %v", err)
	}

	keys, _ := collect(t, database, db.ColStatements)
	if len(keys) != workers*perWorker {
		t.Errorf("Expected %d keys, got %d", workers*perWorker, len(keys))
	}
}

func testClose(t *testing.T, database db.Backend) {
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := database.Get(db.ColStatements, []byte("key")); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Get after Close should return ErrClosed, got %v", err)
	}
	if err := database.Commit([]db.Op{db.Put(db.ColStatements, []byte("key"), []byte("v"))}); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Commit after Close should return ErrClosed, got %v", err)
	}
	if err := database.Iterate(db.ColStatements, func(key, value []byte) bool { return true }); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Iterate after Close should return ErrClosed, got %v", err)
	}
}
