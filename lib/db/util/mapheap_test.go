package util

import (
	"sort"
	"testing"
)

// TestNewMapHeap tests the creation of a new MapHeap
func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap[uint64]()

	if mh == nil {
		t.Fatal("NewMapHeap() returned nil")
	}

	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}

	if len(mh.itemsMap) != 0 {
		t.Errorf("New heap's map should be empty, but has %d items", len(mh.itemsMap))
	}
}

// TestAddItem tests adding items to the heap
func TestAddItem(t *testing.T) {
	mh := NewMapHeap[uint64]()

	mh.AddItem(1, 100)
	mh.AddItem(2, 200)
	mh.AddItem(3, 50)

	if mh.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", mh.Len())
	}

	for _, key := range []uint64{1, 2, 3} {
		if !mh.Contains(key) {
			t.Errorf("Heap should contain key %d", key)
		}
	}

	// min heap, so the lowest priority should be first
	it, exists := mh.Peek()
	if !exists {
		t.Fatal("Peek() should return an item")
	}

	if it.Key != 3 || it.Priority != 50 {
		t.Errorf("Expected min item to be (3,50), got (%d,%d)", it.Key, it.Priority)
	}
}

// TestUpdateItem tests updating existing items
func TestUpdateItem(t *testing.T) {
	mh := NewMapHeap[uint64]()

	mh.AddItem(1, 100)
	mh.AddItem(2, 200)

	// Increase priority of item 1
	mh.AddItem(1, 300)

	it, exists := mh.GetByKey(1)
	if !exists {
		t.Fatal("Item with key 1 should exist")
	}

	if it.Priority != 300 {
		t.Errorf("Item with key 1 should have priority 300, got %d", it.Priority)
	}

	min, _ := mh.Peek()
	if min.Key != 2 {
		t.Errorf("Min item should now be key 2, got %d", min.Key)
	}

	// Update to lower value
	mh.AddItem(2, 50)

	min, _ = mh.Peek()
	if min.Key != 2 || min.Priority != 50 {
		t.Errorf("Min item should now be (2,50), got (%d,%d)", min.Key, min.Priority)
	}

	if mh.Len() != 2 {
		t.Errorf("Updates must not add items, heap has %d", mh.Len())
	}
}

// TestRemoveByKey tests removing items by key
func TestRemoveByKey(t *testing.T) {
	mh := NewMapHeap[uint64]()

	mh.AddItem(1, 100)
	mh.AddItem(2, 200)
	mh.AddItem(3, 300)

	priority, exists := mh.RemoveByKey(2)

	if !exists {
		t.Fatal("RemoveByKey should return true for existing key")
	}

	if priority != 200 {
		t.Errorf("RemoveByKey should return priority 200, got %d", priority)
	}

	if mh.Len() != 2 {
		t.Errorf("Heap should have 2 items after removal, has %d", mh.Len())
	}

	if mh.Contains(2) {
		t.Error("Heap should not contain key 2 after removal")
	}

	_, exists = mh.RemoveByKey(99)
	if exists {
		t.Error("RemoveByKey should return false for non-existent key")
	}
}

// TestPopOrder tests if items are popped in correct order
func TestPopOrder(t *testing.T) {
	mh := NewMapHeap[uint64]()

	items := []struct {
		key      uint64
		priority uint64
	}{
		{5, 50},
		{3, 30},
		{1, 10},
		{4, 40},
		{2, 20},
	}

	for _, it := range items {
		mh.AddItem(it.key, it.priority)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].priority < items[j].priority
	})

	for i, expected := range items {
		if mh.Len() == 0 {
			t.Fatalf("Heap empty after %d items, expected %d items", i, len(items))
		}

		key, priority := mh.PopItem()
		if key != expected.key || priority != expected.priority {
			t.Errorf("Pop %d: expected (%d,%d), got (%d,%d)",
				i, expected.key, expected.priority, key, priority)
		}
		if mh.Contains(key) {
			t.Errorf("Popped key %d must not be contained anymore", key)
		}
	}

	if mh.Len() != 0 {
		t.Errorf("Heap should be empty after popping all items, has %d items", mh.Len())
	}
}

// TestPeekEmptyHeap tests behavior when peeking an empty heap
func TestPeekEmptyHeap(t *testing.T) {
	mh := NewMapHeap[uint64]()

	_, exists := mh.Peek()
	if exists {
		t.Error("Peek on empty heap should return exists=false")
	}
}

// TestArrayKeys tests the heap with fixed size array keys (as used for hashes)
func TestArrayKeys(t *testing.T) {
	mh := NewMapHeap[[32]byte]()

	a := [32]byte{1}
	b := [32]byte{2}
	mh.AddItem(a, 20)
	mh.AddItem(b, 10)

	if !mh.Contains(a) || !mh.Contains(b) {
		t.Fatal("Heap should contain both keys")
	}

	key, _ := mh.PopItem()
	if key != b {
		t.Errorf("Expected key b to be popped first, got %v", key)
	}
}

// TestRange tests the iteration over all items
func TestRange(t *testing.T) {
	mh := NewMapHeap[uint64]()
	for i := uint64(0); i < 100; i++ {
		mh.AddItem(i, 1000-i)
	}

	seen := make(map[uint64]uint64)
	mh.Range(func(key, priority uint64) bool {
		seen[key] = priority
		return true
	})

	if len(seen) != 100 {
		t.Fatalf("Expected 100 items, got %d", len(seen))
	}
	for k, p := range seen {
		if p != 1000-k {
			t.Errorf("Item %d has priority %d, expected %d", k, p, 1000-k)
		}
	}

	// early stop
	count := 0
	mh.Range(func(uint64, uint64) bool {
		count++
		return count < 10
	})
	if count != 10 {
		t.Errorf("Range should stop after 10 items, visited %d", count)
	}
}

// TestLargeNumberOfItems tests the heap property with many updates and removals
func TestLargeNumberOfItems(t *testing.T) {
	mh := NewMapHeap[uint64]()
	n := uint64(10000)

	for i := uint64(0); i < n; i++ {
		mh.AddItem(i, (i*7919)%n)
	}
	for i := uint64(0); i < n; i += 3 {
		mh.RemoveByKey(i)
	}

	last := uint64(0)
	for mh.Len() > 0 {
		_, priority := mh.PopItem()
		if priority < last {
			t.Fatalf("Heap order violated: %d after %d", priority, last)
		}
		last = priority
	}
}
