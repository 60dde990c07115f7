// Package util
//
// This file provides a keyed priority queue used for expiry bookkeeping.
//
// This implementation combines a binary heap with a hash map to provide both
// efficient priority-based operations and key-based access. The statement index
// uses it to remember when a statement was evicted: the heap yields the oldest
// expiry first so purging only touches entries that are actually due, while the
// map answers "is this hash cooling down?" in O(1).
//
// Key advantages of this implementation:
//
// 1. Time Complexity:
//   - O(log n) for priority operations (Push, Pop, Update)
//   - O(1) for key-based lookups and existence checks
//   - O(log n) for key-based removal
//
// 2. Expiry Benefits:
//   - Efficiently identifies the oldest items for purging
//   - Supports direct removal when an item is re-admitted
//   - Allows checking if specific items are scheduled for purging
//
// 3. Concurrency Considerations:
//   - Note: This implementation is not thread-safe by default
//   - For concurrent use, external synchronization should be applied
//
// Example usage:
//
//	// Create a new queue
//	q := NewMapHeap[[32]byte]()
//
//	// Add items with ids and timestamps
//	q.AddItem(id1, timestamp1)
//	q.AddItem(id2, timestamp2)
//
//	// Get the oldest item
//	oldest, exists := q.Peek()
//
//	// Remove a specific item
//	q.RemoveByKey(id1)
//
//	// Process items in priority order
//	for q.Len() > 0 {
//	    key, priority := q.PopItem()
//	    // purge key
//	}
package util

import (
	"container/heap"
	"fmt"
)

// Item represents an item in the queue
// with a comparable key for identification and an uint64 priority
type Item[K comparable] struct {
	Key      K      // Unique identifier for the item
	Priority uint64 // Priority used for ordering in the heap (lowest first)
	index    int    // Index in the heap, maintained by heap package
}

func (i *Item[K]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %d}", i.Key, i.Priority)
}

// MapHeap implements a min priority queue with both heap operations and key-based access.
// The zero value is not usable, use NewMapHeap.
type MapHeap[K comparable] struct {
	items    []*Item[K]     // The actual heap slice
	itemsMap map[K]*Item[K] // Map for O(1) access by key
}

// NewMapHeap creates a new, empty queue
func NewMapHeap[K comparable]() *MapHeap[K] {
	return &MapHeap[K]{
		items:    make([]*Item[K], 0),
		itemsMap: make(map[K]*Item[K]),
	}
}

// Len returns the number of items in the queue (part of heap.Interface)
func (q *MapHeap[K]) Len() int { return len(q.items) }

// Less compares items by priority (part of heap.Interface)
func (q *MapHeap[K]) Less(i, j int) bool {
	return q.items[i].Priority < q.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (q *MapHeap[K]) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
// Use AddItem instead of calling this directly.
func (q *MapHeap[K]) Push(x interface{}) {
	n := len(q.items)
	it := x.(*Item[K])
	it.index = n
	q.items = append(q.items, it)
	q.itemsMap[it.Key] = it
}

// Pop removes and returns the minimum item (part of heap.Interface)
// Use PopItem instead of calling this directly.
func (q *MapHeap[K]) Pop() interface{} {
	old := q.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // Avoid memory leak
	it.index = -1  // For safety
	q.items = old[:n-1]
	delete(q.itemsMap, it.Key)
	return it
}

// AddItem adds a new item to the queue or updates the priority of an existing one
func (q *MapHeap[K]) AddItem(key K, priority uint64) {
	// Check if item already exists
	if it, exists := q.itemsMap[key]; exists {
		// Update priority and fix heap
		it.Priority = priority
		heap.Fix(q, it.index)
		return
	}

	heap.Push(q, &Item[K]{
		Key:      key,
		Priority: priority,
	})
}

// PopItem removes the minimum item and returns its key and priority.
// It panics if the queue is empty.
func (q *MapHeap[K]) PopItem() (K, uint64) {
	it := heap.Pop(q).(*Item[K])
	return it.Key, it.Priority
}

// RemoveByKey removes an item by its key and returns its priority
func (q *MapHeap[K]) RemoveByKey(key K) (uint64, bool) {
	it, exists := q.itemsMap[key]
	if !exists {
		return 0, false
	}

	// Remove from heap
	heap.Remove(q, it.index)
	return it.Priority, true
}

// Peek returns the minimum item without removing it
func (q *MapHeap[K]) Peek() (*Item[K], bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// Contains checks if a key exists in the queue
func (q *MapHeap[K]) Contains(key K) bool {
	_, exists := q.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it
func (q *MapHeap[K]) GetByKey(key K) (*Item[K], bool) {
	it, exists := q.itemsMap[key]
	return it, exists
}

// Range calls fn for all items in unspecified order until fn returns false.
// The queue must not be modified during the iteration.
func (q *MapHeap[K]) Range(fn func(key K, priority uint64) bool) {
	for _, it := range q.items {
		if !fn(it.Key, it.Priority) {
			return
		}
	}
}
