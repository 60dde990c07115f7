package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/ValentinKolb/dStmt/lib/statement"
	"github.com/ValentinKolb/dStmt/lib/store"
	"github.com/google/btree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func account(id uint64) statement.AccountID {
	var a statement.AccountID
	binary.LittleEndian.PutUint64(a[:8], id)
	return a
}

func channel(id uint64) statement.Channel {
	var c statement.Channel
	binary.LittleEndian.PutUint64(c[:8], id)
	return c
}

func topic(id uint64) statement.Topic {
	var t statement.Topic
	binary.LittleEndian.PutUint64(t[:8], id)
	return t
}

func decryptionKey(id uint64) statement.DecryptionKey {
	var k statement.DecryptionKey
	binary.LittleEndian.PutUint64(k[:8], id)
	return k
}

// stmt builds an unsigned statement, the index never looks at proofs
func stmt(priority uint32, c *uint64, dataLen int) *statement.Statement {
	s := &statement.Statement{Data: make([]byte, dataLen)}
	s.SetPriority(priority)
	if c != nil {
		s.SetChannel(channel(*c))
	}
	return s
}

func ch(id uint64) *uint64 { return &id }

// quotas mirror the account limits used throughout the tests
func quotas(a statement.AccountID) store.ValidStatement {
	switch a {
	case account(1):
		return store.ValidStatement{MaxCount: 1, MaxSize: 1000}
	case account(2):
		return store.ValidStatement{MaxCount: 2, MaxSize: 1000}
	case account(3):
		return store.ValidStatement{MaxCount: 3, MaxSize: 1000}
	case account(4):
		return store.ValidStatement{MaxCount: 4, MaxSize: 1000}
	default:
		return store.ValidStatement{MaxCount: 2, MaxSize: 2000}
	}
}

func insert(idx *Index, a uint64, s *statement.Statement, now uint64) bool {
	_, ok := idx.Insert(s.Hash(), s, account(a), quotas(account(a)), now)
	return ok
}

// checkInvariants verifies that all secondary indices agree with the live set
func checkInvariants(t *testing.T, idx *Index) {
	t.Helper()
	require.NoError(t, invariants(idx))
}

func invariants(idx *Index) error {
	total := 0
	for hash, e := range idx.entries {
		total += e.size
		if idx.expired.Contains(hash) {
			return fmt.Errorf("%s is live and expired", hash)
		}
		rec, ok := idx.accounts[e.account]
		if !ok {
			return fmt.Errorf("%s has no account record", hash)
		}
		if rec.byPriority.Get(&priorityItem{hash: hash, priority: e.priority}) == nil {
			return fmt.Errorf("%s is missing in by_priority", hash)
		}
	}
	if total != idx.totalSize {
		return fmt.Errorf("total size %d != sum of entries %d", idx.totalSize, total)
	}
	if total > idx.options.MaxTotalSize || len(idx.entries) > idx.options.MaxTotalStatements {
		return errors.New("global limits exceeded")
	}

	count := 0
	for a, rec := range idx.accounts {
		if rec.byPriority.Len() == 0 {
			return fmt.Errorf("empty account record %s", a)
		}
		sum := 0
		var err error
		rec.byPriority.Ascend(func(i btree.Item) bool {
			item := i.(*priorityItem)
			sum += item.size
			count++
			if e, ok := idx.entries[item.hash]; !ok || e.account != a {
				err = fmt.Errorf("by_priority entry %s of %s is not live", item.hash, a)
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
		if sum != rec.dataSize {
			return fmt.Errorf("account %s data size %d != %d", a, rec.dataSize, sum)
		}
		for c, entry := range rec.channels {
			if rec.byPriority.Get(&priorityItem{hash: entry.hash, priority: entry.priority}) == nil {
				return fmt.Errorf("channel %s of %s points to a missing statement", c, a)
			}
		}
	}
	if count != len(idx.entries) {
		return fmt.Errorf("accounts hold %d statements, entries %d", count, len(idx.entries))
	}

	for _, set := range idx.byTopic {
		if len(set) == 0 {
			return errors.New("empty topic bucket")
		}
		for h := range set {
			if _, ok := idx.entries[h]; !ok {
				return fmt.Errorf("topic bucket holds dead hash %s", h)
			}
		}
	}
	inKeyBuckets := 0
	for _, set := range idx.byDecKey {
		if len(set) == 0 {
			return errors.New("empty key bucket")
		}
		for h := range set {
			if _, ok := idx.entries[h]; !ok {
				return fmt.Errorf("key bucket holds dead hash %s", h)
			}
		}
		inKeyBuckets += len(set)
	}
	if inKeyBuckets != len(idx.entries) {
		return fmt.Errorf("key buckets hold %d hashes, entries %d", inKeyBuckets, len(idx.entries))
	}
	return nil
}

func sortedHashes(hs []statement.Hash) []statement.Hash {
	out := append([]statement.Hash(nil), hs...)
	sort.Slice(out, func(i, j int) bool { return string(out[i][:]) < string(out[j][:]) })
	return out
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestConstraints(t *testing.T) {
	opts := store.DefaultOptions()
	opts.MaxTotalSize = 3000
	idx := New(opts)

	// Account 1 (limit = 1 msg, 1000 bytes)
	assert.False(t, insert(idx, 1, stmt(1, ch(1), 2000), 0), "oversized statement")
	assert.True(t, insert(idx, 1, stmt(1, ch(1), 500), 0))
	assert.False(t, insert(idx, 1, stmt(1, ch(1), 200), 0), "same priority on a used channel")
	assert.True(t, insert(idx, 1, stmt(2, ch(1), 600), 0))
	assert.False(t, insert(idx, 1, stmt(1, ch(2), 100), 0), "count limit of 1 is used")
	assert.Equal(t, 1, idx.ExpiredLen())
	checkInvariants(t, idx)

	// Account 2 (limit = 2 msg, 1000 bytes)
	assert.True(t, insert(idx, 2, stmt(1, nil, 500), 0))
	assert.True(t, insert(idx, 2, stmt(2, nil, 100), 0))
	assert.True(t, insert(idx, 2, stmt(3, nil, 500), 0), "evicts priority 1")
	assert.Equal(t, 2, idx.ExpiredLen())
	assert.True(t, insert(idx, 2, stmt(4, nil, 1000), 0), "evicts all")
	assert.Equal(t, 4, idx.ExpiredLen())
	checkInvariants(t, idx)

	// Account 3 (limit = 3 msg, 1000 bytes)
	assert.True(t, insert(idx, 3, stmt(2, ch(1), 300), 0))
	assert.True(t, insert(idx, 3, stmt(3, ch(2), 300), 0))
	assert.True(t, insert(idx, 3, stmt(4, ch(3), 300), 0))
	assert.True(t, insert(idx, 3, stmt(5, nil, 500), 0), "evicts 2 and 3")
	assert.Equal(t, 6, idx.ExpiredLen())
	checkInvariants(t, idx)

	assert.Equal(t, 2400, idx.TotalSize())
	assert.Equal(t, 4, idx.Len())

	// over the global size limit
	assert.False(t, insert(idx, 1, stmt(1, nil, 700), 0))
	// over the global count limit
	idx.options.MaxTotalStatements = 4
	assert.False(t, insert(idx, 1, stmt(1, nil, 100), 0))

	expected := []statement.Hash{
		stmt(2, ch(1), 600).Hash(),
		stmt(4, nil, 1000).Hash(),
		stmt(4, ch(3), 300).Hash(),
		stmt(5, nil, 500).Hash(),
	}
	assert.Equal(t, sortedHashes(expected), sortedHashes(idx.Hashes()))
	checkInvariants(t, idx)
}

func TestRejectionChangesNothing(t *testing.T) {
	idx := New(store.DefaultOptions())
	require.True(t, insert(idx, 2, stmt(5, nil, 400), 0))
	require.True(t, insert(idx, 2, stmt(6, nil, 400), 0))

	before := sortedHashes(idx.Hashes())
	// needs both slots but only one has a lower priority
	assert.False(t, insert(idx, 2, stmt(6, nil, 900), 0))
	assert.Equal(t, before, sortedHashes(idx.Hashes()))
	assert.Equal(t, 0, idx.ExpiredLen())
	checkInvariants(t, idx)
}

func TestZeroCountQuota(t *testing.T) {
	idx := New(store.DefaultOptions())
	s := stmt(1, nil, 1)
	_, ok := idx.Insert(s.Hash(), s, account(9), store.ValidStatement{MaxCount: 0, MaxSize: 100}, 0)
	assert.False(t, ok)
	assert.Equal(t, 0, idx.Len())
}

func TestChannelReplacement(t *testing.T) {
	idx := New(store.DefaultOptions())
	first := stmt(1, ch(7), 10)
	second := stmt(2, ch(7), 10)

	require.True(t, insert(idx, 4, first, 5))
	evicted, ok := idx.Insert(second.Hash(), second, account(4), quotas(account(4)), 6)
	require.True(t, ok)
	assert.Equal(t, []statement.Hash{first.Hash()}, evicted)

	assert.Equal(t, QueryExpired, idx.Query(first.Hash()))
	assert.Equal(t, QueryExists, idx.Query(second.Hash()))
	assert.Equal(t, uint64(6), idx.Expired()[first.Hash()])
	checkInvariants(t, idx)
}

func TestInsertLiveHashIsNoop(t *testing.T) {
	idx := New(store.DefaultOptions())
	s := stmt(1, nil, 10)
	require.True(t, insert(idx, 5, s, 0))

	evicted, ok := idx.Insert(s.Hash(), s, account(5), quotas(account(5)), 0)
	assert.True(t, ok)
	assert.Empty(t, evicted)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 10, idx.TotalSize())
	checkInvariants(t, idx)
}

func TestMakeExpired(t *testing.T) {
	idx := New(store.DefaultOptions())

	s := stmt(1, ch(3), 100)
	s.SetTopic(0, topic(4))
	s.SetDecryptionKey(decryptionKey(1))
	plain := stmt(2, nil, 50)
	require.True(t, insert(idx, 4, s, 0))
	require.True(t, insert(idx, 4, plain, 0))

	assert.True(t, idx.MakeExpired(s.Hash(), 10))
	assert.False(t, idx.MakeExpired(s.Hash(), 11), "second call is a no-op")
	assert.Equal(t, uint64(10), idx.Expired()[s.Hash()])
	assert.NotContains(t, idx.byTopic, topic(4), "empty topic bucket is pruned")
	assert.NotContains(t, idx.byDecKey, decKey{key: decryptionKey(1), isSet: true})
	checkInvariants(t, idx)

	// statements without topics and key leave the broadcast bucket too
	assert.True(t, idx.MakeExpired(plain.Hash(), 10))
	assert.Empty(t, idx.byDecKey)
	assert.Equal(t, 0, idx.Accounts(), "empty account record is removed")
	checkInvariants(t, idx)
}

func TestMaintain(t *testing.T) {
	opts := store.DefaultOptions()
	opts.PurgeAfterSec = 100
	idx := New(opts)

	a, b := stmt(1, nil, 1), stmt(2, nil, 1)
	require.True(t, insert(idx, 5, a, 0))
	require.True(t, insert(idx, 5, b, 0))
	idx.MakeExpired(a.Hash(), 10)
	idx.MakeExpired(b.Hash(), 50)

	assert.Empty(t, idx.Maintain(109))
	assert.Equal(t, []statement.Hash{a.Hash()}, idx.Maintain(110))
	assert.Equal(t, QueryUnknown, idx.Query(a.Hash()))
	assert.Equal(t, QueryExpired, idx.Query(b.Hash()))
	assert.Equal(t, []statement.Hash{b.Hash()}, idx.Maintain(1000))
	assert.Equal(t, 0, idx.ExpiredLen())

	// a purged hash is admissible again
	assert.True(t, insert(idx, 5, a, 1000))
	checkInvariants(t, idx)
}

func TestReadmitExpired(t *testing.T) {
	idx := New(store.DefaultOptions())
	s := stmt(1, nil, 1)
	require.True(t, insert(idx, 5, s, 0))
	idx.MakeExpired(s.Hash(), 1)
	require.Equal(t, QueryExpired, idx.Query(s.Hash()))

	require.True(t, insert(idx, 5, s, 2))
	assert.Equal(t, QueryExists, idx.Query(s.Hash()))
	assert.Equal(t, 0, idx.ExpiredLen())
	checkInvariants(t, idx)
}

func TestIterateWith(t *testing.T) {
	idx := New(store.DefaultOptions())

	type shape struct {
		topics []uint64
		key    *uint64
	}
	key2 := uint64(2)
	shapes := []shape{
		{},
		{topics: []uint64{0}},
		{topics: []uint64{0, 1}, key: &key2},
		{topics: []uint64{0, 1, 2}},
		{topics: []uint64{0, 42, 2, 3}},
	}
	byID := make(map[statement.Hash]int)
	for i, sp := range shapes {
		s := &statement.Statement{Data: []byte{byte(i)}}
		for j, tp := range sp.topics {
			s.SetTopic(j, topic(tp))
		}
		if sp.key != nil {
			s.SetDecryptionKey(decryptionKey(*sp.key))
		}
		require.True(t, insert(idx, uint64(100+i), s, 0))
		byID[s.Hash()] = i
	}
	checkInvariants(t, idx)

	cases := []struct {
		topics   []uint64
		key      *uint64
		expected []int
	}{
		{nil, nil, []int{0, 1, 3, 4}},
		{nil, &key2, []int{2}},
		{[]uint64{0}, nil, []int{1, 3, 4}},
		{[]uint64{1}, nil, []int{3}},
		{[]uint64{2}, nil, []int{3, 4}},
		{[]uint64{3}, nil, []int{4}},
		{[]uint64{42}, nil, []int{4}},
		{[]uint64{0, 1}, nil, []int{3}},
		{[]uint64{0, 1}, &key2, []int{2}},
		{[]uint64{0, 1, 99}, &key2, nil},
		{[]uint64{1, 2}, nil, []int{3}},
		{[]uint64{99}, nil, nil},
		{[]uint64{0, 99}, nil, nil},
		{[]uint64{0, 1, 2, 3, 42}, nil, nil},
	}

	for _, c := range cases {
		t.Run(fmt.Sprintf("%v/%v", c.topics, c.key != nil), func(t *testing.T) {
			var topics []statement.Topic
			for _, tp := range c.topics {
				topics = append(topics, topic(tp))
			}
			var key *statement.DecryptionKey
			if c.key != nil {
				k := decryptionKey(*c.key)
				key = &k
			}

			var got []int
			err := idx.IterateWith(key, topics, func(hash statement.Hash) error {
				got = append(got, byID[hash])
				return nil
			})
			require.NoError(t, err)
			sort.Ints(got)
			assert.Equal(t, c.expected, got)
		})
	}

	t.Run("StopsOnError", func(t *testing.T) {
		calls := 0
		stop := errors.New("stop")
		err := idx.IterateWith(nil, nil, func(statement.Hash) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})
}

func TestAccountHashes(t *testing.T) {
	idx := New(store.DefaultOptions())
	low, high := stmt(1, nil, 1), stmt(9, nil, 1)
	require.True(t, insert(idx, 4, high, 0))
	require.True(t, insert(idx, 4, low, 0))

	assert.Equal(t, []statement.Hash{low.Hash(), high.Hash()}, idx.AccountHashes(account(4)))
	assert.Nil(t, idx.AccountHashes(account(99)))
}

func TestInsertNewRestoresState(t *testing.T) {
	idx := New(store.DefaultOptions())
	s := stmt(3, ch(1), 30)
	s.SetTopic(0, topic(1))

	idx.InsertExpired(s.Hash(), 5)
	idx.InsertNew(s.Hash(), account(1), s)
	idx.InsertNew(s.Hash(), account(1), s)

	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, 30, idx.TotalSize())
	assert.Equal(t, 0, idx.ExpiredLen())
	checkInvariants(t, idx)

	stats := idx.AccountSizeStats()
	assert.Equal(t, float64(30), stats.Max)
}

// TestRandomizedInvariants submits a deterministic pseudo random workload and
// checks the index after every step
func TestRandomizedInvariants(t *testing.T) {
	opts := store.Options{MaxTotalStatements: 20, MaxTotalSize: 3000, PurgeAfterSec: 10}
	idx := New(opts)

	seed := uint64(42)
	next := func(n uint64) uint64 {
		seed = seed*6364136223846793005 + 1442695040888963407
		return (seed >> 33) % n
	}

	for i := 0; i < 2000; i++ {
		now := uint64(i / 10)
		switch next(10) {
		case 0:
			hashes := idx.Hashes()
			if len(hashes) > 0 {
				idx.MakeExpired(hashes[next(uint64(len(hashes)))], now)
			}
		case 1:
			idx.Maintain(now)
		default:
			s := &statement.Statement{Data: make([]byte, next(600))}
			s.SetPriority(uint32(next(10)))
			s.Data = append(s.Data, byte(i), byte(i>>8))
			if next(3) == 0 {
				s.SetChannel(channel(next(3)))
			}
			if next(2) == 0 {
				s.SetTopic(0, topic(next(4)))
			}
			if next(4) == 0 {
				s.SetDecryptionKey(decryptionKey(next(2)))
			}
			insert(idx, next(6), s, now)
		}
		if err := invariants(idx); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	// per account quotas hold as well
	for a, rec := range idx.accounts {
		q := quotas(a)
		assert.LessOrEqual(t, rec.byPriority.Len(), int(q.MaxCount))
		assert.LessOrEqual(t, rec.dataSize, int(q.MaxSize))
	}
}
