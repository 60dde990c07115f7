package index

import (
	"bytes"
	"sort"

	"github.com/ValentinKolb/dStmt/lib/db/util"
	"github.com/ValentinKolb/dStmt/lib/statement"
	"github.com/ValentinKolb/dStmt/lib/store"
	"github.com/google/btree"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("index")

// btree degree of the per account priority maps. Accounts usually hold only a
// handful of statements, so a small degree keeps the nodes tiny.
const btreeDegree = 8

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Query is the result of looking up a hash
type Query uint8

const (
	QueryUnknown Query = iota // never seen or already purged
	QueryExists               // live
	QueryExpired              // removed, still cooling down
)

func (q Query) String() string {
	switch q {
	case QueryExists:
		return "Exists"
	case QueryExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

type hashSet map[statement.Hash]struct{}

// decKey is the optional decryption key of a statement, the zero value is the broadcast bucket
type decKey struct {
	key   statement.DecryptionKey
	isSet bool
}

func decKeyOf(s *statement.Statement) decKey {
	if s.DecryptionKey == nil {
		return decKey{}
	}
	return decKey{key: *s.DecryptionKey, isSet: true}
}

// priorityItem is an entry of an account's by priority map.
// Items are ordered by priority, ties are broken by hash.
type priorityItem struct {
	hash     statement.Hash
	priority uint32
	channel  *statement.Channel
	size     int
}

func (p *priorityItem) Less(than btree.Item) bool {
	o := than.(*priorityItem)
	if p.priority != o.priority {
		return p.priority < o.priority
	}
	return bytes.Compare(p.hash[:], o.hash[:]) < 0
}

type channelEntry struct {
	hash     statement.Hash
	priority uint32
}

// accountRecord holds the statements of a single account
type accountRecord struct {
	byPriority *btree.BTree // *priorityItem
	channels   map[statement.Channel]channelEntry
	dataSize   int
}

func newAccountRecord() *accountRecord {
	return &accountRecord{
		byPriority: btree.New(btreeDegree),
		channels:   make(map[statement.Channel]channelEntry),
	}
}

type liveEntry struct {
	account  statement.AccountID
	priority uint32
	size     int
}

type topicsAndKey struct {
	topics []statement.Topic
	key    decKey
}

// Index keeps track of all live and expired statements of a store.
// It decides which statements are admitted and which are evicted, but does no I/O.
//
// Thread-safety: Index is not safe for concurrent use, the store guards it with a lock.
type Index struct {
	byTopic       map[statement.Topic]hashSet
	byDecKey      map[decKey]hashSet
	topicsAndKeys map[statement.Hash]topicsAndKey
	entries       map[statement.Hash]liveEntry
	expired       *util.MapHeap[statement.Hash] // hash -> expiry timestamp
	accounts      map[statement.AccountID]*accountRecord
	options       store.Options
	totalSize     int
}

// New creates an empty index with the given global limits
func New(options store.Options) *Index {
	return &Index{
		byTopic:       make(map[statement.Topic]hashSet),
		byDecKey:      make(map[decKey]hashSet),
		topicsAndKeys: make(map[statement.Hash]topicsAndKey),
		entries:       make(map[statement.Hash]liveEntry),
		expired:       util.NewMapHeap[statement.Hash](),
		accounts:      make(map[statement.AccountID]*accountRecord),
		options:       options,
	}
}

// --------------------------------------------------------------------------
// Set helpers
// --------------------------------------------------------------------------

func addTo[K comparable](m map[K]hashSet, k K, hash statement.Hash) {
	set, ok := m[k]
	if !ok {
		set = make(hashSet)
		m[k] = set
	}
	set[hash] = struct{}{}
}

// removeFrom deletes hash from the bucket k and drops the bucket once it is empty.
// A missing bucket must mean "no candidates" for IterateWith.
func removeFrom[K comparable](m map[K]hashSet, k K, hash statement.Hash) {
	set, ok := m[k]
	if !ok {
		return
	}
	delete(set, hash)
	if len(set) == 0 {
		delete(m, k)
	}
}

// --------------------------------------------------------------------------
// Mutations
// --------------------------------------------------------------------------

// InsertNew adds a statement to all indices without checking any limits.
// It is used to restore statements that were admitted before a restart.
// A statement that is already live is left untouched.
func (idx *Index) InsertNew(hash statement.Hash, account statement.AccountID, stmt *statement.Statement) {
	if _, ok := idx.entries[hash]; ok {
		return
	}
	idx.expired.RemoveByKey(hash)

	for _, t := range stmt.Topics {
		addTo(idx.byTopic, t, hash)
	}
	key := decKeyOf(stmt)
	addTo(idx.byDecKey, key, hash)
	if len(stmt.Topics) > 0 || key.isSet {
		idx.topicsAndKeys[hash] = topicsAndKey{
			topics: append([]statement.Topic(nil), stmt.Topics...),
			key:    key,
		}
	}

	priority := stmt.PriorityOrDefault()
	size := stmt.DataLen()
	idx.entries[hash] = liveEntry{account: account, priority: priority, size: size}
	idx.totalSize += size

	rec, ok := idx.accounts[account]
	if !ok {
		rec = newAccountRecord()
		idx.accounts[account] = rec
	}
	rec.dataSize += size
	var channel *statement.Channel
	if stmt.Channel != nil {
		c := *stmt.Channel
		channel = &c
		rec.channels[c] = channelEntry{hash: hash, priority: priority}
	}
	rec.byPriority.ReplaceOrInsert(&priorityItem{hash: hash, priority: priority, channel: channel, size: size})
}

// InsertExpired records hash as expired at timestamp
func (idx *Index) InsertExpired(hash statement.Hash, timestamp uint64) {
	idx.expired.AddItem(hash, timestamp)
}

// MakeExpired removes a live statement from all indices and marks it as expired at now.
// It returns false if the statement is not live.
func (idx *Index) MakeExpired(hash statement.Hash, now uint64) bool {
	entry, ok := idx.entries[hash]
	if !ok {
		return false
	}
	delete(idx.entries, hash)
	idx.totalSize -= entry.size

	if tk, ok := idx.topicsAndKeys[hash]; ok {
		delete(idx.topicsAndKeys, hash)
		for _, t := range tk.topics {
			removeFrom(idx.byTopic, t, hash)
		}
		removeFrom(idx.byDecKey, tk.key, hash)
	} else {
		// neither topics nor key, the statement sits in the broadcast bucket
		removeFrom(idx.byDecKey, decKey{}, hash)
	}

	idx.expired.AddItem(hash, now)

	if rec, ok := idx.accounts[entry.account]; ok {
		removed := rec.byPriority.Delete(&priorityItem{hash: hash, priority: entry.priority})
		if removed != nil {
			item := removed.(*priorityItem)
			rec.dataSize -= item.size
			if item.channel != nil {
				delete(rec.channels, *item.channel)
			}
		}
		if rec.byPriority.Len() == 0 {
			delete(idx.accounts, entry.account)
		}
	}

	return true
}

// Insert runs the admission algorithm for a validated statement.
//
// The statement is admitted if it fits into the quotas of its account and into the
// global limits, possibly after evicting lower priority statements of the same
// account. On success the evicted statements are expired at now and returned.
// If the statement can not be admitted nothing is changed and ok is false.
func (idx *Index) Insert(hash statement.Hash, stmt *statement.Statement, account statement.AccountID, validation store.ValidStatement, now uint64) (evicted []statement.Hash, ok bool) {
	if _, live := idx.entries[hash]; live {
		return nil, true
	}

	size := stmt.DataLen()
	maxSize, maxCount := int(validation.MaxSize), int(validation.MaxCount)
	if size > maxSize {
		Logger.Debugf("ignored oversize statement %s (%d bytes)", hash, size)
		return nil, false
	}

	priority := stmt.PriorityOrDefault()
	evict := make(map[statement.Hash]struct{})
	order := make([]statement.Hash, 0)
	wouldFree := 0

	markEvicted := func(h statement.Hash, s int) {
		evict[h] = struct{}{}
		order = append(order, h)
		wouldFree += s
	}

	dataSize, count := 0, 0
	if rec, ok := idx.accounts[account]; ok {
		dataSize, count = rec.dataSize, rec.byPriority.Len()

		// a channel holds at most one statement, the one with the highest priority
		if stmt.Channel != nil {
			if ch, ok := rec.channels[*stmt.Channel]; ok {
				if priority <= ch.priority {
					Logger.Debugf("ignored lower priority channel statement %s (%d <= %d)", hash, priority, ch.priority)
					return nil, false
				}
				if item := rec.byPriority.Get(&priorityItem{hash: ch.hash, priority: ch.priority}); item != nil {
					markEvicted(ch.hash, item.(*priorityItem).size)
				}
			}
		}

		rejected := false
		rec.byPriority.Ascend(func(i btree.Item) bool {
			if dataSize-wouldFree+size <= maxSize && count+1-len(evict) <= maxCount {
				return false
			}
			item := i.(*priorityItem)
			if _, ok := evict[item.hash]; ok {
				return true
			}
			if item.priority >= priority {
				rejected = true
				return false
			}
			markEvicted(item.hash, item.size)
			return true
		})
		if rejected {
			Logger.Debugf("ignored statement %s due to account constraints (priority %d)", hash, priority)
			return nil, false
		}
	}

	// the scan can run out of candidates before the quotas are met
	if !(dataSize-wouldFree+size <= maxSize && count+1-len(evict) <= maxCount) {
		Logger.Debugf("ignored statement %s, account quotas can not be met (count=%d, max_count=%d)", hash, count, maxCount)
		return nil, false
	}

	if !(idx.totalSize-wouldFree+size <= idx.options.MaxTotalSize &&
		len(idx.entries)+1-len(evict) <= idx.options.MaxTotalStatements) {
		Logger.Debugf("ignored statement %s because the store is full (size=%d, count=%d)", hash, idx.totalSize, len(idx.entries))
		return nil, false
	}

	for _, h := range order {
		idx.MakeExpired(h, now)
	}
	idx.InsertNew(hash, account, stmt)
	return order, true
}

// Maintain purges all expired statements whose cool-down has elapsed at now and returns their hashes
func (idx *Index) Maintain(now uint64) []statement.Hash {
	var purged []statement.Hash
	for {
		item, ok := idx.expired.Peek()
		if !ok || item.Priority+idx.options.PurgeAfterSec > now {
			break
		}
		hash, _ := idx.expired.PopItem()
		purged = append(purged, hash)
	}
	return purged
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// Query reports whether hash is live, expired or unknown
func (idx *Index) Query(hash statement.Hash) Query {
	if _, ok := idx.entries[hash]; ok {
		return QueryExists
	}
	if idx.expired.Contains(hash) {
		return QueryExpired
	}
	return QueryUnknown
}

// IterateWith calls fn for every live statement that has the decryption key key
// (nil for broadcasts) and carries all topics. Iteration stops at the first error.
func (idx *Index) IterateWith(key *statement.DecryptionKey, topics []statement.Topic, fn func(hash statement.Hash) error) error {
	if len(topics) > statement.MaxTopics {
		return nil
	}

	k := decKey{}
	if key != nil {
		k = decKey{key: *key, isSet: true}
	}
	keySet := idx.byDecKey[k]
	if len(keySet) == 0 {
		return nil
	}

	sets := make([]hashSet, 0, len(topics)+1)
	sets = append(sets, keySet)
	for _, t := range topics {
		set := idx.byTopic[t]
		if len(set) == 0 {
			return nil
		}
		sets = append(sets, set)
	}

	// start with the smallest set
	sort.Slice(sets, func(i, j int) bool { return len(sets[i]) < len(sets[j]) })

	for hash := range sets[0] {
		match := true
		for _, other := range sets[1:] {
			if _, ok := other[hash]; !ok {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		if err := fn(hash); err != nil {
			return err
		}
	}
	return nil
}

// Hashes returns the hashes of all live statements
func (idx *Index) Hashes() []statement.Hash {
	out := make([]statement.Hash, 0, len(idx.entries))
	for h := range idx.entries {
		out = append(out, h)
	}
	return out
}

// AccountHashes returns the hashes of all live statements of account, lowest priority first
func (idx *Index) AccountHashes(account statement.AccountID) []statement.Hash {
	rec, ok := idx.accounts[account]
	if !ok {
		return nil
	}
	out := make([]statement.Hash, 0, rec.byPriority.Len())
	rec.byPriority.Ascend(func(i btree.Item) bool {
		out = append(out, i.(*priorityItem).hash)
		return true
	})
	return out
}

// Expired returns a copy of the expired set (hash -> expiry timestamp)
func (idx *Index) Expired() map[statement.Hash]uint64 {
	out := make(map[statement.Hash]uint64, idx.expired.Len())
	idx.expired.Range(func(h statement.Hash, ts uint64) bool {
		out[h] = ts
		return true
	})
	return out
}

// Len returns the number of live statements
func (idx *Index) Len() int { return len(idx.entries) }

// ExpiredLen returns the number of statements in cool-down
func (idx *Index) ExpiredLen() int { return idx.expired.Len() }

// TotalSize returns the summed payload size of all live statements
func (idx *Index) TotalSize() int { return idx.totalSize }

// Accounts returns the number of accounts with live statements
func (idx *Index) Accounts() int { return len(idx.accounts) }

// AccountSizeStats returns statistics over the data size per account
func (idx *Index) AccountSizeStats() util.Stats {
	sizes := make([]float64, 0, len(idx.accounts))
	for _, rec := range idx.accounts {
		sizes = append(sizes, float64(rec.dataSize))
	}
	return util.NewStats(sizes)
}

// Options returns the global limits of the index
func (idx *Index) Options() store.Options { return idx.options }

// SetOptions replaces the global limits. Statements that exceed the new
// limits are kept, the limits only apply to later insertions.
func (idx *Index) SetOptions(options store.Options) { idx.options = options }
