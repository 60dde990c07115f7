package lstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dStmt/lib/db"
	"github.com/ValentinKolb/dStmt/lib/statement"
	"github.com/ValentinKolb/dStmt/lib/store"
	"github.com/ValentinKolb/dStmt/lib/store/index"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

const (
	// CurrentVersion is the layout version written to the meta column
	CurrentVersion uint32 = 1

	// DefaultMaintenancePeriod is the interval of the background purge used by the CLI
	DefaultMaintenancePeriod = 30 * time.Second

	expiredRecordLen = len(statement.Hash{}) + 8
)

var keyVersion = []byte("version")

// Config configures a local store.
type Config struct {
	// Name labels the metrics of the store, defaults to "default"
	Name string
	// Backend persists statements and expiry records (required)
	Backend db.Backend
	// Validator checks proofs and computes account quotas (required)
	Validator store.Validator
	// Keys resolves decryption keys for PostedClear, may be nil
	Keys store.KeyResolver
	// Options are the global limits. Zero fields are replaced by the defaults.
	Options store.Options
	// Clock returns the current time in unix seconds, defaults to the wall clock
	Clock func() uint64
	// MaintenancePeriod is the interval of the background purge. Zero disables it.
	MaintenancePeriod time.Duration
	// Metrics receives the counters and gauges of the store, a new set is created if nil
	Metrics *metrics.Set
}

// Store is the local implementation of store.IStore.
// A single RWMutex guards the index: submissions, removals and maintenance
// hold it exclusively including their database commit, reads only while they
// collect hashes.
type Store struct {
	mu        sync.RWMutex
	index     *index.Index
	db        db.Backend
	validator store.Validator
	keys      store.KeyResolver
	clock     func() uint64
	metrics   *storeMetrics

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// compile time check
var _ store.IStore = (*Store)(nil)

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

type storeMetrics struct {
	set       *metrics.Set
	submitted *metrics.Counter
	invalid   *metrics.Counter
	pruned    *metrics.Counter
}

func newStoreMetrics(set *metrics.Set, name string, s *Store) *storeMetrics {
	label := func(metric string) string {
		return fmt.Sprintf(`%s{store=%q}`, metric, name)
	}
	m := &storeMetrics{
		set:       set,
		submitted: set.NewCounter(label("statement_store_submitted_statements_total")),
		invalid:   set.NewCounter(label("statement_store_validations_invalid_total")),
		pruned:    set.NewCounter(label("statement_store_statements_pruned_total")),
	}
	set.NewGauge(label("statement_store_statements"), func() float64 {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return float64(s.index.Len())
	})
	set.NewGauge(label("statement_store_expired_statements"), func() float64 {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return float64(s.index.ExpiredLen())
	})
	set.NewGauge(label("statement_store_total_size_bytes"), func() float64 {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return float64(s.index.TotalSize())
	})
	return m
}

// Metrics returns the metric set of the store
func (s *Store) Metrics() *metrics.Set {
	return s.metrics.set
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// New opens a store on top of cfg.Backend. The database version is checked (and
// written for an empty database), the index is rebuilt from the stored statements
// and expiry records and the background maintenance is started.
func New(cfg Config) (*Store, error) {
	if cfg.Backend == nil {
		return nil, errors.New("lstore: backend is required")
	}
	if cfg.Validator == nil {
		return nil, errors.New("lstore: validator is required")
	}

	options := withDefaults(cfg.Options)
	clock := cfg.Clock
	if clock == nil {
		clock = func() uint64 { return uint64(time.Now().Unix()) }
	}
	name := cfg.Name
	if name == "" {
		name = "default"
	}
	set := cfg.Metrics
	if set == nil {
		set = metrics.NewSet()
	}

	s := &Store{
		index:     index.New(options),
		db:        cfg.Backend,
		validator: cfg.Validator,
		keys:      cfg.Keys,
		clock:     clock,
		stop:      make(chan struct{}),
	}

	if err := s.checkVersion(); err != nil {
		return nil, err
	}
	if err := s.populate(); err != nil {
		return nil, err
	}
	s.metrics = newStoreMetrics(set, name, s)
	s.Maintain()

	if cfg.MaintenancePeriod > 0 {
		s.wg.Add(1)
		go s.maintenanceLoop(cfg.MaintenancePeriod)
	}
	return s, nil
}

func withDefaults(o store.Options) store.Options {
	d := store.DefaultOptions()
	if o.MaxTotalStatements == 0 {
		o.MaxTotalStatements = d.MaxTotalStatements
	}
	if o.MaxTotalSize == 0 {
		o.MaxTotalSize = d.MaxTotalSize
	}
	if o.PurgeAfterSec == 0 {
		o.PurgeAfterSec = d.PurgeAfterSec
	}
	return o
}

func (s *Store) checkVersion() error {
	raw, err := s.db.Get(db.ColMeta, keyVersion)
	if err != nil {
		return store.NewDbError("Error reading database version: %v", err)
	}
	if raw == nil {
		v := make([]byte, 4)
		binary.LittleEndian.PutUint32(v, CurrentVersion)
		if err := s.db.Commit([]db.Op{db.Put(db.ColMeta, keyVersion, v)}); err != nil {
			return store.NewDbError("Error writing database version: %v", err)
		}
		return nil
	}
	if len(raw) != 4 {
		return store.NewDbError("Error decoding database version")
	}
	if v := binary.LittleEndian.Uint32(raw); v != CurrentVersion {
		return store.NewDbError("Unsupported database version: %d", v)
	}
	return nil
}

// populate rebuilds the index from the database
func (s *Store) populate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	statements, skipped := 0, 0
	err := s.db.Iterate(db.ColStatements, func(key, value []byte) bool {
		stmt, err := statement.Decode(value)
		if err != nil {
			Logger.Warningf("Error decoding statement loaded from the DB %x: %v", key, err)
			skipped++
			return true
		}
		account, ok := stmt.AccountID()
		if !ok {
			Logger.Debugf("Statement loaded from the DB without proof %x", key)
			skipped++
			return true
		}
		s.index.InsertNew(stmt.Hash(), account, stmt)
		statements++
		return true
	})
	if err != nil {
		return store.NewDbError("Error reading statements: %v", err)
	}

	expired := 0
	err = s.db.Iterate(db.ColExpired, func(key, value []byte) bool {
		hash, ts, ok := decodeExpired(value)
		if !ok {
			Logger.Warningf("Error decoding expired entry %x", key)
			return true
		}
		s.index.InsertExpired(hash, ts)
		expired++
		return true
	})
	if err != nil {
		return store.NewDbError("Error reading expired statements: %v", err)
	}

	Logger.Infof("Statement store loaded %d statements and %d expired entries (%d skipped)", statements, expired, skipped)
	return nil
}

func (s *Store) maintenanceLoop(period time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Maintain()
		case <-s.stop:
			return
		}
	}
}

// Close stops the background maintenance and closes the backend.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
		s.mu.Lock()
		defer s.mu.Unlock()
		err = s.db.Close()
	})
	return err
}

// Maintain purges expired entries older than the purge period from the index
// and the database. Failures are logged and retried on the next run.
func (s *Store) Maintain() {
	Logger.Debugf("Started store maintenance")

	s.mu.Lock()
	purged := s.index.Maintain(s.clock())
	active, expired := s.index.Len(), s.index.ExpiredLen()

	var commitErr error
	if len(purged) > 0 {
		ops := make([]db.Op, 0, len(purged))
		for _, h := range purged {
			ops = append(ops, db.Delete(db.ColExpired, h[:]))
		}
		commitErr = s.db.Commit(ops)
	}
	s.mu.Unlock()

	if commitErr != nil {
		Logger.Warningf("Error writing to the statement database: %v", commitErr)
	} else if len(purged) > 0 {
		s.metrics.pruned.Add(len(purged))
		if c, ok := s.db.(db.Compactor); ok {
			if err := c.Compact(); err != nil {
				Logger.Warningf("Error compacting the statement database: %v", err)
			}
		}
	}

	Logger.Debugf("Completed store maintenance. Purged: %d, Active: %d, Expired: %d", len(purged), active, expired)
}

// --------------------------------------------------------------------------
// Expiry Records
// --------------------------------------------------------------------------

// encodeExpired builds the value of an expiry record: the hash followed by the timestamp (LE u64)
func encodeExpired(hash statement.Hash, ts uint64) []byte {
	out := make([]byte, expiredRecordLen)
	copy(out, hash[:])
	binary.LittleEndian.PutUint64(out[len(hash):], ts)
	return out
}

func decodeExpired(data []byte) (statement.Hash, uint64, bool) {
	var hash statement.Hash
	if len(data) != expiredRecordLen {
		return hash, 0, false
	}
	copy(hash[:], data)
	return hash, binary.LittleEndian.Uint64(data[len(hash):]), true
}

func expireOps(hashes []statement.Hash, now uint64) []db.Op {
	ops := make([]db.Op, 0, 2*len(hashes))
	for _, h := range hashes {
		ops = append(ops,
			db.Delete(db.ColStatements, h[:]),
			db.Put(db.ColExpired, h[:], encodeExpired(h, now)))
	}
	return ops
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Submit(stmt *statement.Statement, source statement.Source) store.SubmitResult {
	if err := stmt.CheckTopics(); err != nil {
		Logger.Debugf("Statement rejected: %v", err)
		s.metrics.invalid.Inc()
		return store.ResultBad("Invalid statement encoding")
	}

	hash := stmt.Hash()

	s.mu.RLock()
	known := s.index.Query(hash)
	s.mu.RUnlock()

	switch known {
	case index.QueryExpired:
		if !source.CanBeResubmitted() {
			return store.ResultKnownExpired()
		}
	case index.QueryExists:
		if !source.CanBeResubmitted() {
			return store.ResultKnown()
		}
	}

	account, ok := stmt.AccountID()
	if !ok {
		Logger.Debugf("Statement validation failed: missing proof, %s", stmt)
		s.metrics.invalid.Inc()
		return store.ResultBad("No statement proof")
	}

	at, _ := stmt.AnchorBlock()
	validation, err := s.validator.Validate(at, source, stmt)
	switch {
	case errors.Is(err, store.ErrBadProof):
		Logger.Debugf("Statement validation failed: BadProof, %s", stmt)
		s.metrics.invalid.Inc()
		return store.ResultBad("Bad statement proof")
	case errors.Is(err, store.ErrNoProof):
		Logger.Debugf("Statement validation failed: NoProof, %s", stmt)
		s.metrics.invalid.Inc()
		return store.ResultBad("Missing statement proof")
	case err != nil:
		Logger.Debugf("Error validating statement %s: %v", hash, err)
		return store.ResultInternalError(store.ErrRuntime)
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	wasExpired := false
	switch s.index.Query(hash) {
	case index.QueryExists:
		// resubmission of a live statement, nothing to store
		Logger.Debugf("Statement %s is already stored", hash)
		return store.ResultNew()
	case index.QueryExpired:
		wasExpired = true
	}

	evicted, ok := s.index.Insert(hash, stmt, account, validation, now)
	if !ok {
		Logger.Debugf("Statement %s ignored: does not fit into the store", hash)
		return store.ResultIgnored()
	}

	ops := []db.Op{db.Put(db.ColStatements, hash[:], stmt.Encode())}
	if wasExpired {
		ops = append(ops, db.Delete(db.ColExpired, hash[:]))
	}
	ops = append(ops, expireOps(evicted, now)...)

	if err := s.db.Commit(ops); err != nil {
		Logger.Debugf("Statement validation failed: database error %v, %s", err, stmt)
		return store.ResultInternalError(store.NewDbError("%v", err))
	}

	s.metrics.submitted.Inc()
	Logger.Debugf("Statement submitted: %s (evicted %d)", hash, len(evicted))
	return store.ResultNew()
}

func (s *Store) Remove(hash statement.Hash) error {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.index.MakeExpired(hash, now) {
		return nil
	}
	if err := s.db.Commit(expireOps([]statement.Hash{hash}, now)); err != nil {
		Logger.Debugf("Error removing statement %s: database error %v", hash, err)
		return store.NewDbError("%v", err)
	}
	return nil
}

func (s *Store) RemoveBy(account statement.AccountID) error {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []statement.Hash
	for _, h := range s.index.AccountHashes(account) {
		if s.index.MakeExpired(h, now) {
			expired = append(expired, h)
		}
	}
	if err := s.db.Commit(expireOps(expired, now)); err != nil {
		Logger.Debugf("Error removing statements of %s: database error %v", account, err)
		return store.NewDbError("%v", err)
	}
	return nil
}

func (s *Store) Statement(hash statement.Hash) (*statement.Statement, error) {
	raw, err := s.db.Get(db.ColStatements, hash[:])
	if err != nil {
		Logger.Debugf("Error reading statement %s: %v", hash, err)
		return nil, store.NewDbError("%v", err)
	}
	if raw == nil {
		return nil, nil
	}
	stmt, err := statement.Decode(raw)
	if err != nil {
		Logger.Debugf("Error decoding statement %s: %v", hash, err)
		return nil, store.NewDecodeError("Error decoding statement: %v", err)
	}
	return stmt, nil
}

func (s *Store) Statements() ([]statement.Hashed, error) {
	s.mu.RLock()
	hashes := s.index.Hashes()
	s.mu.RUnlock()

	result := make([]statement.Hashed, 0, len(hashes))
	for _, h := range hashes {
		stmt, err := s.load(h)
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			result = append(result, statement.Hashed{Hash: stmt.Hash(), Statement: stmt})
		}
	}
	return result, nil
}

func (s *Store) Broadcasts(topics []statement.Topic) ([][]byte, error) {
	return s.collect(nil, topics, func(stmt *statement.Statement) ([]byte, bool) {
		return stmt.Data, stmt.Data != nil
	})
}

func (s *Store) BroadcastsStmt(topics []statement.Topic) ([][]byte, error) {
	return s.collect(nil, topics, func(stmt *statement.Statement) ([]byte, bool) {
		return stmt.Encode(), true
	})
}

func (s *Store) Posted(topics []statement.Topic, dest statement.DecryptionKey) ([][]byte, error) {
	return s.collect(&dest, topics, func(stmt *statement.Statement) ([]byte, bool) {
		return stmt.Data, stmt.Data != nil
	})
}

func (s *Store) PostedStmt(topics []statement.Topic, dest statement.DecryptionKey) ([][]byte, error) {
	return s.collect(&dest, topics, func(stmt *statement.Statement) ([]byte, bool) {
		return stmt.Encode(), true
	})
}

func (s *Store) PostedClear(topics []statement.Topic, dest statement.DecryptionKey) ([][]byte, error) {
	return s.postedClear(topics, dest, func(_ *statement.Statement, plain []byte) []byte {
		return plain
	})
}

func (s *Store) PostedClearStmt(topics []statement.Topic, dest statement.DecryptionKey) ([][]byte, error) {
	return s.postedClear(topics, dest, func(stmt *statement.Statement, plain []byte) []byte {
		encoded := stmt.Encode()
		out := make([]byte, 0, len(encoded)+len(plain))
		out = append(out, encoded...)
		return append(out, plain...)
	})
}

func (s *Store) GetInfo() (store.Info, error) {
	s.mu.RLock()
	info := store.Info{
		Statements:  s.index.Len(),
		Expired:     s.index.ExpiredLen(),
		TotalSize:   s.index.TotalSize(),
		Accounts:    s.index.Accounts(),
		AccountSize: s.index.AccountSizeStats(),
		Options:     s.index.Options(),
	}
	s.mu.RUnlock()

	info.DB = s.db.GetInfo()
	return info, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// load reads a single statement. Missing and corrupt records are logged and
// reported as nil, only a failing backend is an error.
func (s *Store) load(hash statement.Hash) (*statement.Statement, error) {
	raw, err := s.db.Get(db.ColStatements, hash[:])
	if err != nil {
		Logger.Debugf("Error reading statement %s: %v", hash, err)
		return nil, store.NewDbError("%v", err)
	}
	if raw == nil {
		Logger.Warningf("Statement %s is missing in the database", hash)
		return nil, nil
	}
	stmt, err := statement.Decode(raw)
	if err != nil {
		Logger.Warningf("Corrupt statement %s: %v", hash, err)
		return nil, nil
	}
	return stmt, nil
}

// collect loads every statement matching key and topics and maps it with fn.
// Statements for which fn returns false are skipped.
func (s *Store) collect(key *statement.DecryptionKey, topics []statement.Topic, fn func(*statement.Statement) ([]byte, bool)) ([][]byte, error) {
	var hashes []statement.Hash
	s.mu.RLock()
	_ = s.index.IterateWith(key, topics, func(h statement.Hash) error {
		hashes = append(hashes, h)
		return nil
	})
	s.mu.RUnlock()

	result := make([][]byte, 0, len(hashes))
	for _, h := range hashes {
		stmt, err := s.load(h)
		if err != nil {
			return nil, err
		}
		if stmt == nil {
			continue
		}
		if out, ok := fn(stmt); ok {
			result = append(result, out)
		}
	}
	return result, nil
}

func (s *Store) postedClear(topics []statement.Topic, dest statement.DecryptionKey, mapFn func(*statement.Statement, []byte) []byte) ([][]byte, error) {
	return s.collect(&dest, topics, func(stmt *statement.Statement) ([]byte, bool) {
		if stmt.DecryptionKey == nil || stmt.Data == nil || s.keys == nil {
			return nil, false
		}
		priv, err := s.keys.Resolve(*stmt.DecryptionKey)
		if err != nil {
			Logger.Debugf("Error resolving decryption key %s: %v", stmt.DecryptionKey, err)
			return nil, false
		}
		if priv == nil {
			Logger.Debugf("Unknown decryption key %s", stmt.DecryptionKey)
			return nil, false
		}
		plain, ok, err := stmt.Decrypt(priv)
		if err != nil {
			Logger.Debugf("Error decrypting statement: %v", err)
			return nil, false
		}
		if !ok {
			return nil, false
		}
		return mapFn(stmt, plain), true
	})
}
