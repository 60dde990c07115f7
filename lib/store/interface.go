package store

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dStmt/lib/db"
	"github.com/ValentinKolb/dStmt/lib/db/util"
	"github.com/ValentinKolb/dStmt/lib/statement"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the interface for interacting with a statement store.
// Submissions report their outcome as a SubmitResult value, all other
// operations return a *Error (nil on success).
type IStore interface {
	// Submit validates a statement and admits it if the budgets of its account
	// and of the whole store allow it. Lower priority statements of the same
	// account may be evicted to make room.
	Submit(stmt *statement.Statement, source statement.Source) (result SubmitResult)
	// Remove expires a single statement. Removing an unknown statement is not an error.
	Remove(hash statement.Hash) (err error)
	// RemoveBy expires all statements of an account.
	RemoveBy(account statement.AccountID) (err error)
	// Statement returns the statement with the given hash, or nil if it is not stored.
	Statement(hash statement.Hash) (stmt *statement.Statement, err error)
	// Statements returns all live statements.
	Statements() (stmts []statement.Hashed, err error)
	// Broadcasts returns the payloads of all statements without a decryption key that carry all given topics.
	Broadcasts(topics []statement.Topic) (data [][]byte, err error)
	// BroadcastsStmt is like Broadcasts but returns the encoded statements.
	BroadcastsStmt(topics []statement.Topic) (stmts [][]byte, err error)
	// Posted returns the payloads of all statements for dest that carry all given topics.
	Posted(topics []statement.Topic, dest statement.DecryptionKey) (data [][]byte, err error)
	// PostedStmt is like Posted but returns the encoded statements.
	PostedStmt(topics []statement.Topic, dest statement.DecryptionKey) (stmts [][]byte, err error)
	// PostedClear is like Posted but returns the decrypted payloads.
	// Statements that can not be decrypted with a known key are skipped.
	PostedClear(topics []statement.Topic, dest statement.DecryptionKey) (data [][]byte, err error)
	// PostedClearStmt is like PostedClear, every entry is the encoded statement followed by the plaintext.
	PostedClearStmt(topics []statement.Topic, dest statement.DecryptionKey) (stmts [][]byte, err error)
	// GetInfo returns information about the store and the database underlying it.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetInfo() (info Info, err error)
}

// --------------------------------------------------------------------------
// Submission Results
// --------------------------------------------------------------------------

// SubmitKind is the outcome of a submission
type SubmitKind uint8

const (
	SubmitNew           SubmitKind = iota // statement was admitted
	SubmitKnown                           // statement is already stored
	SubmitKnownExpired                    // statement was removed and is still cooling down
	SubmitIgnored                         // statement did not fit into the budgets
	SubmitBad                             // statement failed validation, see Reason
	SubmitInternalError                   // store or validator failure, see Err
)

func (k SubmitKind) String() string {
	switch k {
	case SubmitNew:
		return "New"
	case SubmitKnown:
		return "Known"
	case SubmitKnownExpired:
		return "KnownExpired"
	case SubmitIgnored:
		return "Ignored"
	case SubmitBad:
		return "Bad"
	case SubmitInternalError:
		return "InternalError"
	default:
		return fmt.Sprintf("SubmitKind(%d)", uint8(k))
	}
}

// NetworkPriority is a hint for how urgently a new statement should be propagated
type NetworkPriority uint8

const (
	PriorityLow NetworkPriority = iota
	PriorityHigh
)

func (p NetworkPriority) String() string {
	if p == PriorityHigh {
		return "High"
	}
	return "Low"
}

// SubmitResult describes what happened to a submitted statement.
// Reason is only set for SubmitBad, Err only for SubmitInternalError.
type SubmitResult struct {
	Kind     SubmitKind      `json:"kind"`
	Priority NetworkPriority `json:"priority"`
	Reason   string          `json:"reason,omitempty"`
	Err      error           `json:"-"`
}

func ResultNew() SubmitResult {
	return SubmitResult{Kind: SubmitNew, Priority: PriorityHigh}
}

func ResultKnown() SubmitResult        { return SubmitResult{Kind: SubmitKnown} }
func ResultKnownExpired() SubmitResult { return SubmitResult{Kind: SubmitKnownExpired} }
func ResultIgnored() SubmitResult      { return SubmitResult{Kind: SubmitIgnored} }

func ResultBad(reason string) SubmitResult {
	return SubmitResult{Kind: SubmitBad, Reason: reason}
}

func ResultInternalError(err error) SubmitResult {
	return SubmitResult{Kind: SubmitInternalError, Err: err}
}

func (r SubmitResult) String() string {
	switch r.Kind {
	case SubmitNew:
		return fmt.Sprintf("New(%s)", r.Priority)
	case SubmitBad:
		return fmt.Sprintf("Bad(%s)", r.Reason)
	case SubmitInternalError:
		return fmt.Sprintf("InternalError(%v)", r.Err)
	default:
		return r.Kind.String()
	}
}

// --------------------------------------------------------------------------
// Options and Info
// --------------------------------------------------------------------------

// Options are the global limits of a store
type Options struct {
	// Maximum number of live statements
	MaxTotalStatements int `json:"max_total_statements"`
	// Maximum total payload size of all live statements in bytes
	MaxTotalSize int `json:"max_total_size"`
	// Seconds a removed statement is remembered before its hash may be admitted again
	PurgeAfterSec uint64 `json:"purge_after_sec"`
}

const (
	DefaultMaxTotalStatements = 8192
	DefaultMaxTotalSize       = 64 * 1024 * 1024
	DefaultPurgeAfterSec      = 2 * 24 * 60 * 60
)

// DefaultOptions returns the default store limits
func DefaultOptions() Options {
	return Options{
		MaxTotalStatements: DefaultMaxTotalStatements,
		MaxTotalSize:       DefaultMaxTotalSize,
		PurgeAfterSec:      DefaultPurgeAfterSec,
	}
}

// Info summarizes the state of a store
type Info struct {
	Statements  int             `json:"statements"`
	Expired     int             `json:"expired"`
	TotalSize   int             `json:"total_size"`
	Accounts    int             `json:"accounts"`
	AccountSize util.Stats      `json:"account_size"`
	Options     Options         `json:"options"`
	DB          db.DatabaseInfo `json:"db"`
}

// --------------------------------------------------------------------------
// Collaborators
// --------------------------------------------------------------------------

// ValidStatement holds the quotas of the account that owns a validated statement
type ValidStatement struct {
	MaxCount uint32 `json:"max_count"`
	MaxSize  uint32 `json:"max_size"`
}

var (
	// ErrBadProof is returned by a Validator if the proof of a statement is invalid
	ErrBadProof = errors.New("bad statement proof")
	// ErrNoProof is returned by a Validator if the statement has no proof it can check
	ErrNoProof = errors.New("missing statement proof")
)

// Validator checks the proof of a statement and computes the quotas of its account.
// at is the block the proof refers to (if any). Rejections are reported with
// ErrBadProof or ErrNoProof, any other error is treated as an internal failure.
type Validator interface {
	Validate(at *statement.BlockHash, source statement.Source, stmt *statement.Statement) (ValidStatement, error)
}

// ValidatorFunc adapts a function to the Validator interface
type ValidatorFunc func(at *statement.BlockHash, source statement.Source, stmt *statement.Statement) (ValidStatement, error)

func (f ValidatorFunc) Validate(at *statement.BlockHash, source statement.Source, stmt *statement.Statement) (ValidStatement, error) {
	return f(at, source, stmt)
}

// KeyResolver returns the private key for a decryption key.
// A nil key without error means the key is not known.
type KeyResolver interface {
	Resolve(key statement.DecryptionKey) (*ecdsa.PrivateKey, error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Is matches errors with the same code, so errors.Is(err, &Error{Code: RetCDb}) works
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new StoreError with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// NewDbError wraps a failure of the persistence backend
func NewDbError(format string, args ...interface{}) *Error {
	return NewError(RetCDb, fmt.Sprintf(format, args...))
}

// NewDecodeError reports a stored value that could not be decoded
func NewDecodeError(format string, args ...interface{}) *Error {
	return NewError(RetCDecode, fmt.Sprintf(format, args...))
}

// ErrRuntime is reported when the validator fails internally
var ErrRuntime = NewError(RetCRuntime, "validator runtime error")

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCDb                                  // 4: Persistence backend failure.
	RetCDecode                              // 5: Stored value could not be decoded.
	RetCRuntime                             // 6: Validator failed internally.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCDb:
		return "Db"
	case RetCDecode:
		return "Decode"
	case RetCRuntime:
		return "Runtime"
	default:
		return "Unknown"
	}
}
