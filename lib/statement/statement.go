package statement

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"lukechampine.com/blake3"
)

// MaxTopics is the maximum number of topics a single statement may carry.
const MaxTopics = 4

// ErrTooManyTopics is returned for statements with more than MaxTopics topics.
var ErrTooManyTopics = errors.New("too many topics")

// --------------------------------------------------------------------------
// Fixed size identifiers
// --------------------------------------------------------------------------

// Hash is the content-derived identity of a statement.
type Hash [32]byte

// AccountID identifies the owner of a statement.
type AccountID [32]byte

// Topic is an opaque tag used for topic filtered queries.
type Topic [32]byte

// Channel is an account scoped exclusivity slot.
type Channel [32]byte

// DecryptionKey identifies the key (the keccak256 hash of a compressed
// secp256k1 public key) that is able to decrypt the statement payload.
type DecryptionKey [32]byte

// BlockHash references a block that anchors an on-chain proof.
type BlockHash [32]byte

func (h Hash) String() string          { return hex.EncodeToString(h[:]) }
func (a AccountID) String() string     { return hex.EncodeToString(a[:]) }
func (t Topic) String() string         { return hex.EncodeToString(t[:]) }
func (c Channel) String() string       { return hex.EncodeToString(c[:]) }
func (k DecryptionKey) String() string { return hex.EncodeToString(k[:]) }
func (b BlockHash) String() string     { return hex.EncodeToString(b[:]) }

func (h Hash) MarshalText() ([]byte, error)          { return []byte(h.String()), nil }
func (a AccountID) MarshalText() ([]byte, error)     { return []byte(a.String()), nil }
func (t Topic) MarshalText() ([]byte, error)         { return []byte(t.String()), nil }
func (c Channel) MarshalText() ([]byte, error)       { return []byte(c.String()), nil }
func (k DecryptionKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }
func (b BlockHash) MarshalText() ([]byte, error)     { return []byte(b.String()), nil }

// parse32 decodes a hex string (with or without 0x prefix) into a 32 byte array
func parse32(kind, s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, fmt.Errorf("invalid %s %q: %w", kind, s, err)
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("invalid %s %q: expected 32 bytes, got %d", kind, s, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// ParseHash parses a hex encoded statement hash.
func ParseHash(s string) (Hash, error) {
	b, err := parse32("hash", s)
	return Hash(b), err
}

// ParseAccountID parses a hex encoded account id.
func ParseAccountID(s string) (AccountID, error) {
	b, err := parse32("account id", s)
	return AccountID(b), err
}

// ParseTopic parses a hex encoded topic.
func ParseTopic(s string) (Topic, error) {
	b, err := parse32("topic", s)
	return Topic(b), err
}

// ParseChannel parses a hex encoded channel.
func ParseChannel(s string) (Channel, error) {
	b, err := parse32("channel", s)
	return Channel(b), err
}

// ParseDecryptionKey parses a hex encoded decryption key identifier.
func ParseDecryptionKey(s string) (DecryptionKey, error) {
	b, err := parse32("decryption key", s)
	return DecryptionKey(b), err
}

// ParseBlockHash parses a hex encoded block hash.
func ParseBlockHash(s string) (BlockHash, error) {
	b, err := parse32("block hash", s)
	return BlockHash(b), err
}

// TopicFromString derives a topic from an arbitrary label by hashing it.
// This is a convenience for human readable topics on the command line.
func TopicFromString(label string) Topic {
	return Topic(blake3.Sum256([]byte(label)))
}

// ChannelFromString derives a channel from an arbitrary label by hashing it.
func ChannelFromString(label string) Channel {
	return Channel(blake3.Sum256([]byte(label)))
}

// --------------------------------------------------------------------------
// Statement
// --------------------------------------------------------------------------

// Statement is a small, provable object of data with metadata.
// All fields except Topics are optional, a nil pointer (or nil slice for Data)
// means the field is absent.
type Statement struct {
	Proof         *Proof         `json:"proof,omitempty"`
	DecryptionKey *DecryptionKey `json:"decryption_key,omitempty"`
	Priority      *uint32        `json:"priority,omitempty"`
	Channel       *Channel       `json:"channel,omitempty"`
	Topics        []Topic        `json:"topics,omitempty"`
	Data          []byte         `json:"data,omitempty"`
}

// Hashed pairs a statement with its hash.
type Hashed struct {
	Hash      Hash       `json:"hash"`
	Statement *Statement `json:"statement"`
}

// Hash returns the content hash (blake3-256 of the encoding) of the statement.
func (s *Statement) Hash() Hash {
	return Hash(blake3.Sum256(s.Encode()))
}

// AccountID returns the owner of the statement as derived from its proof.
// The boolean is false if the statement carries no proof.
func (s *Statement) AccountID() (AccountID, bool) {
	if s.Proof == nil {
		return AccountID{}, false
	}
	return s.Proof.AccountID()
}

// PriorityOrDefault returns the priority, or 0 if none was set.
func (s *Statement) PriorityOrDefault() uint32 {
	if s.Priority == nil {
		return 0
	}
	return *s.Priority
}

// Topic returns the topic at position i.
func (s *Statement) Topic(i int) (Topic, bool) {
	if i < 0 || i >= len(s.Topics) {
		return Topic{}, false
	}
	return s.Topics[i], true
}

// DataLen returns the length of the payload in bytes.
func (s *Statement) DataLen() int {
	return len(s.Data)
}

// SetPriority sets the priority field.
func (s *Statement) SetPriority(p uint32) {
	s.Priority = &p
}

// SetChannel sets the channel field.
func (s *Statement) SetChannel(c Channel) {
	s.Channel = &c
}

// SetDecryptionKey sets the decryption key field.
func (s *Statement) SetDecryptionKey(k DecryptionKey) {
	s.DecryptionKey = &k
}

// SetTopic sets the topic at position i, growing the topic list if needed.
// It panics if i is not smaller than MaxTopics.
func (s *Statement) SetTopic(i int, t Topic) {
	if i >= MaxTopics {
		panic(fmt.Sprintf("topic index %d out of range (max %d)", i, MaxTopics))
	}
	for len(s.Topics) <= i {
		s.Topics = append(s.Topics, Topic{})
	}
	s.Topics[i] = t
}

// CheckTopics returns ErrTooManyTopics if the statement carries more topics than
// the encoding can hold.
func (s *Statement) CheckTopics() error {
	if len(s.Topics) > MaxTopics {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyTopics, len(s.Topics), MaxTopics)
	}
	return nil
}

// String returns a short human readable description (used for logs)
func (s *Statement) String() string {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("Statement{hash=%s}", s.Hash())
	}
	return string(b)
}

// --------------------------------------------------------------------------
// Source
// --------------------------------------------------------------------------

// Source describes where a submitted statement came from.
type Source uint8

const (
	SourceChain   Source = iota // Statement was submitted by the chain (e.g. from an extrinsic)
	SourceNetwork               // Statement was received from a network peer
	SourceLocal                 // Statement was submitted locally (e.g. via rpc)
)

// CanBeResubmitted reports whether statements from this source are re-validated
// even if they are already known to the store.
func (s Source) CanBeResubmitted() bool {
	switch s {
	case SourceChain, SourceLocal:
		return true
	default:
		return false
	}
}

func (s Source) String() string {
	switch s {
	case SourceChain:
		return "chain"
	case SourceNetwork:
		return "network"
	case SourceLocal:
		return "local"
	default:
		return "unknown"
	}
}

// ParseSource converts the string form of a source back to its value.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(s) {
	case "chain":
		return SourceChain, nil
	case "network":
		return SourceNetwork, nil
	case "local":
		return SourceLocal, nil
	default:
		return 0, fmt.Errorf("unknown statement source: %s", s)
	}
}
