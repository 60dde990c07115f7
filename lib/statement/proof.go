package statement

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ProofKind distinguishes the supported proof types.
type ProofKind uint8

const (
	ProofSecp256k1 ProofKind = iota // ecdsa signature over the signing payload
	ProofOnChain                    // reference to an on-chain event
)

// Proof authenticates the owner of a statement.
// Exactly one of the kind specific field groups is used.
type Proof struct {
	Kind ProofKind

	// ProofSecp256k1
	Signature [65]byte // [R || S || V]
	Signer    [33]byte // compressed public key

	// ProofOnChain
	Who        AccountID
	BlockHash  BlockHash
	EventIndex uint64
}

// AccountID returns the account the proof attributes the statement to.
func (p *Proof) AccountID() (AccountID, bool) {
	switch p.Kind {
	case ProofSecp256k1:
		return AccountIDFromCompressed(p.Signer[:]), true
	case ProofOnChain:
		return p.Who, true
	default:
		return AccountID{}, false
	}
}

// MarshalJSON renders the proof in a readable form
func (p Proof) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case ProofSecp256k1:
		return json.Marshal(struct {
			Kind      string `json:"kind"`
			Signature string `json:"signature"`
			Signer    string `json:"signer"`
		}{"secp256k1", hex.EncodeToString(p.Signature[:]), hex.EncodeToString(p.Signer[:])})
	case ProofOnChain:
		return json.Marshal(struct {
			Kind       string    `json:"kind"`
			Who        AccountID `json:"who"`
			BlockHash  BlockHash `json:"block_hash"`
			EventIndex uint64    `json:"event_index"`
		}{"on_chain", p.Who, p.BlockHash, p.EventIndex})
	default:
		return nil, fmt.Errorf("unknown proof kind %d", p.Kind)
	}
}

// AccountIDFromCompressed derives an account id from a compressed secp256k1 public key.
func AccountIDFromCompressed(pub []byte) AccountID {
	return AccountID(ethcrypto.Keccak256Hash(pub))
}

// AccountIDFromPublicKey derives an account id from a secp256k1 public key.
func AccountIDFromPublicKey(pub *ecdsa.PublicKey) AccountID {
	return AccountIDFromCompressed(ethcrypto.CompressPubkey(pub))
}

// --------------------------------------------------------------------------
// Signing
// --------------------------------------------------------------------------

// ErrNoSignature is returned by VerifySignature if the statement is not signed.
var ErrNoSignature = errors.New("statement is not signed")

// SigningPayload returns the keccak256 digest of the statement encoding without its proof.
func (s *Statement) SigningPayload() []byte {
	unsigned := *s
	unsigned.Proof = nil
	return ethcrypto.Keccak256(unsigned.Encode())
}

// Sign signs the statement with the given key and stores the resulting proof.
// Any existing proof is replaced.
func (s *Statement) Sign(priv *ecdsa.PrivateKey) error {
	if err := s.CheckTopics(); err != nil {
		return err
	}
	sig, err := ethcrypto.Sign(s.SigningPayload(), priv)
	if err != nil {
		return fmt.Errorf("failed to sign statement: %w", err)
	}
	proof := &Proof{Kind: ProofSecp256k1}
	copy(proof.Signature[:], sig)
	copy(proof.Signer[:], ethcrypto.CompressPubkey(&priv.PublicKey))
	s.Proof = proof
	return nil
}

// VerifySignature checks the secp256k1 proof of the statement.
// It returns ErrNoSignature if the statement has no secp256k1 proof.
func (s *Statement) VerifySignature() (bool, error) {
	if s.Proof == nil || s.Proof.Kind != ProofSecp256k1 {
		return false, ErrNoSignature
	}
	// the recovery id (V) is not part of the verification
	return ethcrypto.VerifySignature(s.Proof.Signer[:], s.SigningPayload(), s.Proof.Signature[:64]), nil
}

// SetOnChainProof attaches an on-chain proof to the statement.
func (s *Statement) SetOnChainProof(who AccountID, block BlockHash, eventIndex uint64) {
	s.Proof = &Proof{
		Kind:       ProofOnChain,
		Who:        who,
		BlockHash:  block,
		EventIndex: eventIndex,
	}
}

// AnchorBlock returns the block hash referenced by an on-chain proof.
func (s *Statement) AnchorBlock() (*BlockHash, bool) {
	if s.Proof == nil || s.Proof.Kind != ProofOnChain {
		return nil, false
	}
	b := s.Proof.BlockHash
	return &b, true
}
