package validator

import (
	"fmt"

	"github.com/ValentinKolb/dStmt/lib/statement"
	"github.com/ValentinKolb/dStmt/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("validator")

const (
	DefaultQuotaCount = 16
	DefaultQuotaSize  = 64 * 1024
)

// Config configures a SignatureValidator
type Config struct {
	// DefaultQuota applies to every account without an entry in Quotas
	DefaultQuota store.ValidStatement
	// Quotas overrides the default quota per account
	Quotas map[statement.AccountID]store.ValidStatement
	// TrustedAnchors are the block hashes on-chain proofs may refer to.
	// Without anchors every on-chain proof is rejected.
	TrustedAnchors []statement.BlockHash
	// AllowNetwork enables submissions from network peers
	AllowNetwork bool
	// Allowed is an optional policy hook, returning false rejects the statement
	Allowed func(source statement.Source, stmt *statement.Statement) bool
}

// DefaultConfig accepts signed statements from all sources with the default quota
func DefaultConfig() Config {
	return Config{
		DefaultQuota: store.ValidStatement{MaxCount: DefaultQuotaCount, MaxSize: DefaultQuotaSize},
		AllowNetwork: true,
	}
}

// SignatureValidator checks statement proofs locally:
// secp256k1 signatures must verify, on-chain proofs must be anchored at a trusted block.
// It is safe for concurrent use, the configuration is not modified after construction.
type SignatureValidator struct {
	defaultQuota store.ValidStatement
	quotas       map[statement.AccountID]store.ValidStatement
	anchors      map[statement.BlockHash]struct{}
	allowNetwork bool
	allowed      func(source statement.Source, stmt *statement.Statement) bool
}

// compile time check
var _ store.Validator = (*SignatureValidator)(nil)

// NewSignatureValidator creates a validator from cfg
func NewSignatureValidator(cfg Config) *SignatureValidator {
	v := &SignatureValidator{
		defaultQuota: cfg.DefaultQuota,
		quotas:       make(map[statement.AccountID]store.ValidStatement, len(cfg.Quotas)),
		anchors:      make(map[statement.BlockHash]struct{}, len(cfg.TrustedAnchors)),
		allowNetwork: cfg.AllowNetwork,
		allowed:      cfg.Allowed,
	}
	for account, quota := range cfg.Quotas {
		v.quotas[account] = quota
	}
	for _, anchor := range cfg.TrustedAnchors {
		v.anchors[anchor] = struct{}{}
	}
	return v
}

// Validate implements store.Validator
func (v *SignatureValidator) Validate(at *statement.BlockHash, source statement.Source, stmt *statement.Statement) (store.ValidStatement, error) {
	if source == statement.SourceNetwork && !v.allowNetwork {
		return store.ValidStatement{}, fmt.Errorf("%w: network submissions are disabled", store.ErrBadProof)
	}
	if stmt.Proof == nil {
		return store.ValidStatement{}, store.ErrNoProof
	}

	switch stmt.Proof.Kind {
	case statement.ProofSecp256k1:
		valid, err := stmt.VerifySignature()
		if err != nil {
			return store.ValidStatement{}, fmt.Errorf("%w: %v", store.ErrNoProof, err)
		}
		if !valid {
			return store.ValidStatement{}, fmt.Errorf("%w: invalid signature", store.ErrBadProof)
		}
	case statement.ProofOnChain:
		if at == nil {
			return store.ValidStatement{}, fmt.Errorf("%w: on-chain proof without block", store.ErrBadProof)
		}
		if _, ok := v.anchors[*at]; !ok {
			Logger.Debugf("on-chain proof references unknown block %s", at)
			return store.ValidStatement{}, fmt.Errorf("%w: unknown anchor block %s", store.ErrBadProof, at)
		}
	default:
		return store.ValidStatement{}, store.ErrNoProof
	}

	if v.allowed != nil && !v.allowed(source, stmt) {
		return store.ValidStatement{}, fmt.Errorf("%w: rejected by policy", store.ErrBadProof)
	}

	account, _ := stmt.AccountID()
	if quota, ok := v.quotas[account]; ok {
		return quota, nil
	}
	return v.defaultQuota, nil
}
