// Package validator provides the default store.Validator implementation.
//
// A SignatureValidator verifies the proof of a statement without any external
// service: secp256k1 proofs are checked against the signing payload, on-chain
// proofs are accepted if they reference one of the configured trusted anchor
// blocks. The quotas of the owning account are looked up in a static table with
// a default for all other accounts.
//
// Rejections wrap store.ErrBadProof or store.ErrNoProof, so the store reports them
// as Bad submissions. Custom validators that need to call out to other systems
// can be plugged in with store.ValidatorFunc.
package validator
