// Package store provides the high-level interface of the statement store:
// bounded, multi-tenant storage for small provable statements with admission
// control and priority based eviction.
//
// The package focuses on:
//   - A unified interface (IStore) shared by the local store and the RPC client
//   - The outcome of a submission as a value (SubmitResult) instead of an error
//   - The collaborator interfaces the store is built from (Validator, KeyResolver)
//   - Unified error reporting
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining the operations on a statement
//     store. The local implementation lives in lstore, rpc/client provides the same
//     interface for a remote node, so applications can switch between them without
//     code changes.
//
//   - SubmitResult: Submissions do not fail with an error. A statement is either admitted
//     (New), already known (Known, KnownExpired), not important enough to fit into the
//     budgets (Ignored), rejected by the validator (Bad) or could not be processed
//     (InternalError). Callers are expected to branch on the Kind.
//
//   - Options: The global limits of a store. The per account limits are not configured
//     here, they are computed for every statement by the Validator.
//
//   - Validator: Checks the proof of a statement and returns the quotas (count and size)
//     of the account that owns it. Returning ErrBadProof or ErrNoProof rejects the
//     statement, any other error is reported as an internal error.
//
//   - KeyResolver: Maps a decryption key to a private key so that the store can decrypt
//     payloads addressed to this node (PostedClear).
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     and descriptive messages. RetCDb marks persistence failures, RetCDecode a stored
//     value that can not be decoded and RetCRuntime a failing validator. Errors with the
//     same code match with errors.Is.
//
// Usage Example:
//
//	s, err := lstore.New(lstore.Config{
//		Backend:   backend,
//		Validator: validator.NewSignatureValidator(validator.DefaultConfig()),
//	})
//
//	res := s.Submit(stmt, statement.SourceLocal)
//	switch res.Kind {
//	case store.SubmitNew:
//		// stored
//	case store.SubmitBad:
//		log.Printf("rejected: %s", res.Reason)
//	}
package store
