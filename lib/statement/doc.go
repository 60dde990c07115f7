// Package statement defines the data model of the statement store.
//
// A Statement is a small, provable object: an optional proof that attributes it
// to an account, up to MaxTopics topics, an optional channel, an optional
// decryption key, an optional priority and an optional payload. Its identity is
// the blake3-256 hash of its binary encoding.
//
// The package contains:
//   - statement: identifier types (Hash, AccountID, Topic, Channel, DecryptionKey),
//     the Statement type and the Source of a submission
//   - codec: the binary encoding (Encode / Decode)
//   - proof: secp256k1 signatures and on-chain proofs (go-ethereum crypto)
//   - crypto: ECIES payload encryption addressed to a DecryptionKey
//
// Encoding:
//
//	uvarint(field count) | tag(1) payload | tag(1) payload | ...
//
//	tag 0   proof           kind(1) + kind specific fields
//	tag 1   decryption key  32 bytes
//	tag 2   priority        u32 little endian
//	tag 3   channel         32 bytes
//	tag 4-7 topics          32 bytes each, contiguous
//	tag 8   data            u32 little endian length + bytes
//
// Tags must be strictly ascending. Decode rejects unknown tags, truncated input
// and trailing bytes, so every accepted byte string has exactly one statement.
//
// Signing:
//
//	The signature covers keccak256(Encode() without the proof field). The account
//	of a signed statement is keccak256 of the compressed signer key, which is also
//	how DecryptionKey identifiers are derived from public keys.
//
// Example usage:
//
//	s := &statement.Statement{Data: []byte("hello")}
//	s.SetTopic(0, statement.TopicFromString("greetings"))
//	s.SetPriority(10)
//	if err := s.Sign(priv); err != nil {
//		return err
//	}
//	encoded := s.Encode()
//	hash := s.Hash()
package statement
