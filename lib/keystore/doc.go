// Package keystore provides store.KeyResolver implementations.
//
// The store uses a KeyResolver to decrypt payloads that are addressed to this
// node (PostedClear). A decryption key is the keccak256 hash of the compressed
// secp256k1 public key, so a resolver only has to map that hash to the private key.
//
// MemoryKeyStore keeps the keys in memory. OpenDir fills one from a directory of
// encrypted web3 (v3) key files, the format written by go-ethereum's keystore and
// by Generate:
//
//	info, _, err := keystore.Generate("/var/lib/dstmt/keys", "secret")
//	keys, err := keystore.OpenDir("/var/lib/dstmt/keys", "secret")
//	priv, err := keys.Resolve(info.DecryptionKey)
package keystore
