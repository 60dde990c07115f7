package statement

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
)

// DecryptionKeyOf returns the decryption key identifier of a public key
func DecryptionKeyOf(pub *ecdsa.PublicKey) DecryptionKey {
	return DecryptionKey(ethcrypto.Keccak256Hash(ethcrypto.CompressPubkey(pub)))
}

// Encrypt encrypts data for the owner of pub (ECIES) and stores the ciphertext as
// the statement payload. The decryption key field is set to the identifier of pub.
func (s *Statement) Encrypt(data []byte, pub *ecdsa.PublicKey) error {
	ct, err := ecies.Encrypt(rand.Reader, ecies.ImportECDSAPublic(pub), data, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to encrypt statement data: %w", err)
	}
	s.SetDecryptionKey(DecryptionKeyOf(pub))
	s.Data = ct
	return nil
}

// Decrypt decrypts the payload with the given private key.
// The boolean is false if the statement has no payload.
func (s *Statement) Decrypt(priv *ecdsa.PrivateKey) ([]byte, bool, error) {
	if s.Data == nil {
		return nil, false, nil
	}
	pt, err := ecies.ImportECDSA(priv).Decrypt(s.Data, nil, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decrypt statement data: %w", err)
	}
	return pt, true, nil
}
