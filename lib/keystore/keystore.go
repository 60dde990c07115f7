package keystore

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ValentinKolb/dStmt/lib/statement"
	"github.com/ValentinKolb/dStmt/lib/store"
	ethkeystore "github.com/ethereum/go-ethereum/accounts/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("keystore")

// --------------------------------------------------------------------------
// Memory Key Store
// --------------------------------------------------------------------------

// MemoryKeyStore resolves decryption keys from a set of private keys held in memory.
// It is safe for concurrent use.
type MemoryKeyStore struct {
	keys *xsync.MapOf[statement.DecryptionKey, *ecdsa.PrivateKey]
}

// compile time check
var _ store.KeyResolver = (*MemoryKeyStore)(nil)

// NewMemoryKeyStore creates an empty key store
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{
		keys: xsync.NewMapOf[statement.DecryptionKey, *ecdsa.PrivateKey](),
	}
}

// Add stores priv and returns the decryption key it answers to
func (ks *MemoryKeyStore) Add(priv *ecdsa.PrivateKey) statement.DecryptionKey {
	key := statement.DecryptionKeyOf(&priv.PublicKey)
	ks.keys.Store(key, priv)
	return key
}

// Generate creates a new secp256k1 key and adds it to the store
func (ks *MemoryKeyStore) Generate() (*ecdsa.PrivateKey, error) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	ks.Add(priv)
	return priv, nil
}

// Resolve implements store.KeyResolver
func (ks *MemoryKeyStore) Resolve(key statement.DecryptionKey) (*ecdsa.PrivateKey, error) {
	priv, _ := ks.keys.Load(key)
	return priv, nil
}

// Keys returns all decryption keys in ascending order
func (ks *MemoryKeyStore) Keys() []statement.DecryptionKey {
	out := make([]statement.DecryptionKey, 0, ks.keys.Size())
	ks.keys.Range(func(key statement.DecryptionKey, _ *ecdsa.PrivateKey) bool {
		out = append(out, key)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// Len returns the number of keys
func (ks *MemoryKeyStore) Len() int {
	return ks.keys.Size()
}

// --------------------------------------------------------------------------
// Key Files
// --------------------------------------------------------------------------

// KeyInfo describes a key file
type KeyInfo struct {
	Path          string                  `json:"path"`
	Account       statement.AccountID     `json:"account"`
	DecryptionKey statement.DecryptionKey `json:"decryption_key"`
}

func infoOf(path string, priv *ecdsa.PrivateKey) KeyInfo {
	return KeyInfo{
		Path:          path,
		Account:       statement.AccountIDFromPublicKey(&priv.PublicKey),
		DecryptionKey: statement.DecryptionKeyOf(&priv.PublicKey),
	}
}

// Generate creates a new key and writes it as an encrypted (web3 v3) key file into dir
func Generate(dir, passphrase string) (KeyInfo, *ecdsa.PrivateKey, error) {
	return GenerateWithParams(dir, passphrase, ethkeystore.StandardScryptN, ethkeystore.StandardScryptP)
}

// GenerateWithParams is like Generate with custom scrypt parameters
func GenerateWithParams(dir, passphrase string, scryptN, scryptP int) (KeyInfo, *ecdsa.PrivateKey, error) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		return KeyInfo{}, nil, fmt.Errorf("failed to generate key: %w", err)
	}
	info, err := Save(dir, priv, passphrase, scryptN, scryptP)
	if err != nil {
		return KeyInfo{}, nil, err
	}
	return info, priv, nil
}

// Save writes priv as an encrypted key file into dir. The directory is created if needed.
func Save(dir string, priv *ecdsa.PrivateKey, passphrase string, scryptN, scryptP int) (KeyInfo, error) {
	if priv == nil {
		return KeyInfo{}, errors.New("keystore: nil private key")
	}
	if dir == "" {
		return KeyInfo{}, errors.New("keystore: empty key directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return KeyInfo{}, err
	}

	ks := ethkeystore.NewKeyStore(dir, scryptN, scryptP)
	acc, err := ks.ImportECDSA(priv, passphrase)
	if err != nil {
		return KeyInfo{}, fmt.Errorf("failed to write key file: %w", err)
	}
	Logger.Infof("wrote key file %s", acc.URL.Path)
	return infoOf(acc.URL.Path, priv), nil
}

// Load decrypts a single key file
func Load(path, passphrase string) (*ecdsa.PrivateKey, error) {
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := ethkeystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", path, err)
	}
	return key.PrivateKey, nil
}

// ListDir decrypts all key files in dir. Hidden files, directories and files that
// can not be decrypted with passphrase are skipped with a warning.
func ListDir(dir, passphrase string) ([]KeyInfo, []*ecdsa.PrivateKey, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read key directory: %w", err)
	}

	var infos []KeyInfo
	var keys []*ecdsa.PrivateKey
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		priv, err := Load(path, passphrase)
		if err != nil {
			Logger.Warningf("skipping key file: %v", err)
			continue
		}
		infos = append(infos, infoOf(path, priv))
		keys = append(keys, priv)
	}
	return infos, keys, nil
}

// OpenDir loads all key files of dir into a new MemoryKeyStore
func OpenDir(dir, passphrase string) (*MemoryKeyStore, error) {
	_, keys, err := ListDir(dir, passphrase)
	if err != nil {
		return nil, err
	}
	ks := NewMemoryKeyStore()
	for _, priv := range keys {
		ks.Add(priv)
	}
	Logger.Infof("loaded %d keys from %s", ks.Len(), dir)
	return ks, nil
}
