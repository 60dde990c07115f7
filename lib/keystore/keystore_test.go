package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dStmt/lib/statement"
	ethkeystore "github.com/ethereum/go-ethereum/accounts/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeyStore(t *testing.T) {
	ks := NewMemoryKeyStore()

	priv, err := ks.Generate()
	require.NoError(t, err)
	key := statement.DecryptionKeyOf(&priv.PublicKey)

	resolved, err := ks.Resolve(key)
	require.NoError(t, err)
	assert.Equal(t, priv, resolved)

	unknown, err := ks.Resolve(statement.DecryptionKey{1})
	require.NoError(t, err)
	assert.Nil(t, unknown)

	other, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	assert.Equal(t, statement.DecryptionKeyOf(&other.PublicKey), ks.Add(other))
	assert.Equal(t, 2, ks.Len())
	assert.Len(t, ks.Keys(), 2)
}

func TestKeyFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")

	info, priv, err := GenerateWithParams(dir, "secret", ethkeystore.LightScryptN, ethkeystore.LightScryptP)
	require.NoError(t, err)
	assert.Equal(t, statement.DecryptionKeyOf(&priv.PublicKey), info.DecryptionKey)
	assert.Equal(t, statement.AccountIDFromPublicKey(&priv.PublicKey), info.Account)
	assert.FileExists(t, info.Path)

	loaded, err := Load(info.Path, "secret")
	require.NoError(t, err)
	assert.Equal(t, priv.D, loaded.D)

	_, err = Load(info.Path, "wrong")
	assert.Error(t, err)

	// files that are not keys are skipped
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("not a key"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("{}"), 0o600))

	ks, err := OpenDir(dir, "secret")
	require.NoError(t, err)
	assert.Equal(t, 1, ks.Len())

	resolved, err := ks.Resolve(info.DecryptionKey)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, priv.D, resolved.D)

	// a wrong passphrase loads nothing
	ks, err = OpenDir(dir, "wrong")
	require.NoError(t, err)
	assert.Equal(t, 0, ks.Len())

	_, err = OpenDir(filepath.Join(dir, "missing"), "secret")
	assert.Error(t, err)
}

func TestDecryptWithStoredKey(t *testing.T) {
	dir := t.TempDir()
	info, _, err := GenerateWithParams(dir, "pw", ethkeystore.LightScryptN, ethkeystore.LightScryptP)
	require.NoError(t, err)

	ks, err := OpenDir(dir, "pw")
	require.NoError(t, err)
	priv, err := ks.Resolve(info.DecryptionKey)
	require.NoError(t, err)

	s := &statement.Statement{}
	require.NoError(t, s.Encrypt([]byte("for your eyes only"), &priv.PublicKey))
	assert.Equal(t, info.DecryptionKey, *s.DecryptionKey)

	plain, ok, err := s.Decrypt(priv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("for your eyes only"), plain)
}
