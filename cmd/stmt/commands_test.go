package stmt

import (
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/dStmt/lib/keystore"
	"github.com/ValentinKolb/dStmt/lib/statement"
	ethkeystore "github.com/ethereum/go-ethereum/accounts/keystore"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildStatement(t *testing.T) {
	prio := uint32(7)
	stmt, err := buildStatement(submitOptions{
		data:     "hello",
		topics:   []string{"weather", "berlin"},
		channel:  "news",
		priority: &prio,
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("hello"), stmt.Data)
	assert.Equal(t, []statement.Topic{statement.TopicFromString("weather"), statement.TopicFromString("berlin")}, stmt.Topics)
	require.NotNil(t, stmt.Channel)
	assert.Equal(t, statement.ChannelFromString("news"), *stmt.Channel)
	assert.Equal(t, uint32(7), stmt.PriorityOrDefault())
	assert.Nil(t, stmt.DecryptionKey)

	ok, err := stmt.VerifySignature()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuildStatementWithoutData(t *testing.T) {
	stmt, err := buildStatement(submitOptions{})
	require.NoError(t, err)
	assert.Nil(t, stmt.Data)
	assert.Nil(t, stmt.Priority)
	assert.Nil(t, stmt.Channel)
}

func TestBuildStatementTooManyTopics(t *testing.T) {
	_, err := buildStatement(submitOptions{topics: []string{"1", "2", "3", "4", "5"}})
	assert.Error(t, err)
}

func TestBuildEncryptedStatement(t *testing.T) {
	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	for name, encoded := range map[string][]byte{
		"compressed":   ethcrypto.CompressPubkey(&priv.PublicKey),
		"uncompressed": ethcrypto.FromECDSAPub(&priv.PublicKey),
	} {
		t.Run(name, func(t *testing.T) {
			stmt, err := buildStatement(submitOptions{
				data:      "secret",
				encryptTo: hex.EncodeToString(encoded),
			})
			require.NoError(t, err)
			require.NotNil(t, stmt.DecryptionKey)
			assert.Equal(t, statement.DecryptionKeyOf(&priv.PublicKey), *stmt.DecryptionKey)

			plain, ok, err := stmt.Decrypt(priv)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("secret"), plain)
		})
	}

	_, err = buildStatement(submitOptions{data: "x", encryptTo: "not hex"})
	assert.Error(t, err)
}

func TestBuildStatementWithKeyFile(t *testing.T) {
	dir := t.TempDir()
	info, _, err := keystore.GenerateWithParams(dir, "secret", ethkeystore.LightScryptN, ethkeystore.LightScryptP)
	require.NoError(t, err)

	stmt, err := buildStatement(submitOptions{data: "signed", keyFile: info.Path, pass: "secret"})
	require.NoError(t, err)
	account, ok := stmt.AccountID()
	require.True(t, ok)
	assert.Equal(t, info.Account, account)

	_, err = buildStatement(submitOptions{keyFile: info.Path, pass: "wrong"})
	assert.Error(t, err)

	_, err = buildStatement(submitOptions{keyFile: filepath.Join(dir, "missing")})
	assert.Error(t, err)
}
