package validator

import (
	"testing"

	"github.com/ValentinKolb/dStmt/lib/statement"
	"github.com/ValentinKolb/dStmt/lib/store"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T) (*statement.Statement, statement.AccountID) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	s := &statement.Statement{Data: []byte("hello")}
	require.NoError(t, s.Sign(key))
	return s, statement.AccountIDFromPublicKey(&key.PublicKey)
}

func onChain(who statement.AccountID, block statement.BlockHash) *statement.Statement {
	s := &statement.Statement{Data: []byte("hello")}
	s.SetOnChainProof(who, block, 0)
	return s
}

func validate(v *SignatureValidator, source statement.Source, s *statement.Statement) (store.ValidStatement, error) {
	at, _ := s.AnchorBlock()
	return v.Validate(at, source, s)
}

func TestSignedStatements(t *testing.T) {
	v := NewSignatureValidator(DefaultConfig())

	s, _ := signed(t)
	quota, err := validate(v, statement.SourceNetwork, s)
	require.NoError(t, err)
	assert.Equal(t, store.ValidStatement{MaxCount: DefaultQuotaCount, MaxSize: DefaultQuotaSize}, quota)

	s.Data = []byte("tampered")
	_, err = validate(v, statement.SourceNetwork, s)
	assert.ErrorIs(t, err, store.ErrBadProof)

	_, err = validate(v, statement.SourceLocal, &statement.Statement{})
	assert.ErrorIs(t, err, store.ErrNoProof)
}

func TestQuotaOverrides(t *testing.T) {
	s, account := signed(t)

	cfg := DefaultConfig()
	cfg.Quotas = map[statement.AccountID]store.ValidStatement{
		account: {MaxCount: 1, MaxSize: 10},
	}
	v := NewSignatureValidator(cfg)

	// the config map is copied
	cfg.Quotas[account] = store.ValidStatement{MaxCount: 99, MaxSize: 99}

	quota, err := validate(v, statement.SourceNetwork, s)
	require.NoError(t, err)
	assert.Equal(t, store.ValidStatement{MaxCount: 1, MaxSize: 10}, quota)
}

func TestOnChainAnchors(t *testing.T) {
	trusted := statement.BlockHash{1}

	cfg := DefaultConfig()
	cfg.TrustedAnchors = []statement.BlockHash{trusted}
	v := NewSignatureValidator(cfg)

	_, err := validate(v, statement.SourceChain, onChain(statement.AccountID{7}, trusted))
	assert.NoError(t, err)

	_, err = validate(v, statement.SourceChain, onChain(statement.AccountID{7}, statement.BlockHash{2}))
	assert.ErrorIs(t, err, store.ErrBadProof)

	// without anchors nothing is trusted
	_, err = validate(NewSignatureValidator(DefaultConfig()), statement.SourceChain, onChain(statement.AccountID{7}, trusted))
	assert.ErrorIs(t, err, store.ErrBadProof)
}

func TestSourcePolicy(t *testing.T) {
	s, _ := signed(t)

	cfg := DefaultConfig()
	cfg.AllowNetwork = false
	v := NewSignatureValidator(cfg)

	_, err := validate(v, statement.SourceNetwork, s)
	assert.ErrorIs(t, err, store.ErrBadProof)
	_, err = validate(v, statement.SourceLocal, s)
	assert.NoError(t, err)

	cfg = DefaultConfig()
	cfg.Allowed = func(_ statement.Source, stmt *statement.Statement) bool {
		return len(stmt.Data) < 3
	}
	v = NewSignatureValidator(cfg)
	_, err = validate(v, statement.SourceLocal, s)
	assert.ErrorIs(t, err, store.ErrBadProof)
}
