package statement

import (
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullStatement(t *testing.T) *Statement {
	t.Helper()
	s := &Statement{Data: []byte("payload")}
	s.SetPriority(7)
	s.SetChannel(ChannelFromString("channel"))
	s.SetDecryptionKey(DecryptionKey{42})
	for i := 0; i < MaxTopics; i++ {
		s.SetTopic(i, Topic{byte(i + 1)})
	}
	return s
}

func TestEncodeDecode(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		s := &Statement{}
		decoded, err := Decode(s.Encode())
		require.NoError(t, err)
		assert.Equal(t, s, decoded)
	})

	t.Run("AllFields", func(t *testing.T) {
		key, err := ethcrypto.GenerateKey()
		require.NoError(t, err)

		s := fullStatement(t)
		require.NoError(t, s.Sign(key))

		decoded, err := Decode(s.Encode())
		require.NoError(t, err)
		assert.Equal(t, s, decoded)
		assert.Equal(t, s.Hash(), decoded.Hash())
	})

	t.Run("OnChainProof", func(t *testing.T) {
		s := &Statement{Data: []byte{}}
		s.SetOnChainProof(AccountID{1}, BlockHash{2}, 99)

		decoded, err := Decode(s.Encode())
		require.NoError(t, err)
		assert.Equal(t, s, decoded)

		block, ok := decoded.AnchorBlock()
		require.True(t, ok)
		assert.Equal(t, BlockHash{2}, *block)
	})
}

func TestDecodeRejectsMalformed(t *testing.T) {
	valid := fullStatement(t).Encode()

	cases := map[string][]byte{
		"Empty":      {},
		"Truncated":  valid[:len(valid)-1],
		"Trailing":   append(append([]byte{}, valid...), 0),
		"UnknownTag": {1, 9},
		"OutOfOrder": append([]byte{2, tagChannel}, append(make([]byte, 32), tagDecryptionKey)...),
		"TopicGap":   append([]byte{1, tagTopic1 + 1}, make([]byte, 32)...),
		"BadProof":   {1, tagProof, 7},
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(data)
			assert.Error(t, err)
		})
	}
}

func TestSignature(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	s := fullStatement(t)
	_, err = s.VerifySignature()
	assert.ErrorIs(t, err, ErrNoSignature)

	_, ok := s.AccountID()
	assert.False(t, ok)

	require.NoError(t, s.Sign(key))
	valid, err := s.VerifySignature()
	require.NoError(t, err)
	assert.True(t, valid)

	account, ok := s.AccountID()
	require.True(t, ok)
	assert.Equal(t, AccountIDFromPublicKey(&key.PublicKey), account)

	// any change to the signed fields invalidates the signature
	s.SetPriority(8)
	valid, err = s.VerifySignature()
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestTooManyTopics(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	s := fullStatement(t)
	require.NoError(t, s.CheckTopics())

	s.Topics = append(s.Topics, Topic{5})
	assert.ErrorIs(t, s.CheckTopics(), ErrTooManyTopics)
	assert.ErrorIs(t, s.Sign(key), ErrTooManyTopics)
	assert.Nil(t, s.Proof)
}

func TestHashIsContentDerived(t *testing.T) {
	a := &Statement{Data: []byte("a")}
	b := &Statement{Data: []byte("a")}
	c := &Statement{Data: []byte("b")}

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())

	b.SetPriority(0)
	assert.NotEqual(t, a.Hash(), b.Hash(), "an explicit zero priority is a different statement")
}

func TestEncryptDecrypt(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	other, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	s := &Statement{}
	require.NoError(t, s.Encrypt([]byte("secret"), &key.PublicKey))
	require.NotNil(t, s.DecryptionKey)
	assert.Equal(t, DecryptionKeyOf(&key.PublicKey), *s.DecryptionKey)
	assert.NotEqual(t, []byte("secret"), s.Data)

	plain, ok, err := s.Decrypt(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("secret"), plain)

	_, _, err = s.Decrypt(other)
	assert.Error(t, err)

	_, ok, err = (&Statement{}).Decrypt(key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseIdentifiers(t *testing.T) {
	h := (&Statement{Data: []byte("x")}).Hash()

	parsed, err := ParseHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	parsed, err = ParseHash("0x" + h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = ParseHash("abcd")
	assert.Error(t, err)
	_, err = ParseTopic("zz")
	assert.Error(t, err)
}

func TestSource(t *testing.T) {
	assert.True(t, SourceChain.CanBeResubmitted())
	assert.True(t, SourceLocal.CanBeResubmitted())
	assert.False(t, SourceNetwork.CanBeResubmitted())

	for _, src := range []Source{SourceChain, SourceNetwork, SourceLocal} {
		parsed, err := ParseSource(src.String())
		require.NoError(t, err)
		assert.Equal(t, src, parsed)
	}
}
