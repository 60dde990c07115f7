package client

import (
	"bytes"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/dStmt/lib/statement"
	"github.com/ValentinKolb/dStmt/lib/store"
	"github.com/ValentinKolb/dStmt/rpc/common"
	"github.com/ValentinKolb/dStmt/rpc/serializer"
	"github.com/ValentinKolb/dStmt/rpc/server"
	"github.com/ValentinKolb/dStmt/rpc/transport"
	"github.com/ValentinKolb/dStmt/rpc/transport/http"
	"github.com/ValentinKolb/dStmt/rpc/transport/tcp"
	"github.com/ValentinKolb/dStmt/rpc/transport/unix"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// loopback connects a client directly to the handler of a server without sockets
type loopback struct {
	handler transport.ServerHandleFunc
}

func (l *loopback) RegisterHandler(handler transport.ServerHandleFunc) { l.handler = handler }
func (l *loopback) Listen(common.ServerConfig) error                  { return nil }
func (l *loopback) Close() error                                      { return nil }
func (l *loopback) Connect(common.ClientConfig) error                 { return nil }

func (l *loopback) Send(shardId uint64, req []byte) ([]byte, error) {
	return l.handler(shardId, req), nil
}

func serverConfig(endpoint string) common.ServerConfig {
	return common.ServerConfig{
		Shards:       []uint64{1},
		Engine:       common.EngineMemory,
		AllowNetwork: true,
		LogLevel:     "error",
		Transport:    common.ServerTransportConfig{Endpoint: endpoint, WorkersPerConn: 4},
	}
}

func clientConfig(endpoint string) common.ClientConfig {
	return common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{endpoint},
			RetryCount:             3,
			ConnectionsPerEndpoint: 2,
			TCPConf:                common.TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
		},
	}
}

// loopbackStore returns a client connected to a fresh in-process server
func loopbackStore(t *testing.T, ser serializer.IRPCSerializer) *RPCStore {
	t.Helper()
	lb := &loopback{}
	srv := server.NewRPCServer(serverConfig(""), lb, ser)
	require.NoError(t, srv.Serve())
	t.Cleanup(func() { _ = srv.Close() })

	s, err := NewRPCStore(1, clientConfig("loopback"), lb, ser)
	require.NoError(t, err)
	return s
}

// socketStore starts a server with the given transport and connects a client to it
func socketStore(t *testing.T, endpoint string, st transport.IRPCServerTransport, ct transport.IRPCClientTransport) *RPCStore {
	t.Helper()
	ser := serializer.NewBinarySerializer()
	srv := server.NewRPCServer(serverConfig(endpoint), st, ser)

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	t.Cleanup(func() {
		_ = srv.Close()
		<-done
	})

	var s *RPCStore
	require.Eventually(t, func() bool {
		var err error
		s, err = NewRPCStore(1, clientConfig(endpoint), ct, ser)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func signed(t *testing.T, data string, topics ...statement.Topic) *statement.Statement {
	t.Helper()
	priv, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	stmt := &statement.Statement{Topics: topics, Data: []byte(data)}
	require.NoError(t, stmt.Sign(priv))
	return stmt
}

// exercise runs the common store operations against s
func exercise(t *testing.T, s store.IStore) {
	topic := statement.TopicFromString("weather")
	stmt := signed(t, "sunny", topic)
	hash := stmt.Hash()

	res := s.Submit(stmt, statement.SourceLocal)
	require.Equal(t, store.ResultNew(), res)

	got, err := s.Statement(hash)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, stmt.Encode(), got.Encode())

	all, err := s.Statements()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, hash, all[0].Hash)

	data, err := s.Broadcasts([]statement.Topic{topic})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("sunny")}, data)

	info, err := s.GetInfo()
	require.NoError(t, err)
	assert.Equal(t, 1, info.Statements)

	require.NoError(t, s.Remove(hash))
	got, err = s.Statement(hash)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestRPCStoreSerializers(t *testing.T) {
	serializers := map[string]serializer.IRPCSerializer{
		"binary": serializer.NewBinarySerializer(),
		"json":   serializer.NewJSONSerializer(),
		"gob":    serializer.NewGOBSerializer(),
	}
	for name, ser := range serializers {
		t.Run(name, func(t *testing.T) {
			exercise(t, loopbackStore(t, ser))
		})
	}
}

func TestSubmitResults(t *testing.T) {
	s := loopbackStore(t, serializer.NewBinarySerializer())
	stmt := signed(t, "x")

	assert.Equal(t, store.ResultNew(), s.Submit(stmt, statement.SourceLocal))
	assert.Equal(t, store.ResultKnown(), s.Submit(stmt, statement.SourceNetwork))

	res := s.Submit(&statement.Statement{Data: []byte("no proof")}, statement.SourceLocal)
	assert.Equal(t, store.SubmitBad, res.Kind)
	assert.Equal(t, "No statement proof", res.Reason)

	require.NoError(t, s.Remove(stmt.Hash()))
	assert.Equal(t, store.ResultKnownExpired(), s.Submit(stmt, statement.SourceNetwork))
}

func TestStoreErrorsKeepTheirCode(t *testing.T) {
	s := loopbackStore(t, serializer.NewBinarySerializer())

	// five topics are rejected by the server
	topics := make([]statement.Topic, statement.MaxTopics+1)
	_, err := s.Broadcasts(topics)
	require.Error(t, err)
	assert.ErrorIs(t, err, &store.Error{Code: store.RetCInvalidOperation})
}

func TestUnknownShard(t *testing.T) {
	lb := &loopback{}
	ser := serializer.NewBinarySerializer()
	srv := server.NewRPCServer(serverConfig(""), lb, ser)
	require.NoError(t, srv.Serve())
	defer srv.Close()

	s, err := NewRPCStore(7, clientConfig("loopback"), lb, ser)
	require.NoError(t, err)

	_, err = s.Statements()
	assert.ErrorContains(t, err, "shard 7 not found")
	assert.Equal(t, store.SubmitInternalError, s.Submit(signed(t, "x"), statement.SourceLocal).Kind)
}

func TestPostedOverRPC(t *testing.T) {
	lb := &loopback{}
	ser := serializer.NewBinarySerializer()
	srv := server.NewRPCServer(serverConfig(""), lb, ser)
	require.NoError(t, srv.Serve())
	defer srv.Close()
	s, err := NewRPCStore(1, clientConfig("loopback"), lb, ser)
	require.NoError(t, err)

	priv, err := srv.Keys().Generate()
	require.NoError(t, err)
	dest := statement.DecryptionKeyOf(&priv.PublicKey)

	author, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	stmt := &statement.Statement{}
	require.NoError(t, stmt.Encrypt([]byte("for your eyes only"), &priv.PublicKey))
	require.NoError(t, stmt.Sign(author))
	require.Equal(t, store.ResultNew(), s.Submit(stmt, statement.SourceLocal))

	plain, err := s.PostedClear(nil, dest)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("for your eyes only")}, plain)

	clearStmt, err := s.PostedClearStmt(nil, dest)
	require.NoError(t, err)
	require.Len(t, clearStmt, 1)
	assert.True(t, bytes.HasPrefix(clearStmt[0], stmt.Encode()))

	posted, err := s.PostedStmt(nil, dest)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{stmt.Encode()}, posted)

	who := statement.AccountIDFromPublicKey(&author.PublicKey)
	require.NoError(t, s.RemoveBy(who))
	posted, err = s.Posted(nil, dest)
	require.NoError(t, err)
	assert.Empty(t, posted)
}

func TestTransports(t *testing.T) {
	t.Run("unix", func(t *testing.T) {
		endpoint := filepath.Join(t.TempDir(), "dstmt.sock")
		exercise(t, socketStore(t, endpoint, unix.NewUnixDefaultServerTransport(), unix.NewUnixClientTransport()))
	})
	t.Run("tcp", func(t *testing.T) {
		endpoint := freeAddr(t)
		exercise(t, socketStore(t, endpoint, tcp.NewTCPServerTransport(), tcp.NewTCPClientTransport()))
	})
	t.Run("http", func(t *testing.T) {
		endpoint := freeAddr(t)
		exercise(t, socketStore(t, endpoint, http.NewHttpServerTransport(), http.NewHttpClientTransport()))
	})
}

func TestConcurrentClients(t *testing.T) {
	endpoint := filepath.Join(t.TempDir(), "dstmt.sock")
	s := socketStore(t, endpoint, unix.NewUnixDefaultServerTransport(), unix.NewUnixClientTransport())

	const n = 32
	stmts := make([]*statement.Statement, n)
	for i := range stmts {
		stmts[i] = signed(t, fmt.Sprintf("statement %d", i))
	}

	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			res := s.Submit(stmts[i], statement.SourceLocal)
			if res.Kind != store.SubmitNew {
				errs <- fmt.Errorf("submission %d: %s", i, res)
				return
			}
			errs <- nil
		}(i)
	}
	for i := 0; i < n; i++ {
		assert.NoError(t, <-errs)
	}

	all, err := s.Statements()
	require.NoError(t, err)
	assert.Len(t, all, n)
}
