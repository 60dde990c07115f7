package client

import (
	"encoding/json"

	"github.com/ValentinKolb/dStmt/lib/statement"
	"github.com/ValentinKolb/dStmt/lib/store"
	"github.com/ValentinKolb/dStmt/rpc/common"
	"github.com/ValentinKolb/dStmt/rpc/serializer"
	"github.com/ValentinKolb/dStmt/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns the store (implementing store.IStore) and an error
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCStore, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC store
	s := RPCStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	return &s, nil
}

// RPCStore implements store.IStore by forwarding all operations to one shard of a server
type RPCStore struct {
	rpcClientAdapter
}

// compile time check
var _ store.IStore = (*RPCStore)(nil)

// Close closes the transport of the store
func (i *RPCStore) Close() error {
	return i.transport.Close()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *RPCStore) Submit(stmt *statement.Statement, source statement.Source) store.SubmitResult {
	req := common.NewSubmitRequest(stmt.Encode(), uint8(source))
	resp, err := roundTrip(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return store.ResultInternalError(err)
	}

	switch kind := store.SubmitKind(resp.Result); kind {
	case store.SubmitNew:
		return store.ResultNew()
	case store.SubmitKnown:
		return store.ResultKnown()
	case store.SubmitKnownExpired:
		return store.ResultKnownExpired()
	case store.SubmitIgnored:
		return store.ResultIgnored()
	case store.SubmitBad:
		return store.ResultBad(resp.Reason)
	default:
		err := resp.ToError()
		if err == nil {
			err = store.NewError(store.RetCInternalError, "internal error: "+kind.String())
		}
		return store.ResultInternalError(err)
	}
}

func (i *RPCStore) Remove(hash statement.Hash) error {
	_, err := invokeRPCRequest(i.shardId, common.NewRemoveRequest(hash[:]), i.transport, i.serializer)
	return err
}

func (i *RPCStore) RemoveBy(account statement.AccountID) error {
	_, err := invokeRPCRequest(i.shardId, common.NewRemoveByRequest(account[:]), i.transport, i.serializer)
	return err
}

func (i *RPCStore) Statement(hash statement.Hash) (*statement.Statement, error) {
	resp, err := invokeRPCRequest(i.shardId, common.NewStatementRequest(hash[:]), i.transport, i.serializer)
	if err != nil {
		return nil, err
	}
	if !resp.Ok {
		return nil, nil
	}
	stmt, err := statement.Decode(resp.Value)
	if err != nil {
		return nil, store.NewDecodeError("Error decoding statement: %v", err)
	}
	return stmt, nil
}

func (i *RPCStore) Statements() ([]statement.Hashed, error) {
	resp, err := invokeRPCRequest(i.shardId, common.NewStatementsRequest(), i.transport, i.serializer)
	if err != nil {
		return nil, err
	}
	result := make([]statement.Hashed, 0, len(resp.Values))
	for _, raw := range resp.Values {
		stmt, err := statement.Decode(raw)
		if err != nil {
			return nil, store.NewDecodeError("Error decoding statement: %v", err)
		}
		result = append(result, statement.Hashed{Hash: stmt.Hash(), Statement: stmt})
	}
	return result, nil
}

func (i *RPCStore) Broadcasts(topics []statement.Topic) ([][]byte, error) {
	return i.list(common.NewBroadcastsRequest(common.MsgTBroadcasts, topicBytes(topics)))
}

func (i *RPCStore) BroadcastsStmt(topics []statement.Topic) ([][]byte, error) {
	return i.list(common.NewBroadcastsRequest(common.MsgTBroadcastsStmt, topicBytes(topics)))
}

func (i *RPCStore) Posted(topics []statement.Topic, dest statement.DecryptionKey) ([][]byte, error) {
	return i.list(common.NewPostedRequest(common.MsgTPosted, topicBytes(topics), dest[:]))
}

func (i *RPCStore) PostedStmt(topics []statement.Topic, dest statement.DecryptionKey) ([][]byte, error) {
	return i.list(common.NewPostedRequest(common.MsgTPostedStmt, topicBytes(topics), dest[:]))
}

func (i *RPCStore) PostedClear(topics []statement.Topic, dest statement.DecryptionKey) ([][]byte, error) {
	return i.list(common.NewPostedRequest(common.MsgTPostedClear, topicBytes(topics), dest[:]))
}

func (i *RPCStore) PostedClearStmt(topics []statement.Topic, dest statement.DecryptionKey) ([][]byte, error) {
	return i.list(common.NewPostedRequest(common.MsgTPostedClearStmt, topicBytes(topics), dest[:]))
}

func (i *RPCStore) GetInfo() (store.Info, error) {
	resp, err := invokeRPCRequest(i.shardId, common.NewInfoRequest(), i.transport, i.serializer)
	if err != nil {
		return store.Info{}, err
	}
	var info store.Info
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return store.Info{}, store.NewDecodeError("Error decoding store info: %v", err)
	}
	return info, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (i *RPCStore) list(req *common.Message) ([][]byte, error) {
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func topicBytes(topics []statement.Topic) [][]byte {
	out := make([][]byte, len(topics))
	for i := range topics {
		out[i] = topics[i][:]
	}
	return out
}
