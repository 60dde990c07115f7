package server

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dStmt/lib/statement"
	"github.com/ValentinKolb/dStmt/lib/store"
	"github.com/ValentinKolb/dStmt/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s store.IStore) *common.Message {
	// Check for nil store
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTSubmit:
		return adapter.submit(req, s)

	case common.MsgTStatement:
		hash, err := toArray32[statement.Hash]("hash", req.Key)
		if err != nil {
			return common.NewStatementResponse(nil, false, err)
		}
		stmt, err := s.Statement(hash)
		if err != nil || stmt == nil {
			return common.NewStatementResponse(nil, false, err)
		}
		return common.NewStatementResponse(stmt.Encode(), true, nil)

	case common.MsgTStatements:
		stmts, err := s.Statements()
		if err != nil {
			return common.NewListResponse(req.MsgType, nil, err)
		}
		values := make([][]byte, 0, len(stmts))
		for _, h := range stmts {
			values = append(values, h.Statement.Encode())
		}
		return common.NewListResponse(req.MsgType, values, nil)

	case common.MsgTBroadcasts, common.MsgTBroadcastsStmt:
		topics, err := toTopics(req.Topics)
		if err != nil {
			return common.NewListResponse(req.MsgType, nil, err)
		}
		var values [][]byte
		if req.MsgType == common.MsgTBroadcasts {
			values, err = s.Broadcasts(topics)
		} else {
			values, err = s.BroadcastsStmt(topics)
		}
		return common.NewListResponse(req.MsgType, values, err)

	case common.MsgTPosted, common.MsgTPostedStmt, common.MsgTPostedClear, common.MsgTPostedClearStmt:
		topics, err := toTopics(req.Topics)
		if err != nil {
			return common.NewListResponse(req.MsgType, nil, err)
		}
		dest, err := toArray32[statement.DecryptionKey]("decryption key", req.Key)
		if err != nil {
			return common.NewListResponse(req.MsgType, nil, err)
		}
		var values [][]byte
		switch req.MsgType {
		case common.MsgTPosted:
			values, err = s.Posted(topics, dest)
		case common.MsgTPostedStmt:
			values, err = s.PostedStmt(topics, dest)
		case common.MsgTPostedClear:
			values, err = s.PostedClear(topics, dest)
		default:
			values, err = s.PostedClearStmt(topics, dest)
		}
		return common.NewListResponse(req.MsgType, values, err)

	case common.MsgTRemove:
		hash, err := toArray32[statement.Hash]("hash", req.Key)
		if err != nil {
			return common.NewEmptyResponse(req.MsgType, err)
		}
		return common.NewEmptyResponse(req.MsgType, s.Remove(hash))

	case common.MsgTRemoveBy:
		account, err := toArray32[statement.AccountID]("account", req.Key)
		if err != nil {
			return common.NewEmptyResponse(req.MsgType, err)
		}
		return common.NewEmptyResponse(req.MsgType, s.RemoveBy(account))

	case common.MsgTInfo:
		info, err := s.GetInfo()
		if err != nil {
			return common.NewInfoResponse(nil, err)
		}
		meta, err := json.Marshal(info)
		if err != nil {
			return common.NewInfoResponse(nil, store.NewError(store.RetCInternalError, err.Error()))
		}
		return common.NewInfoResponse(meta, nil)

	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (adapter *iStoreServerAdapterImpl) submit(req *common.Message, s store.IStore) *common.Message {
	source := statement.Source(req.Source)
	if source > statement.SourceLocal {
		return common.NewErrorResponse(fmt.Sprintf("unknown statement source: %d", req.Source))
	}

	stmt, err := statement.Decode(req.Value)
	if err != nil {
		return common.NewSubmitResponse(uint8(store.SubmitBad), fmt.Sprintf("Invalid statement encoding: %v", err), nil)
	}

	res := s.Submit(stmt, source)
	return common.NewSubmitResponse(uint8(res.Kind), res.Reason, res.Err)
}

// toArray32 converts a request field into one of the fixed size identifiers
func toArray32[T ~[32]byte](what string, b []byte) (T, error) {
	var arr [32]byte
	if len(b) != len(arr) {
		return T(arr), store.NewError(store.RetCInvalidOperation, fmt.Sprintf("invalid %s length: %d", what, len(b)))
	}
	copy(arr[:], b)
	return T(arr), nil
}

// toTopics converts the query topics. More than MaxTopics topics are passed on,
// no statement can match them so the query returns nothing.
func toTopics(raw [][]byte) ([]statement.Topic, error) {
	topics := make([]statement.Topic, 0, len(raw))
	for _, t := range raw {
		topic, err := toArray32[statement.Topic]("topic", t)
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, nil
}
