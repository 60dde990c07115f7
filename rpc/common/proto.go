package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dStmt/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key    []byte   `json:"key,omitempty"`    // Used for: Statement, Remove (hash), RemoveBy (account), Posted* (dest)
	Topics [][]byte `json:"topics,omitempty"` // Used for: Broadcasts*, Posted*
	Value  []byte   `json:"value,omitempty"`  // Used for: Submit (request), Statement (response)
	Source uint8    `json:"source,omitempty"` // Used for: Submit (request)

	// Response only fields
	Values [][]byte `json:"values,omitempty"` // Used for: Statements, Broadcasts*, Posted* responses
	Result uint8    `json:"result,omitempty"` // Used for: Submit responses (store.SubmitKind)
	Reason string   `json:"reason,omitempty"` // Used for: Submit responses
	Ok     bool     `json:"ok,omitempty"`     // Used for: Statement responses
	Code   uint8    `json:"code,omitempty"`   // store.RetCode of Err, 0 if Err is not a store error
	Err    string   `json:"err,omitempty"`    // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Info responses (json), Custom messages
}

// setErr fills the error fields of a response
func (m *Message) setErr(err error) *Message {
	if err == nil {
		return m
	}
	m.Err = err.Error()
	var se *store.Error
	if errors.As(err, &se) {
		m.Code = uint8(se.Code)
		m.Err = se.Msg
	}
	return m
}

// ToError converts the error fields of a response back into an error.
// Store errors keep their code. It returns nil if the message carries no error.
func (m *Message) ToError() error {
	if m.Err == "" && m.Code == 0 {
		return nil
	}
	if m.Code != 0 {
		return store.NewError(store.RetCode(m.Code), m.Err)
	}
	return errors.New(m.Err)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewSubmitRequest creates a new Submit request for an encoded statement
func NewSubmitRequest(encoded []byte, source uint8) *Message {
	return &Message{
		MsgType: MsgTSubmit,
		Value:   encoded,
		Source:  source,
	}
}

// NewSubmitResponse creates a new Submit response.
// err is the internal error of an InternalError result.
func NewSubmitResponse(kind uint8, reason string, err error) *Message {
	msg := &Message{
		MsgType: MsgTSubmit,
		Result:  kind,
		Reason:  reason,
	}
	return msg.setErr(err)
}

// NewStatementRequest creates a new Statement request
func NewStatementRequest(hash []byte) *Message {
	return &Message{
		MsgType: MsgTStatement,
		Key:     hash,
	}
}

// NewStatementResponse creates a new Statement response, ok is false if the statement is not stored
func NewStatementResponse(encoded []byte, ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTStatement,
		Value:   encoded,
		Ok:      ok,
	}
	return msg.setErr(err)
}

// NewStatementsRequest creates a new Statements request
func NewStatementsRequest() *Message {
	return &Message{
		MsgType: MsgTStatements,
	}
}

// NewBroadcastsRequest creates a new Broadcasts or BroadcastsStmt request
func NewBroadcastsRequest(msgType MessageType, topics [][]byte) *Message {
	return &Message{
		MsgType: msgType,
		Topics:  topics,
	}
}

// NewPostedRequest creates a new Posted, PostedStmt, PostedClear or PostedClearStmt request
func NewPostedRequest(msgType MessageType, topics [][]byte, dest []byte) *Message {
	return &Message{
		MsgType: msgType,
		Key:     dest,
		Topics:  topics,
	}
}

// NewListResponse creates the response of a request that returns a list of values
func NewListResponse(msgType MessageType, values [][]byte, err error) *Message {
	msg := &Message{
		MsgType: msgType,
		Values:  values,
	}
	return msg.setErr(err)
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(hash []byte) *Message {
	return &Message{
		MsgType: MsgTRemove,
		Key:     hash,
	}
}

// NewRemoveByRequest creates a new RemoveBy request
func NewRemoveByRequest(account []byte) *Message {
	return &Message{
		MsgType: MsgTRemoveBy,
		Key:     account,
	}
}

// NewEmptyResponse creates a response that only reports an error (if any)
func NewEmptyResponse(msgType MessageType, err error) *Message {
	msg := &Message{
		MsgType: msgType,
	}
	return msg.setErr(err)
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{
		MsgType: MsgTInfo,
	}
}

// NewInfoResponse creates a new Info response, meta holds the json encoded store.Info
func NewInfoResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTInfo,
		Meta:    meta,
	}
	return msg.setErr(err)
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
	return msg.setErr(err)
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTSuccess:         "success",
	MsgTError:           "error",
	MsgTSubmit:          "submit",
	MsgTStatement:       "statement",
	MsgTStatements:      "statements",
	MsgTBroadcasts:      "broadcasts",
	MsgTBroadcastsStmt:  "broadcastsStmt",
	MsgTPosted:          "posted",
	MsgTPostedStmt:      "postedStmt",
	MsgTPostedClear:     "postedClear",
	MsgTPostedClearStmt: "postedClearStmt",
	MsgTRemove:          "remove",
	MsgTRemoveBy:        "removeBy",
	MsgTInfo:            "info",
	MsgTCustom:          "custom",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTSubmit          // Submit a statement
	MsgTStatement       // Get a statement by hash
	MsgTStatements      // List all statements
	MsgTBroadcasts      // Payloads of broadcast statements
	MsgTBroadcastsStmt  // Encoded broadcast statements
	MsgTPosted          // Payloads of statements for a decryption key
	MsgTPostedStmt      // Encoded statements for a decryption key
	MsgTPostedClear     // Decrypted payloads for a decryption key
	MsgTPostedClearStmt // Encoded statements with decrypted payloads
	MsgTRemove          // Remove a statement
	MsgTRemoveBy        // Remove all statements of an account
	MsgTInfo            // Store information

	// Custom operations

	MsgTCustom // Custom operation type
)
