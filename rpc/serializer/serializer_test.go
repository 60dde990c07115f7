package serializer

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/ValentinKolb/dStmt/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	hash := bytes.Repeat([]byte{0x42}, 32)
	topic := bytes.Repeat([]byte{0x07}, 32)

	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Submit request
		{
			MsgType: common.MsgTSubmit,
			Value:   []byte("encoded-statement"),
			Source:  2,
		},

		// Submit response with a rejection
		{
			MsgType: common.MsgTSubmit,
			Result:  4,
			Reason:  "Bad statement proof",
		},

		// Statement response
		{
			MsgType: common.MsgTStatement,
			Value:   []byte("encoded-statement"),
			Ok:      true,
		},

		// Posted request
		{
			MsgType: common.MsgTPosted,
			Key:     hash,
			Topics:  [][]byte{topic, hash},
		},

		// List response
		{
			MsgType: common.MsgTBroadcasts,
			Values:  [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")},
		},

		// Error response with a store error code
		{
			MsgType: common.MsgTRemove,
			Code:    2,
			Err:     "test error message",
		},

		// Message with all fields filled
		{
			MsgType: common.MsgTPostedClearStmt,
			Key:     hash,
			Topics:  [][]byte{topic},
			Value:   []byte("value"),
			Source:  1,
			Values:  [][]byte{[]byte("v1"), []byte("v2")},
			Result:  3,
			Reason:  "reason",
			Ok:      true,
			Code:    1,
			Err:     "error",
			Meta:    []byte("test-meta-data"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTCustom; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	// Test cases for empty or zero values
	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Empty but not nil slices",
			msg: common.Message{
				MsgType: common.MsgTSubmit,
				Key:     []byte{},
				Topics:  [][]byte{},
				Value:   []byte{},
				Values:  [][]byte{},
				Meta:    []byte{},
			},
		},
		{
			name: "Lists with empty elements",
			msg: common.Message{
				MsgType: common.MsgTStatements,
				Values:  [][]byte{{}, []byte("x"), {}},
			},
		},
		{
			name: "Only ok flag",
			msg: common.Message{
				MsgType: common.MsgTStatement,
				Ok:      true,
			},
		},
		{
			name: "Max single byte fields",
			msg: common.Message{
				MsgType: common.MsgTCustom,
				Source:  255,
				Result:  255,
				Code:    255,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Serialize
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			// Deserialize
			var result common.Message
			err = serializer.Deserialize(data, &result)
			if err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			// The binary format keeps nil and empty slices apart, so the messages must be deep equal
			if !reflect.DeepEqual(tc.msg, result) {
				t.Errorf("Message doesn't match after round trip:\nOriginal: %#v\nResult: %#v", tc.msg, result)
			}
		})
	}
}

// TestBinaryDeserializeResets tests that a reused message does not keep old fields
func TestBinaryDeserializeResets(t *testing.T) {
	serializer := NewBinarySerializer()

	data, err := serializer.Serialize(common.Message{MsgType: common.MsgTSuccess})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	msg := common.Message{
		MsgType: common.MsgTSubmit,
		Value:   []byte("old"),
		Values:  [][]byte{[]byte("old")},
		Ok:      true,
		Err:     "old",
	}
	if err := serializer.Deserialize(data, &msg); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if !reflect.DeepEqual(msg, common.Message{MsgType: common.MsgTSuccess}) {
		t.Errorf("Expected a reset message, got %+v", msg)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for key",
			data:        []byte{1, 0, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims key length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{1, 0, 4, 0, 0, 0, 10}, // Claims value length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Invalid element count for topics",
			data:        []byte{1, 0, 2, 0xff, 0xff, 0xff, 0xff}, // Claims 2^32-1 topics
			expectError: true,
		},
		{
			name:        "Truncated list element",
			data:        []byte{1, 0, 16, 0, 0, 0, 1, 0, 0, 0, 3, 'a'}, // One value of length 3 with 1 byte
			expectError: true,
		},
		{
			name:        "Missing source byte",
			data:        []byte{1, 0, 8},
			expectError: true,
		},
		{
			name:        "Missing code byte",
			data:        []byte{1, 1, 0},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
