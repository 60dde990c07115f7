package serializer

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/dStmt/rpc/common"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	hash := bytes.Repeat([]byte{0xab}, 32)
	topics := [][]byte{bytes.Repeat([]byte{1}, 32), bytes.Repeat([]byte{2}, 32)}

	values := func(n, size int) [][]byte {
		v := make([][]byte, n)
		for i := range v {
			v[i] = make([]byte, size)
		}
		return v
	}

	return map[string]common.Message{
		"Empty": {
			MsgType: common.MsgTSuccess,
		},
		"StatementRequest": {
			MsgType: common.MsgTStatement,
			Key:     hash,
		},
		"BroadcastsRequest": {
			MsgType: common.MsgTBroadcasts,
			Topics:  topics,
		},
		"PostedRequest": {
			MsgType: common.MsgTPostedClear,
			Key:     hash,
			Topics:  topics,
		},
		"SmallSubmit": {
			MsgType: common.MsgTSubmit,
			Value:   make([]byte, 128),
			Source:  2,
		},
		"LargeSubmit": {
			MsgType: common.MsgTSubmit,
			Value:   make([]byte, 1024*16), // 16KB of data
			Source:  2,
		},
		"SubmitResponse": {
			MsgType: common.MsgTSubmit,
			Result:  4,
			Reason:  "No statement proof",
		},
		"SmallList": {
			MsgType: common.MsgTBroadcasts,
			Values:  values(8, 64),
		},
		"LargeList": {
			MsgType: common.MsgTStatements,
			Values:  values(1024, 256),
		},
		"CompleteMessage": {
			MsgType: common.MsgTPostedClearStmt,
			Key:     hash,
			Topics:  topics,
			Value:   []byte("test-value-data"),
			Source:  1,
			Values:  values(4, 32),
			Result:  1,
			Reason:  "reason",
			Ok:      true,
			Code:    2,
			Err:     "This is a test error message",
			Meta:    []byte("test-meta-data-for-benchmarking"),
		},
		"ErrorMessage": {
			MsgType: common.MsgTError,
			Err:     "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.",
		},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various message types
func BenchmarkSerialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					_, err := serializer.Serialize(msg)
					if err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various message types
func BenchmarkDeserialize(b *testing.B) {
	messages := benchmarkMessages()
	serializedData := make(map[string]map[string][]byte)

	// Pre-serialize all messages with all serializers
	for name, factory := range testSerializers {
		serializer := factory()
		serializedData[name] = make(map[string][]byte)

		for msgName, msg := range messages {
			data, err := serializer.Serialize(msg)
			if err != nil {
				b.Fatalf("Failed to serialize %s with %s: %v", msgName, name, err)
			}
			serializedData[name][msgName] = data
		}
	}

	// Benchmark deserialization
	for name, factory := range testSerializers {
		for msgName := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data := serializedData[name][msgName]
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var msg common.Message
					err := serializer.Deserialize(data, &msg)
					if err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkSize measures and reports the serialized size for each message type
func BenchmarkSize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		serializer := factory()

		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}

				// Report the size as a custom metric
				b.ReportMetric(float64(len(data)), "bytes")

				// Minimal loop to satisfy benchmark requirements
				for i := 0; i < b.N; i++ {
					_ = data
				}
			})
		}
	}
}
