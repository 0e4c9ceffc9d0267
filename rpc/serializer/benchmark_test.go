package serializer

import (
	"fmt"
	"testing"

	"github.com/openr/kvstored/lib/kv"
	"github.com/openr/kvstored/rpc/wire"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]wire.Message {
	return map[string]wire.Message{
		"Empty": {
			MsgType: wire.MsgTSuccess,
			Ok:      true,
		},
		"GetKeysOnly": {
			MsgType: wire.MsgTGetKeyVals,
			AreaID:  "area1",
			Keys:    []string{"k1", "k2", "k3"},
		},
		"SetSmallValue": {
			MsgType: wire.MsgTSetKeyVals,
			AreaID:  "area1",
			KeyVals: map[string]kv.Value{
				"key": {Version: 1, OriginatorID: "node1", Body: kv.FullBody([]byte("v")), TTLMs: 30_000},
			},
		},
		"SetMediumValue": {
			MsgType: wire.MsgTSetKeyVals,
			AreaID:  "area1",
			KeyVals: map[string]kv.Value{
				"key": {Version: 1, OriginatorID: "node1", Body: kv.FullBody([]byte("medium length value for testing serialization")), TTLMs: 30_000},
			},
		},
		"SetLargeValue": {
			MsgType: wire.MsgTSetKeyVals,
			AreaID:  "area1",
			KeyVals: map[string]kv.Value{
				"key": {Version: 1, OriginatorID: "node1", Body: kv.FullBody(make([]byte, 1024)), TTLMs: 30_000},
			},
		},
		"SetVeryLargeValue": {
			MsgType: wire.MsgTSetKeyVals,
			AreaID:  "area1",
			KeyVals: map[string]kv.Value{
				"key": {Version: 1, OriginatorID: "node1", Body: kv.FullBody(make([]byte, 1024*16)), TTLMs: 30_000},
			},
		},
		"DumpManyKeys": {
			MsgType: wire.MsgTDumpKeyVals,
			AreaID:  "area1",
			KeyVals: func() map[string]kv.Value {
				m := make(map[string]kv.Value, 100)
				for i := 0; i < 100; i++ {
					m[fmt.Sprintf("key-%d", i)] = kv.Value{
						Version: uint64(i), OriginatorID: "node1",
						Body: kv.FullBody([]byte("test-value-data")), TTLMs: 30_000,
					}
				}
				return m
			}(),
		},
		"ErrorMessage": {
			MsgType: wire.MsgTError,
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

	for name, factory := range testSerializers {
		for msgName := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data := serializedData[name][msgName]
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var msg wire.Message
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

				b.ReportMetric(float64(len(data)), "bytes")

				for i := 0; i < b.N; i++ {
					_ = data
				}
			})
		}
	}
}
