// Package serializer provides message serialization capabilities for the distributed
// key-value store RPC system. It defines a common interface and multiple implementations
// for serializing and deserializing wire.Message values between client and server
// components.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - Offering multiple implementations with different performance characteristics
//   - Supporting generic encoding of wire.Message's nested domain types
//     (map[string]kv.Value, []area.DualMessage, []area.SpanningTreeInfo,
//     *area.Publication) without a hand-rolled per-field codec
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - gobSerializerImpl: Implementation using Go's built-in gob encoding, the
//     default for peer and client transport: compact, and handles
//     wire.Message's nested maps and slices for free.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging
//     or interoperability with other systems, but with lower performance.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	Serializers are typically created once and reused throughout the application:
//
//	  serializer := serializer.NewGOBSerializer()
//	  data, err := serializer.Serialize(message)
//	  // ... send data ...
//	  var receivedMsg wire.Message
//	  err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
