// Package client implements the RPC client of the statement store.
// RPCStore implements the store.IStore interface and forwards every operation to
// one shard of a remote server.
//
// Statements travel in their canonical encoding. The client decodes them again and
// recomputes the hashes of Statements, so a server can not claim a hash that does not
// match the content. Store errors keep their store.Error code across the wire, so
// errors.Is works the same for local and remote stores.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:8080"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	s, err := client.NewRPCStore(1, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  return err
//	}
//	defer s.Close()
//
//	res := s.Submit(stmt, statement.SourceLocal)
//	data, err := s.Broadcasts([]statement.Topic{topic})
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	RPCStore is safe for concurrent use from multiple goroutines.
package client
