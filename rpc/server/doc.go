// Package server implements the RPC server of the statement store. A server hosts
// one local store (lstore) per configured shard and routes every request to the
// shard named in its frame or url.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.IStore.
//
//   - NewIStoreServerAdapter: Translates RPC messages into store.IStore calls. Statements
//     are exchanged in their canonical encoding, identifiers are checked for their
//     length before they reach the store.
//
//   - NewRPCServer: Creates a server with the given transport and serializer. All shards
//     share one validator, one set of decryption keys and one metrics set, every shard
//     has its own database below DataDir/shard-<id>.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards:        []uint64{1, 2},
//	  Engine:        common.EngineLevel,
//	  DataDir:       "/var/lib/dstmt",
//	  AllowNetwork:  true,
//	  TimeoutSecond: 5,
//	  LogLevel:      "info",
//	  Transport:     common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	}
//
//	s := server.NewRPCServer(config, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer())
//	defer s.Close()
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Metrics:
//
//	Besides the store metrics the server counts requests and their duration per
//	message type (statement_store_rpc_requests_total, statement_store_rpc_request_duration_seconds).
//	If the transport implements transport.IMetricsExporter and metrics are enabled,
//	all of them are served together with the process metrics.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Serve should be called only once.
package server
