// Package rpc provides the remote procedure calls of the statement store. It is the
// communication layer between clients and the nodes hosting the stores.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: RPC client implementing the store.IStore interface, allowing applications
//     to use a remote store like a local one.
//
//   - server: RPC server hosting one local store per shard and the adapter that
//     translates messages into store operations.
package rpc
