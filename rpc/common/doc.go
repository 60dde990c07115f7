// Package common provides the data structures shared by the rpc client, the rpc
// server and the transports of the statement store.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication, used for requests and
//     responses. Statements, topics and identifiers travel as raw bytes, errors of the
//     store keep their store.RetCode in the Code field. Includes factory methods for
//     all request and response messages.
//
//   - MessageType: Enumeration of all supported operations (one per store.IStore method)
//     plus the success, error and custom control messages.
//
//   - ServerConfig: Configuration of a node: served shards, storage engine, global
//     store limits, validator quotas and anchors, keystore, transport and logging.
//
//   - ClientConfig: Configuration for client components, controlling endpoints,
//     connections, timeouts and retry behavior.
//
//   - Logger: Custom log format for the dragonboat logger used by all packages.
//     InitLoggers sets the level of all package loggers at once.
package common
